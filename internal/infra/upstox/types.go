package upstox

import "encoding/json"

// quoteResponse is the full market quote payload. Entries are keyed by
// "NSE_EQ:SYMBOL", so lookups go through instrument_token.
type quoteResponse struct {
	Status string                `json:"status"`
	Data   map[string]quoteEntry `json:"data"`
}

type quoteEntry struct {
	InstrumentToken string   `json:"instrument_token"`
	Symbol          string   `json:"symbol"`
	Timestamp       string   `json:"timestamp"`
	LastPrice       *float64 `json:"last_price"`
	Volume          *float64 `json:"volume"`
	NetChange       *float64 `json:"net_change"`
	OHLC            *struct {
		Open  *float64 `json:"open"`
		High  *float64 `json:"high"`
		Low   *float64 `json:"low"`
		Close *float64 `json:"close"`
	} `json:"ohlc"`
}

// candleResponse carries rows of [timestamp, open, high, low, close, volume, oi].
type candleResponse struct {
	Status string `json:"status"`
	Data   struct {
		Candles []json.RawMessage `json:"candles"`
	} `json:"data"`
}
