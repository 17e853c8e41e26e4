package router

import (
	"time"

	"market_go/internal/domain"
)

// Kind identifies which upstream family serves a symbol.
type Kind int

const (
	KindGlobal Kind = iota
	KindDomestic
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindDomestic:
		return "domestic"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Venue bundles a provider with the facts the entry layer reports alongside its data.
type Venue struct {
	Kind     Kind
	Name     string
	Currency string
	Provider domain.MarketDataProvider
	Session  domain.SessionFunc
}

// MarketOpen reports whether the venue's session is open at t.
func (v Venue) MarketOpen(t time.Time) bool {
	if v.Session == nil {
		return false
	}
	return v.Session(t)
}

// Router picks exactly one venue per resolved symbol.
type Router struct {
	domestic Venue
	global   Venue
}

// New creates a router over the two venues.
func New(domestic, global Venue) *Router {
	domestic.Kind = KindDomestic
	global.Kind = KindGlobal
	return &Router{domestic: domestic, global: global}
}

// Route selects the domestic venue when the symbol carries the key separator
// and the global venue for everything else. It never fails.
func (r *Router) Route(symbol domain.ResolvedSymbol) Venue {
	if symbol.IsDomestic() {
		return r.domestic
	}
	return r.global
}
