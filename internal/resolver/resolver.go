package resolver

import (
	"strings"

	"market_go/internal/domain"
)

// Resolver turns user input into a ResolvedSymbol.
type Resolver struct {
	lookup domain.InstrumentLookup
}

// New creates a resolver over the given instrument table.
func New(lookup domain.InstrumentLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve trims and uppercases symbol and maps it to a domestic instrument key.
// Unknown symbols come back unchanged (normalized) and are treated as global
// tickers. Input that is already an instrument key is only normalized.
func (r *Resolver) Resolve(symbol string) domain.ResolvedSymbol {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(normalized, domain.KeySeparator) {
		return domain.ResolvedSymbol(normalized)
	}
	if normalized == "" || r.lookup == nil {
		return domain.ResolvedSymbol(normalized)
	}
	if key, ok := r.lookup.Lookup(normalized); ok {
		return domain.ResolvedSymbol(key)
	}
	return domain.ResolvedSymbol(normalized)
}
