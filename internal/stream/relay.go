// Package stream turns periodic quote polling into a per-subscriber frame feed.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"market_go/internal/domain"
	"market_go/internal/infra"
	"market_go/internal/router"
)

// State is the lifecycle of one subscription.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameType tags every message sent to a subscriber.
type FrameType string

const (
	FrameInitial FrameType = "initial"
	FrameUpdate  FrameType = "update"
	FrameError   FrameType = "error"
)

// Frame is one message on the feed. Price is absent on error frames.
type Frame struct {
	Symbol    string    `json:"symbol"`
	Price     *float64  `json:"price,omitempty"`
	Type      FrameType `json:"type"`
	Currency  string    `json:"currency,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// SymbolResolver maps user input to a ResolvedSymbol.
type SymbolResolver interface {
	Resolve(symbol string) domain.ResolvedSymbol
}

// VenueRouter picks the venue serving a resolved symbol.
type VenueRouter interface {
	Route(symbol domain.ResolvedSymbol) router.Venue
}

const frameBuffer = 4

// Relay opens polling subscriptions.
type Relay struct {
	resolver SymbolResolver
	router   VenueRouter
	interval time.Duration
}

// NewRelay creates a relay polling every interval.
func NewRelay(resolver SymbolResolver, rt VenueRouter, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{resolver: resolver, router: rt, interval: interval}
}

// Open resolves symbol and routes it once, then starts polling in the
// background. The subscription ends when ctx is cancelled, Close is called
// or the provider reports an unrecoverable error.
func (r *Relay) Open(ctx context.Context, symbol string) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		symbol:   symbol,
		frames:   make(chan Frame, frameBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		interval: r.interval,
	}
	s.state.Store(int32(StateConnecting))

	s.resolved = r.resolver.Resolve(symbol)
	s.venue = r.router.Route(s.resolved)

	infra.GlobalMetrics.IncrementStreams()
	go s.run(ctx)
	return s
}

// Subscription is a single subscriber's feed.
type Subscription struct {
	symbol   string
	resolved domain.ResolvedSymbol
	venue    router.Venue
	interval time.Duration

	state  atomic.Int32
	frames chan Frame
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
	sent      int
}

// Frames delivers frames in order and is closed when the subscription ends.
func (s *Subscription) Frames() <-chan Frame { return s.frames }

// Done is closed once the polling loop has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) State() State { return State(s.state.Load()) }

// Resolved is the key fixed for this subscription's lifetime.
func (s *Subscription) Resolved() domain.ResolvedSymbol { return s.resolved }

// Venue is the venue fixed for this subscription's lifetime.
func (s *Subscription) Venue() router.Venue { return s.venue }

// Close stops polling and waits for the loop to exit.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Subscription) run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Stream polling panic recovered",
				slog.String("symbol", s.symbol), slog.Any("panic", rec))
			s.fail(ctx, fmt.Errorf("internal error: %v", rec))
		}
		s.state.Store(int32(StateClosed))
		close(s.frames)
		infra.GlobalMetrics.DecrementStreams()
		close(s.done)
	}()

	s.state.Store(int32(StateOpen))
	slog.Debug("Stream opened",
		slog.String("symbol", s.symbol),
		slog.String("resolved", s.resolved.String()),
		slog.String("venue", s.venue.Name))

	if !s.poll(ctx) {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Stream closed", slog.String("symbol", s.symbol), slog.Int("frames", s.sent))
			return
		case <-ticker.C:
			if !s.poll(ctx) {
				return
			}
		}
	}
}

// poll fetches one quote and pushes it. It returns false when the
// subscription must end.
func (s *Subscription) poll(ctx context.Context) bool {
	if s.venue.Provider == nil {
		s.fail(ctx, errors.New("no provider for symbol"))
		return false
	}

	q, err := s.venue.Provider.FetchQuote(ctx, s.resolved.String())
	if err != nil {
		s.fail(ctx, err)
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if q == nil {
		// a missed tick is not the subscriber's problem
		return true
	}

	frameType := FrameUpdate
	if s.sent == 0 {
		frameType = FrameInitial
	}
	price := q.Price
	frame := Frame{
		Symbol:    s.symbol,
		Price:     &price,
		Type:      frameType,
		Currency:  q.Currency,
		Timestamp: q.Timestamp,
	}
	if !s.push(ctx, frame) {
		return false
	}
	s.sent++
	infra.GlobalMetrics.RecordFrame()
	return true
}

// fail emits the single terminal error frame.
func (s *Subscription) fail(ctx context.Context, err error) {
	infra.GlobalMetrics.RecordError()
	slog.Warn("Stream terminated", slog.String("symbol", s.symbol), slog.Any("error", err))
	s.push(ctx, Frame{Symbol: s.symbol, Type: FrameError, Error: err.Error()})
}

func (s *Subscription) push(ctx context.Context, f Frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
