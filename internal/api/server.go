// Package api exposes the market core over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"market_go/internal/domain"
	"market_go/internal/infra"
	"market_go/internal/service"
	"market_go/internal/stream"
)

// MarketService is what the handlers need from the service layer.
type MarketService interface {
	Quote(ctx context.Context, symbol string) (service.QuoteView, error)
	Candles(ctx context.Context, symbol string, res domain.Resolution, period, limit int) ([]service.CandlePoint, error)
	Resolve(symbol string) service.ResolveView
	Latest() []service.QuoteView
}

// StreamOpener starts polling subscriptions.
type StreamOpener interface {
	Open(ctx context.Context, symbol string) *stream.Subscription
}

// Server owns the HTTP listener.
type Server struct {
	svc     MarketService
	streams StreamOpener
	timeout time.Duration
	httpSrv *http.Server

	// cancelled by Shutdown; http.Server does not track hijacked connections
	streamCtx    context.Context
	cancelStream context.CancelFunc
	streamWG     sync.WaitGroup
}

// NewServer wires routes. timeout bounds each REST request.
func NewServer(addr string, svc MarketService, streams StreamOpener, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s := &Server{svc: svc, streams: streams, timeout: timeout}
	s.streamCtx, s.cancelStream = context.WithCancel(context.Background())
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /debug/metrics", s.handleMetrics)
	mux.HandleFunc("GET /market/quote/{symbol}", s.handleQuote)
	mux.HandleFunc("GET /market/candles/{symbol}", s.handleCandles)
	mux.HandleFunc("GET /market/resolve/{symbol}", s.handleResolve)
	mux.HandleFunc("GET /market/watchlist", s.handleWatchlist)
	mux.HandleFunc("GET /ws/market/{symbol}", s.handleStream)

	return withJSONHeaders(withGzip(recoverPanic(logRequests(mux))))
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", slog.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes open streams and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelStream()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.streamWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"instruments": infra.GlobalMetrics.Snapshot().InstrumentCount,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infra.GlobalMetrics.Snapshot())
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	view, err := s.svc.Quote(ctx, r.PathValue("symbol"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := domain.ParseResolution(queryOr(q.Get("resolution"), "5"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := intParam(q.Get("period"), service.DefaultPeriod)
	if err != nil || period < 0 {
		writeError(w, http.StatusBadRequest, "period must be a non-negative integer")
		return
	}
	limit, err := intParam(q.Get("limit"), service.DefaultLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, service.MaxLimit)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	points, err := s.svc.Candles(ctx, r.PathValue("symbol"), res, period, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Resolve(r.PathValue("symbol")))
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Latest())
}

func writeServiceError(w http.ResponseWriter, err error) {
	if domain.IsInvalidInput(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	infra.GlobalMetrics.RecordError()
	slog.Error("Request failed", slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Debug("Response encode failed", slog.Any("error", err))
	}
}

func queryOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
