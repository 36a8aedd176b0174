// Package target implements a small id-generator service used as a demo
// load target. GET /id?biztag=<tag> returns the next id for the tag.
package target

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Response codes carried in the "ret" field.
const (
	RetOK          = 0
	RetBadBizTag   = 1
	MsgOK          = "succ"
	MsgBadBizTag   = "biz tag param err"
	defaultAddress = ":8080"
)

// IDResponse is the JSON body of GET /id.
type IDResponse struct {
	Ret    int    `json:"ret"`
	Msg    string `json:"msg"`
	BizTag string `json:"biztag,omitempty"`
	ID     int64  `json:"id,omitempty"`
}

// Config configures the demo server.
type Config struct {
	// Addr to listen on, default ":8080"
	Addr string

	// Latency is added to every /id response
	Latency time.Duration

	// Jitter adds a random extra delay in [0, Jitter)
	Jitter time.Duration
}

// Server hands out monotonically increasing ids per biz tag.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	counters sync.Map // biztag -> *atomic.Int64
	served   atomic.Int64
}

// NewServer creates a server. A nil logger disables logging.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddress
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/id", s.GetID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Served returns the number of /id requests answered.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// GetID answers GET /id?biztag=<tag>. A missing tag is reported in the
// body with ret=1; the HTTP status stays 200.
func (s *Server) GetID(w http.ResponseWriter, r *http.Request) {
	if err := s.delay(r.Context()); err != nil {
		return
	}
	s.served.Add(1)

	bizTag := r.URL.Query().Get("biztag")
	if bizTag == "" {
		s.logger.Debug("url lack of biztag")
		writeJSON(w, IDResponse{Ret: RetBadBizTag, Msg: MsgBadBizTag})
		return
	}

	id := s.nextID(bizTag)
	s.logger.Debug("get id succ", zap.String("biztag", bizTag), zap.Int64("id", id))
	writeJSON(w, IDResponse{Ret: RetOK, Msg: MsgOK, BizTag: bizTag, ID: id})
}

func (s *Server) nextID(bizTag string) int64 {
	v, ok := s.counters.Load(bizTag)
	if !ok {
		v, _ = s.counters.LoadOrStore(bizTag, new(atomic.Int64))
	}
	return v.(*atomic.Int64).Add(1)
}

// delay sleeps for the configured latency, returning early if the client
// goes away.
func (s *Server) delay(ctx context.Context) error {
	d := s.cfg.Latency
	if s.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(s.cfg.Jitter)))
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("target listening", zap.String("addr", s.cfg.Addr),
			zap.Duration("latency", s.cfg.Latency), zap.Duration("jitter", s.cfg.Jitter))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("target stopped", zap.Int64("served", s.Served()))
	return nil
}
