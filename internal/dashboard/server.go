// Package dashboard relays live pipeline readings from the API to websocket
// clients. It polls on a fixed interval and keeps the last snapshot for
// clients that join later.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
)

const fetchLimit = 4

// Source is the part of the API the relay reads from.
type Source interface {
	Latest(ctx context.Context, pipelineID string) (domain.SensorReading, error)
	Health(ctx context.Context) error
}

type PipelineState struct {
	domain.SensorReading
	Status domain.Status `json:"status"`
}

type Snapshot struct {
	Pipelines []PipelineState       `json:"pipelines"`
	Counts    map[domain.Status]int `json:"counts"`
	Timestamp int64                 `json:"timestamp"`
}

type Config struct {
	Pipelines  []string
	Refresh    time.Duration
	Thresholds integrity.Thresholds
	// Reauth is called when the API rejects the session.
	Reauth func(ctx context.Context) error
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	mux *http.ServeMux
	src Source
	cfg Config
	hub *hub

	mu   sync.RWMutex
	last Snapshot

	cancel context.CancelFunc
	done   chan struct{}
}

func New(src Source, cfg Config) *Server {
	if cfg.Refresh <= 0 {
		cfg.Refresh = 10 * time.Second
	}
	if cfg.Thresholds == (integrity.Thresholds{}) {
		cfg.Thresholds = integrity.DefaultThresholds()
	}
	s := &Server{
		mux:  http.NewServeMux(),
		src:  src,
		cfg:  cfg,
		hub:  newHub(),
		last: Snapshot{Pipelines: []PipelineState{}},
	}
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Start takes a first snapshot and polls until Close or ctx ends.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.refresh(ctx)
	go s.poll(ctx)
}

// Close stops the poller and disconnects every client.
func (s *Server) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.hub.closeAll()
}

func (s *Server) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Server) poll(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.refresh(ctx) {
				s.hub.broadcast(Message{Type: "update", Data: s.Snapshot()})
			}
		}
	}
}

// refresh fetches every pipeline and stores the snapshot. Pipelines that fail
// are left out; false means nothing could be fetched.
func (s *Server) refresh(ctx context.Context) bool {
	states := make([]*PipelineState, len(s.cfg.Pipelines))
	var unauthorized bool
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, id := range s.cfg.Pipelines {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(gctx, 5*time.Second)
			defer cancel()
			r, err := s.src.Latest(rctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					mu.Lock()
					unauthorized = true
					mu.Unlock()
				}
				log.Warn().Err(err).Str("pipeline", id).Msg("fetch latest reading")
				return nil
			}
			states[i] = &PipelineState{SensorReading: r, Status: s.cfg.Thresholds.Status(r)}
			return nil
		})
	}
	_ = g.Wait()

	if unauthorized && s.cfg.Reauth != nil {
		if err := s.cfg.Reauth(ctx); err != nil {
			log.Error().Err(err).Msg("dashboard login failed")
		}
	}

	snap := Snapshot{Pipelines: make([]PipelineState, 0, len(states)), Timestamp: time.Now().Unix()}
	readings := make([]domain.SensorReading, 0, len(states))
	for _, st := range states {
		if st != nil {
			snap.Pipelines = append(snap.Pipelines, *st)
			readings = append(readings, st.SensorReading)
		}
	}
	if len(snap.Pipelines) == 0 && len(s.cfg.Pipelines) > 0 {
		return false
	}
	snap.Counts = s.cfg.Thresholds.Counts(readings)

	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	if err := s.hub.add(conn, Message{Type: "init", Data: s.Snapshot()}); err != nil {
		conn.Close()
		return
	}
	defer s.hub.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "online", http.StatusOK
	if err := s.src.Health(ctx); err != nil {
		status, code = "offline", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "clients": s.hub.count()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}
