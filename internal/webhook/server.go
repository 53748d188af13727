package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"metadataWatch/internal/model"
)

// Server receives event-observer callbacks from a node configured to POST
// block payloads, and feeds the contained contract events to the watch loop.
type Server struct {
	listen    string
	authToken string
	events    chan<- model.ContractEvent
	logger    *zap.Logger

	server    *http.Server
	processed atomic.Uint64
	rejected  atomic.Uint64
}

// NewServer builds an event-observer receiver. authToken is optional; when
// set, callbacks must carry it as a bearer token.
func NewServer(listen, authToken string, events chan<- model.ContractEvent, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		listen:    listen,
		authToken: authToken,
		events:    events,
		logger:    logger,
	}
}

// Run serves until the context is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/new_block", s.handleNewBlock)
	mux.HandleFunc("/health", s.handleHealth)

	// The node posts these too; an observer must accept them.
	for _, path := range []string{"/new_burn_block", "/new_microblocks", "/new_mempool_tx", "/drop_mempool_tx", "/attachments/new"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}

	s.server = &http.Server{
		Addr:         s.listen,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("observer listening", zap.String("addr", s.listen))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("observer server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("observer shutdown: %w", err)
		}
		return ctx.Err()
	}
}

type blockPayload struct {
	BlockHeight uint64 `json:"block_height"`
	Events      []struct {
		TxID          string `json:"txid"`
		EventIndex    uint64 `json:"event_index"`
		Committed     bool   `json:"committed"`
		Type          string `json:"type"`
		ContractEvent *struct {
			ContractID string          `json:"contract_identifier"`
			Topic      string          `json:"topic"`
			Value      json.RawMessage `json:"value"`
		} `json:"contract_event"`
	} `json:"events"`
}

func (s *Server) handleNewBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		s.rejected.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload blockPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.rejected.Add(1)
		s.logger.Warn("undecodable block payload", zap.Error(err))
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	forwarded := 0
	for _, ev := range payload.Events {
		if ev.Type != "contract_event" || ev.ContractEvent == nil || !ev.Committed {
			continue
		}
		event := model.ContractEvent{
			ContractID:  ev.ContractEvent.ContractID,
			Topic:       ev.ContractEvent.Topic,
			TxID:        ev.TxID,
			EventIndex:  ev.EventIndex,
			BlockHeight: payload.BlockHeight,
			Value:       ev.ContractEvent.Value,
		}
		select {
		case s.events <- event:
			forwarded++
		case <-r.Context().Done():
			http.Error(w, "canceled", http.StatusServiceUnavailable)
			return
		}
	}

	s.processed.Add(1)
	s.logger.Debug("block received",
		zap.Uint64("height", payload.BlockHeight),
		zap.Int("contract_events", forwarded),
	)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "running",
		"processed": s.processed.Load(),
		"rejected":  s.rejected.Load(),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	got := r.Header.Get("Authorization")
	want := "Bearer " + s.authToken
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
