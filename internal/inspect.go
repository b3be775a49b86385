// Package internal hosts operator-facing pieces that are not part of the
// public client surface: the env config and the inspect server.
package internal

import (
	"chat-relay/contract"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// InspectServer is a small operator endpoint on a separate port:
//
//	GET /healthz            liveness probe
//	GET /presence           snapshot of the live presence registry
//	GET /inspect?prefix=    raw scan of the durable store by key prefix
//
// It runs under the supervisor like any other worker and shuts down with
// the process.
type InspectServer struct {
	log      *slog.Logger
	db       *badger.DB
	registry contract.IRegistry
	port     int
}

func NewInspectServer(log *slog.Logger, db *badger.DB, registry contract.IRegistry, port int) *InspectServer {
	return &InspectServer{log: log, db: db, registry: registry, port: port}
}

type inspectRow struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (s *InspectServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("GET /presence", s.handlePresence)
	mux.HandleFunc("GET /inspect", s.handleInspect)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.ListenAndServe()
	}()
	s.log.Info("Inspect server listening", "port", s.port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errChan:
		return err
	}
}

// handlePresence renders the registry snapshot: one entry per currently
// reachable identity.
func (s *InspectServer) handlePresence(w http.ResponseWriter, r *http.Request) {
	snapshot := s.registry.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"count":   len(snapshot),
		"entries": snapshot,
	})
}

// handleInspect scans the store for keys under the given prefix. Values are
// JSON documents; non-JSON values (index entries holding raw keys) are
// rendered as strings.
func (s *InspectServer) handleInspect(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "msg:"
	}

	var rows []inspectRow
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			if err := item.Value(func(val []byte) error {
				rows = append(rows, inspectRow{
					Key:   string(item.Key()),
					Value: asJSON(val),
				})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"prefix": prefix,
		"count":  len(rows),
		"items":  rows,
	})
}

func asJSON(val []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(val))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return json.RawMessage(val)
	}
	quoted, _ := json.Marshal(string(val))
	return quoted
}
