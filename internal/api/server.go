// Package api exposes the read-only ops surface: health, metrics, ledger
// lookups and the recent escalation tail. Nothing here mutates state; the
// loop owns all writes.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"shipment-ticket-resolver/internal/escalation"
	"shipment-ticket-resolver/internal/ledger"
	"shipment-ticket-resolver/internal/telemetry"
)

// Server wires HTTP handlers for the ops API.
type Server struct {
	ledger  ledger.Ledger
	exc     *escalation.Writer
	started time.Time
}

// New constructs the ops server.
func New(led ledger.Ledger, exc *escalation.Writer) *Server {
	return &Server{
		ledger:  led,
		exc:     exc,
		started: time.Now(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/ledger/stats", s.handleLedgerStats)
	r.Get("/ledger/{id}", s.handleLedgerEntry)
	r.Get("/escalations", s.handleEscalations)
	return r
}

type ledgerStats struct {
	Entries int    `json:"entries"`
	Oldest  string `json:"oldest,omitempty"`
	Newest  string `json:"newest,omitempty"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleLedgerStats(w http.ResponseWriter, r *http.Request) {
	entries := s.ledger.Load(r.Context())
	stats := ledgerStats{
		Entries: len(entries),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
	for _, e := range entries {
		if stats.Oldest == "" || e.ProcessedTime < stats.Oldest {
			stats.Oldest = e.ProcessedTime
		}
		if e.ProcessedTime > stats.Newest {
			stats.Newest = e.ProcessedTime
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLedgerEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := s.ledger.Load(r.Context())[id]
	if !ok {
		http.Error(w, "ticket not in ledger", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             id,
		"url":            entry.URL,
		"processed_time": entry.ProcessedTime,
	})
}

// handleEscalations returns the in-memory tail of recent escalations,
// newest last. ?n= bounds the count.
func (s *Server) handleEscalations(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.exc.Recent(n)})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
