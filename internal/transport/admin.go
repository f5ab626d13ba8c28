package transport

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dispatcher.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleClearStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cacheIDFromQuery(r)
	if !ok {
		http.Error(w, "missing or invalid cache parameter", http.StatusBadRequest)
		return
	}
	if err := s.dispatcher.ClearStats(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cacheIDFromQuery(r)
	if !ok {
		http.Error(w, "missing or invalid cache parameter", http.StatusBadRequest)
		return
	}
	if err := s.dispatcher.Clear(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cacheIDFromQuery(r)
	if !ok {
		http.Error(w, "missing or invalid cache parameter", http.StatusBadRequest)
		return
	}
	if err := s.dispatcher.Compact(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShutdown implements spec §6's Shutdown() / §8's idempotence
// requirement ("calling Shutdown twice has the effect of calling it once").
// requestShutdown itself is the idempotent part; this handler just invokes it.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.requestShutdown()
	w.WriteHeader(http.StatusNoContent)
}
