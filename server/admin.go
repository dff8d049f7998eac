package server

import (
	"encoding/json"
	"net/http"
)

// HandleSettings serves the immutable tunables of a room.
// GET /admin/settings?room=main
func (m *Manager) HandleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "settings are read-only", http.StatusMethodNotAllowed)
		return
	}
	room, ok := m.Room(r.URL.Query().Get("room"))
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"room":     room.ID,
		"settings": room.Settings(),
	})
}

// HandleMetrics reports the counters of one room, or lists rooms when
// ?room= is "*".
// GET /metrics?room=main
func (m *Manager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("room")
	if id == "*" {
		writeJSON(w, map[string]any{"rooms": m.RoomIDs()})
		return
	}
	room, ok := m.Room(id)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"room":    room.ID,
		"metrics": room.Metrics().Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Log.Warnf("write response: %v", err)
	}
}
