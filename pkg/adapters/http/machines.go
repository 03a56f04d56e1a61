package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/wizard/internal/presentation/graph"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/aretw0/wizard/pkg/machines"
)

type stateInfo struct {
	ID      string             `json:"id"`
	Initial string             `json:"initial,omitempty"`
	OnEntry []domain.Action    `json:"onEntry,omitempty"`
	OnExit  []domain.Action    `json:"onExit,omitempty"`
	Events  []domain.EventName `json:"events,omitempty"`
}

type machineInfo struct {
	Key     string            `json:"key"`
	Initial domain.StateValue `json:"initial"`
	States  []stateInfo       `json:"states"`
}

func describe(def *machine.Definition) machineInfo {
	info := machineInfo{Key: def.Key(), Initial: def.InitialState()}
	for _, st := range def.States() {
		info.States = append(info.States, stateInfo{
			ID:      st.ID(),
			Initial: st.Initial,
			OnEntry: st.OnEntry,
			OnExit:  st.OnExit,
			Events:  def.Events(st.Path),
		})
	}
	return info
}

// ListMachines handles GET /machines.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	keys := append([]string{machines.TutorialKey}, s.machines.Features()...)
	s.writeJSON(w, http.StatusOK, keys)
}

// GetMachine handles GET /machines/{key}.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	def, ok := s.machines.Table(key)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown machine %q", key)})
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		writeText(w, graph.GenerateMermaid(def, nil))
		return
	}
	s.writeJSON(w, http.StatusOK, describe(def))
}

// GetSessionGraph handles GET /sessions/{id}/graph. The tutorial table is drawn
// unless machine=feature asks for the current feature's table.
func (s *Server) GetSessionGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.sessions.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, "GetSessionGraph", err)
		return
	}

	key, overlay := machines.TutorialKey, &graph.GraphOverlay{CurrentState: snap.CurrentState.String()}
	if r.URL.Query().Get("machine") == "feature" {
		if snap.CurrentFeature == "" {
			s.fail(w, "GetSessionGraph", domain.ErrNoFeatureMachine)
			return
		}
		key = snap.CurrentFeature
		overlay = &graph.GraphOverlay{
			VisitedStates: snap.FeatureStateHistory,
			CurrentState:  snap.FeatureState.String(),
		}
	}

	def, ok := s.machines.Table(key)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown machine %q", key)})
		return
	}
	writeText(w, graph.GenerateMermaid(def, overlay))
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s))
}
