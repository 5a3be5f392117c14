package deploy

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type HTTP struct{ orch *Orchestrator }

func NewHTTP(o *Orchestrator) *HTTP { return &HTTP{orch: o} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/deploy").Subrouter()

	// POST /api/v1/deploy/diagrams/{diagramID}  { site_id, devices: [...] }
	api.HandleFunc("/diagrams/{diagramID}", h.deployDiagram).Methods(http.MethodPost)
}

func (h *HTTP) deployDiagram(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	diagramID := mux.Vars(r)["diagramID"]
	var in struct {
		SiteID  int64           `json:"site_id"`
		Devices []RawDescriptor `json:"devices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.SiteID == 0 {
		http.Error(w, "invalid body (need {site_id, devices})", http.StatusBadRequest)
		return
	}

	// Per-device failures land in the summary, not in an HTTP error.
	summary, err := h.orch.DeployDiagram(r.Context(), diagramID, in.Devices, in.SiteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(summary)
}
