package netsync

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type HTTP struct{ svc *Service }

func NewHTTP(s *Service) *HTTP { return &HTTP{svc: s} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/netbox").Subrouter()

	// POST /api/v1/netbox/sync — manual full sync
	api.HandleFunc("/sync", h.syncAll).Methods(http.MethodPost)
	// GET /api/v1/netbox/sync/status
	api.HandleFunc("/sync/status", h.status).Methods(http.MethodGet)
	// GET /api/v1/netbox/ping — connection test
	api.HandleFunc("/ping", h.ping).Methods(http.MethodGet)

	// cached catalog reads
	api.HandleFunc("/sites", h.sites).Methods(http.MethodGet)
	api.HandleFunc("/device-types", h.deviceTypes).Methods(http.MethodGet)
	api.HandleFunc("/device-roles", h.deviceRoles).Methods(http.MethodGet)
	api.HandleFunc("/prefixes", h.prefixes).Methods(http.MethodGet)
	api.HandleFunc("/vlans", h.vlans).Methods(http.MethodGet)
}

func (h *HTTP) syncAll(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	results, err := h.svc.SyncAll(r.Context())
	if err != nil {
		// partial sync is an accepted outcome: report what committed
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   err.Error(),
			"results": results,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"results": results,
	})
}

func (h *HTTP) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.svc.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"connected": false, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"connected": true})
}

func (h *HTTP) status(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rows, err := h.svc.Statuses()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func siteIDParam(r *http.Request) *int64 {
	s := r.URL.Query().Get("site_id")
	if s == "" {
		return nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func (h *HTTP) sites(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rows, err := h.svc.CachedSites()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *HTTP) deviceTypes(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rows, err := h.svc.CachedDeviceTypes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *HTTP) deviceRoles(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rows, err := h.svc.CachedDeviceRoles()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *HTTP) prefixes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rows, err := h.svc.CachedPrefixes(siteIDParam(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *HTTP) vlans(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rows, err := h.svc.CachedVLANs(siteIDParam(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}
