package ipam

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type HTTP struct{ engine *Engine }

func NewHTTP(e *Engine) *HTTP { return &HTTP{engine: e} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1/ipam").Subrouter()

	// GET /api/v1/ipam/pools/{netboxID}/addresses?limit=254
	api.HandleFunc("/pools/{netboxID}/addresses", h.poolAddresses).Methods(http.MethodGet)

	// POST /api/v1/ipam/allocations  { address, device_name, pool_id, vlan_id }
	api.HandleFunc("/allocations", h.allocate).Methods(http.MethodPost)

	// GET /api/v1/ipam/allocations — current ledger
	api.HandleFunc("/allocations", h.allocations).Methods(http.MethodGet)

	// DELETE /api/v1/ipam/allocations/{address}
	api.HandleFunc("/allocations/{address}", h.release).Methods(http.MethodDelete)

	// POST /api/v1/ipam/allocations/cleanup
	api.HandleFunc("/allocations/cleanup", h.cleanup).Methods(http.MethodPost)
}

func (h *HTTP) poolAddresses(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id, err := strconv.ParseInt(mux.Vars(r)["netboxID"], 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid pool id", http.StatusBadRequest)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}

	view, err := h.engine.PoolAddresses(id, limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrPoolNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrIPv6NotSupported), errors.Is(err, ErrInvalidCIDR):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(view)
}

func (h *HTTP) allocate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var in struct {
		Address    string `json:"address"`
		DeviceName string `json:"device_name"`
		PoolID     *int64 `json:"pool_id"`
		VLANID     *int64 `json:"vlan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Address == "" {
		http.Error(w, "invalid body (need {address, device_name, pool_id, vlan_id})", http.StatusBadRequest)
		return
	}

	rec, err := h.engine.Allocate(in.Address, in.DeviceName, in.PoolID, in.VLANID)
	if err != nil {
		if errors.Is(err, ErrInvalidAddress) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		// conflict is a value, not an exception: pool unchanged
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "already_allocated",
			"address": NormalizeAddress(in.Address),
		})
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rec)
}

func (h *HTTP) allocations(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	rows, err := h.engine.Allocations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(rows)
}

func (h *HTTP) release(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	address := mux.Vars(r)["address"]
	rec, ok, err := h.engine.Release(address)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"released": false,
			"address":  NormalizeAddress(address),
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"released": true,
		"record":   rec,
	})
}

func (h *HTTP) cleanup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	n, err := h.engine.CleanupOrphans()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int64{"released": n})
}
