package repo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"archiflow/internal/models"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type HTTP struct{ store *DeviceStore }

func NewHTTP(s *DeviceStore) *HTTP { return &HTTP{store: s} }

func (h *HTTP) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/devices", h.createDevice).Methods(http.MethodPost)
	api.HandleFunc("/devices", h.listDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.getDevice).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}", h.updateDevice).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/devices/{id}", h.deleteDevice).Methods(http.MethodDelete)

	api.HandleFunc("/diagrams", h.createDiagram).Methods(http.MethodPost)
	api.HandleFunc("/diagrams/{diagramID}", h.getDiagram).Methods(http.MethodGet)
	api.HandleFunc("/diagrams/{diagramID}/devices", h.placedDevices).Methods(http.MethodGet)
	api.HandleFunc("/diagrams/{diagramID}/devices", h.placeDevice).Methods(http.MethodPost)
}

func deviceID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	return uint(id), err == nil && id != 0
}

func (h *HTTP) createDevice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var d models.NetworkDevice
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if d.Name == "" || d.DeviceType == "" {
		http.Error(w, "name and device_type are required", http.StatusBadRequest)
		return
	}
	if err := h.store.Create(&d); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) listDevices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	f := DeviceFilters{
		DeviceType: r.URL.Query().Get("device_type"),
		Status:     r.URL.Query().Get("status"),
	}
	if s := r.URL.Query().Get("site_id"); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			f.SiteID = &id
		}
	}
	out, err := h.store.List(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) getDevice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := deviceID(r)
	if !ok {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	d, err := h.store.Get(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) updateDevice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id, ok := deviceID(r)
	if !ok {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	d, err := h.store.Update(id, patch)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "device not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(r)
	if !ok {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		return
	}
	if err := h.store.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) createDiagram(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		ID     string `json:"id"`
		SiteID *int64 `json:"site_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	d, err := h.store.EnsureDiagram(in.ID, in.SiteID, in.Title)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) getDiagram(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	d, err := h.store.GetDiagram(mux.Vars(r)["diagramID"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "diagram not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(d)
}

func (h *HTTP) placedDevices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := h.store.DevicesInDiagram(mux.Vars(r)["diagramID"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (h *HTTP) placeDevice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	diagramID := mux.Vars(r)["diagramID"]
	var in struct {
		DeviceID uint    `json:"device_id"`
		CellID   string  `json:"cell_id"`
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
		Style    string  `json:"style"`
		By       string  `json:"modified_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if in.DeviceID == 0 {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	if _, err := h.store.EnsureDiagram(diagramID, nil, ""); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	m, err := h.store.MapDeviceToDiagram(in.DeviceID, diagramID, CellGeometry{
		CellID: in.CellID, X: in.X, Y: in.Y,
		Width: in.Width, Height: in.Height, Style: in.Style,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	by := in.By
	if by == "" {
		by = "system"
	}
	_ = h.store.TouchDiagram(diagramID, by)
	_ = json.NewEncoder(w).Encode(m)
}
