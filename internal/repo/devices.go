package repo

import (
	"errors"
	"time"

	"archiflow/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceStore struct {
	db *gorm.DB
}

func NewDeviceStore(db *gorm.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

type DeviceFilters struct {
	DeviceType string
	Status     string
	SiteID     *int64
}

func (s *DeviceStore) Create(d *models.NetworkDevice) error {
	if d.Status == "" {
		d.Status = "active"
	}
	if d.CreatedBy == "" {
		d.CreatedBy = "system"
	}
	return s.db.Create(d).Error
}

func (s *DeviceStore) Get(id uint) (*models.NetworkDevice, error) {
	var d models.NetworkDevice
	if err := s.db.First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) List(f DeviceFilters) ([]models.NetworkDevice, error) {
	q := s.db.Order("name")
	if f.DeviceType != "" {
		q = q.Where("device_type = ?", f.DeviceType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.SiteID != nil {
		q = q.Where("site_id = ?", *f.SiteID)
	}
	var out []models.NetworkDevice
	err := q.Find(&out).Error
	return out, err
}

// Update — patch the allowed mutable fields only.
func (s *DeviceStore) Update(id uint, updates map[string]any) (*models.NetworkDevice, error) {
	allowed := map[string]struct{}{
		"name": {}, "device_type": {}, "manufacturer": {}, "model": {},
		"serial_number": {}, "asset_id": {}, "status": {}, "location": {},
		"rack_position": {}, "site_id": {}, "metadata": {},
	}
	patch := map[string]any{}
	for k, v := range updates {
		if _, ok := allowed[k]; ok {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		return s.Get(id)
	}
	if err := s.db.Model(&models.NetworkDevice{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

func (s *DeviceStore) Delete(id uint) error {
	return s.db.Delete(&models.NetworkDevice{}, id).Error
}

// ── diagrams ────────────────────────────────────────────────

// EnsureDiagram — create the diagram row if it does not exist yet; returns
// the current row either way.
func (s *DeviceStore) EnsureDiagram(id string, siteID *int64, title string) (*models.Diagram, error) {
	if id == "" {
		id = uuid.NewString()
	}
	var d models.Diagram
	err := s.db.Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d = models.Diagram{
			ID:               id,
			SiteID:           siteID,
			Title:            title,
			DeploymentStatus: "draft",
			ModifiedBy:       "system",
		}
		if err := s.db.Create(&d).Error; err != nil {
			return nil, err
		}
		return &d, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) GetDiagram(id string) (*models.Diagram, error) {
	var d models.Diagram
	if err := s.db.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ── diagram placement ───────────────────────────────────────

type CellGeometry struct {
	CellID string
	X, Y   float64
	Width  float64
	Height float64
	Style  string
}

// MapDeviceToDiagram upserts the placement row keyed (device_id, diagram_id).
func (s *DeviceStore) MapDeviceToDiagram(deviceID uint, diagramID string, cell CellGeometry) (*models.DeviceDiagramMapping, error) {
	row := models.DeviceDiagramMapping{
		DeviceID:  deviceID,
		DiagramID: diagramID,
		CellID:    cell.CellID,
		X:         cell.X,
		Y:         cell.Y,
		Width:     cell.Width,
		Height:    cell.Height,
		Style:     cell.Style,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}, {Name: "diagram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cell_id", "x_position", "y_position", "width", "height", "style", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

type PlacedDevice struct {
	models.NetworkDevice
	CellID string  `json:"cell_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DevicesInDiagram — devices placed on a diagram with their geometry.
func (s *DeviceStore) DevicesInDiagram(diagramID string) ([]PlacedDevice, error) {
	var mappings []models.DeviceDiagramMapping
	if err := s.db.Where("diagram_id = ?", diagramID).Find(&mappings).Error; err != nil {
		return nil, err
	}
	out := make([]PlacedDevice, 0, len(mappings))
	for _, m := range mappings {
		d, err := s.Get(m.DeviceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, PlacedDevice{
			NetworkDevice: *d,
			CellID:        m.CellID,
			X:             m.X,
			Y:             m.Y,
			Width:         m.Width,
			Height:        m.Height,
		})
	}
	return out, nil
}

// TouchDiagram bumps modified metadata after geometry changes.
func (s *DeviceStore) TouchDiagram(id, modifiedBy string) error {
	return s.db.Model(&models.Diagram{}).Where("id = ?", id).
		Updates(map[string]any{"modified_by": modifiedBy, "updated_at": time.Now()}).Error
}
