package models

import (
	"time"

	"gorm.io/gorm"
)

// NetworkDevice — a device modelled locally (placed on diagrams), distinct
// from CachedDevice which mirrors NetBox.
type NetworkDevice struct {
	gorm.Model
	Name         string `gorm:"index"`
	DeviceType   string `gorm:"type:varchar(32);index"`
	Manufacturer string
	ModelName    string `gorm:"column:model"`
	SerialNumber string
	AssetID      string
	Status       string `gorm:"type:varchar(32);default:active"`
	Location     string
	RackPosition string
	SiteID       *int64 `gorm:"index"`
	Metadata     string `gorm:"type:text"` // JSON bag from the diagram
	CreatedBy    string
}

func (NetworkDevice) TableName() string { return "network_devices" }

type Diagram struct {
	ID               string `gorm:"type:char(36);primaryKey"`
	SiteID           *int64
	Title            string
	Description      string
	DeploymentStatus string `gorm:"type:varchar(16);default:draft"` // draft | deployed
	DeployedAt       *time.Time
	ModifiedBy       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Diagram) TableName() string { return "diagrams" }

// DeviceDiagramMapping — placement of a device on a diagram. One row per
// (device, diagram) pair, upserted.
type DeviceDiagramMapping struct {
	gorm.Model
	DeviceID  uint   `gorm:"uniqueIndex:ux_device_diagram,priority:1"`
	DiagramID string `gorm:"type:char(36);uniqueIndex:ux_device_diagram,priority:2"`
	CellID    string
	X         float64 `gorm:"column:x_position"`
	Y         float64 `gorm:"column:y_position"`
	Width     float64
	Height    float64
	Style     string `gorm:"type:text"`
}

func (DeviceDiagramMapping) TableName() string { return "device_diagram_mappings" }

// NetBoxDeviceMapping — which NetBox device a deployed diagram device became.
type NetBoxDeviceMapping struct {
	gorm.Model
	DiagramID      string `gorm:"type:char(36);uniqueIndex:ux_netbox_mapping,priority:1"`
	DeviceName     string `gorm:"uniqueIndex:ux_netbox_mapping,priority:2"`
	DescriptorJSON string `gorm:"type:text"`
	NetBoxDeviceID int64  `gorm:"column:netbox_device_id;index"`
	DeployedAt     time.Time
}

func (NetBoxDeviceMapping) TableName() string { return "netbox_device_mappings" }
