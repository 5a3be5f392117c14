package models

import (
	"time"

	"gorm.io/gorm"
)

// Local mirror of the NetBox catalogs, rebuilt by netsync. Rows are keyed by
// netbox_id and replaced wholesale on every sync cycle.

type Site struct {
	gorm.Model
	NetBoxID        int64  `gorm:"column:netbox_id;uniqueIndex"`
	Name            string `gorm:"index"`
	Slug            string
	Status          string `gorm:"type:varchar(32)"`
	Description     string
	Facility        string
	TimeZone        string
	PhysicalAddress string
	SyncedAt        time.Time
}

func (Site) TableName() string { return "netbox_sites" }

type DeviceType struct {
	gorm.Model
	NetBoxID         int64 `gorm:"column:netbox_id;uniqueIndex"`
	ManufacturerName string
	ManufacturerSlug string
	ModelName        string `gorm:"column:model"`
	Slug             string
	PartNumber       string
	UHeight          float64
	IsFullDepth      bool
	SyncedAt         time.Time
}

func (DeviceType) TableName() string { return "netbox_device_types" }

type DeviceRole struct {
	gorm.Model
	NetBoxID    int64  `gorm:"column:netbox_id;uniqueIndex"`
	Name        string `gorm:"index"`
	Slug        string
	Color       string `gorm:"type:varchar(16)"`
	VMRole      bool
	Description string
	SyncedAt    time.Time
}

func (DeviceRole) TableName() string { return "netbox_device_roles" }

type Prefix struct {
	gorm.Model
	NetBoxID    int64  `gorm:"column:netbox_id;uniqueIndex"`
	CIDR        string `gorm:"column:cidr;type:varchar(64);index"`
	Family      string `gorm:"type:varchar(8)"` // "ipv4" | "ipv6"
	SiteID      *int64 `gorm:"index"`
	SiteName    string
	VLANID      *int64 `gorm:"column:vlan_id"`
	Status      string `gorm:"type:varchar(32)"`
	RoleName    string
	IsPool      bool
	Description string
	SyncedAt    time.Time
}

func (Prefix) TableName() string { return "netbox_prefixes" }

type VLAN struct {
	gorm.Model
	NetBoxID    int64 `gorm:"column:netbox_id;uniqueIndex"`
	VID         int   `gorm:"column:vid"`
	Name        string
	SiteID      *int64 `gorm:"index"`
	SiteName    string
	Status      string `gorm:"type:varchar(32)"`
	RoleName    string
	Description string
	SyncedAt    time.Time
}

func (VLAN) TableName() string { return "netbox_vlans" }

// CachedDevice — devices already registered in NetBox; synced last so that
// name-collision checks run against the freshest data.
type CachedDevice struct {
	gorm.Model
	NetBoxID       int64  `gorm:"column:netbox_id;uniqueIndex"`
	Name           string `gorm:"index"`
	DeviceTypeName string
	DeviceRoleName string
	SiteID         *int64
	SiteName       string
	Status         string `gorm:"type:varchar(32)"`
	PrimaryIP4     string `gorm:"column:primary_ip4;type:varchar(64)"`
	PrimaryIP6     string `gorm:"column:primary_ip6;type:varchar(64)"`
	Serial         string
	AssetTag       string
	PlatformName   string
	SyncedAt       time.Time
}

func (CachedDevice) TableName() string { return "netbox_devices" }

// CachedAddress — one NetBox IP address as of the last sync. Address is
// stored normalized, without the prefix-length suffix.
type CachedAddress struct {
	gorm.Model
	NetBoxID           int64  `gorm:"column:netbox_id;uniqueIndex"`
	Address            string `gorm:"type:varchar(45);index"`
	Status             string `gorm:"type:varchar(32)"`
	AssignedObjectType string
	AssignedObjectID   *int64
	DeviceName         string `gorm:"index"`
	InterfaceName      string
	DNSName            string `gorm:"column:dns_name"`
	Description        string
	SyncedAt           time.Time
}

func (CachedAddress) TableName() string { return "netbox_ip_addresses" }

// SyncStatus — one row per entity kind, upserted on every sync attempt.
type SyncStatus struct {
	gorm.Model
	EntityType    string `gorm:"type:varchar(32);uniqueIndex"`
	Status        string `gorm:"type:varchar(16)"` // in_progress | success | failed
	Message       string
	RecordsSynced int
	LastSyncAt    time.Time
}

func (SyncStatus) TableName() string { return "netbox_sync_status" }
