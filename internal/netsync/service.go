package netsync

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"archiflow/internal/ipam"
	"archiflow/internal/logs"
	"archiflow/internal/models"
	"archiflow/internal/netbox"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registry — the read surface of NetBox the sync consumes. Satisfied by
// *netbox.Client; declared here so tests can substitute a fake.
type Registry interface {
	ListSites(ctx context.Context) ([]netbox.Site, error)
	ListDeviceTypes(ctx context.Context) ([]netbox.DeviceType, error)
	ListDeviceRoles(ctx context.Context) ([]netbox.DeviceRole, error)
	ListPrefixes(ctx context.Context, siteID *int64) ([]netbox.Prefix, error)
	ListVLANs(ctx context.Context, siteID *int64) ([]netbox.VLAN, error)
	ListDevices(ctx context.Context, filters url.Values) ([]netbox.Device, error)
	ListAddresses(ctx context.Context, filters url.Values) ([]netbox.Address, error)
}

// Service mirrors the NetBox catalogs into the local cache tables.
type Service struct {
	db *gorm.DB
	nb Registry
}

func NewService(db *gorm.DB, nb Registry) *Service { return &Service{db: db, nb: nb} }

// Ping — connection test against the registry, when the backend supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.nb.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

type EntityResult struct {
	Count   int  `json:"count"`
	Success bool `json:"success"`
}

// SyncAll rebuilds every cache table. Entity types run strictly in dependency
// order; the first failure is recorded in sync status and aborts the rest of
// the sequence. Earlier types stay committed — partial sync is recoverable by
// re-running. Devices and addresses go last so that name-collision and
// occupancy checks see the freshest data.
func (s *Service) SyncAll(ctx context.Context) (map[string]EntityResult, error) {
	logs.Logger.Info("netsync: starting full sync")

	// Child tables carry FKs to sites/device types/roles; clear them first or
	// the parent deletes fail.
	if err := s.preClear(); err != nil {
		return nil, fmt.Errorf("netsync: pre-clear: %w", err)
	}

	steps := []struct {
		entity string
		run    func(context.Context) (int, error)
	}{
		{"sites", s.syncSites},
		{"device_types", s.syncDeviceTypes},
		{"device_roles", s.syncDeviceRoles},
		{"prefixes", s.syncPrefixes},
		{"vlans", s.syncVLANs},
		{"devices", s.syncDevices},
		{"ip_addresses", s.syncAddresses},
	}

	results := make(map[string]EntityResult, len(steps))
	for _, st := range steps {
		n, err := s.runStep(ctx, st.entity, st.run)
		if err != nil {
			results[st.entity] = EntityResult{Success: false}
			return results, fmt.Errorf("netsync: %s: %w", st.entity, err)
		}
		results[st.entity] = EntityResult{Count: n, Success: true}
	}

	logs.Logger.Info("netsync: full sync completed")
	return results, nil
}

// preClear empties the catalog tables, FK children before parents. Devices
// and addresses are NOT touched here: those tables are replaced inside their
// own steps at the end of the sequence, so an early failure leaves the
// occupancy cache stale rather than empty.
func (s *Service) preClear() error {
	for _, table := range []string{
		// children first
		"netbox_prefixes",
		"netbox_vlans",
		// then parents
		"netbox_sites",
		"netbox_device_types",
		"netbox_device_roles",
	} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) runStep(ctx context.Context, entity string, run func(context.Context) (int, error)) (int, error) {
	s.setStatus(entity, "in_progress", "fetching "+entity+" from netbox", 0)
	n, err := run(ctx)
	if err != nil {
		s.setStatus(entity, "failed", err.Error(), 0)
		logs.Logger.Errorf("netsync: %s failed: %v", entity, err)
		return 0, err
	}
	s.setStatus(entity, "success", fmt.Sprintf("synced %d %s", n, entity), n)
	logs.Logger.Infof("netsync: synced %d %s", n, entity)
	return n, nil
}

func (s *Service) setStatus(entity, status, message string, count int) {
	row := models.SyncStatus{
		EntityType:    entity,
		Status:        status,
		Message:       message,
		RecordsSynced: count,
		LastSyncAt:    time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "records_synced", "last_sync_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		logs.Logger.Warnf("netsync: sync status %s: %v", entity, err)
	}
}

func upsertByNetBoxID[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "netbox_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func (s *Service) syncSites(ctx context.Context) (int, error) {
	sites, err := s.nb.ListSites(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.Site, 0, len(sites))
	for _, site := range sites {
		rows = append(rows, models.Site{
			NetBoxID:        site.ID,
			Name:            site.Name,
			Slug:            site.Slug,
			Status:          site.Status.Value,
			Description:     site.Description,
			Facility:        site.Facility,
			TimeZone:        site.TimeZone,
			PhysicalAddress: site.PhysicalAddress,
			SyncedAt:        now,
		})
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		return upsertByNetBoxID(tx, rows)
	})
}

func (s *Service) syncDeviceTypes(ctx context.Context) (int, error) {
	types, err := s.nb.ListDeviceTypes(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.DeviceType, 0, len(types))
	for _, dt := range types {
		rows = append(rows, models.DeviceType{
			NetBoxID:         dt.ID,
			ManufacturerName: dt.Manufacturer.Name,
			ManufacturerSlug: dt.Manufacturer.Slug,
			ModelName:        dt.Model,
			Slug:             dt.Slug,
			PartNumber:       dt.PartNumber,
			UHeight:          dt.UHeight,
			IsFullDepth:      dt.IsFullDepth,
			SyncedAt:         now,
		})
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		return upsertByNetBoxID(tx, rows)
	})
}

func (s *Service) syncDeviceRoles(ctx context.Context) (int, error) {
	roles, err := s.nb.ListDeviceRoles(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.DeviceRole, 0, len(roles))
	for _, role := range roles {
		rows = append(rows, models.DeviceRole{
			NetBoxID:    role.ID,
			Name:        role.Name,
			Slug:        role.Slug,
			Color:       role.Color,
			VMRole:      role.VMRole,
			Description: role.Description,
			SyncedAt:    now,
		})
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		return upsertByNetBoxID(tx, rows)
	})
}

func (s *Service) syncPrefixes(ctx context.Context) (int, error) {
	prefixes, err := s.nb.ListPrefixes(ctx, nil)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.Prefix, 0, len(prefixes))
	for _, p := range prefixes {
		row := models.Prefix{
			NetBoxID:    p.ID,
			CIDR:        p.Prefix,
			Family:      familyString(p.Family.Value),
			Status:      p.Status.Value,
			IsPool:      p.IsPool,
			Description: p.Description,
			SyncedAt:    now,
		}
		if p.Site != nil {
			row.SiteID = &p.Site.ID
			row.SiteName = p.Site.Name
		}
		if p.VLAN != nil {
			row.VLANID = &p.VLAN.ID
		}
		if p.Role != nil {
			row.RoleName = p.Role.Name
		}
		rows = append(rows, row)
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		return upsertByNetBoxID(tx, rows)
	})
}

func (s *Service) syncVLANs(ctx context.Context) (int, error) {
	vlans, err := s.nb.ListVLANs(ctx, nil)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.VLAN, 0, len(vlans))
	for _, v := range vlans {
		row := models.VLAN{
			NetBoxID:    v.ID,
			VID:         v.VID,
			Name:        v.Name,
			Status:      v.Status.Value,
			Description: v.Description,
			SyncedAt:    now,
		}
		if v.Site != nil {
			row.SiteID = &v.Site.ID
			row.SiteName = v.Site.Name
		}
		if v.Role != nil {
			row.RoleName = v.Role.Name
		}
		rows = append(rows, row)
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		return upsertByNetBoxID(tx, rows)
	})
}

func (s *Service) syncDevices(ctx context.Context) (int, error) {
	devices, err := s.nb.ListDevices(ctx, nil)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.CachedDevice, 0, len(devices))
	for _, d := range devices {
		row := models.CachedDevice{
			NetBoxID: d.ID,
			Name:     d.Name,
			Status:   d.Status.Value,
			Serial:   d.Serial,
			AssetTag: d.AssetTag,
			SyncedAt: now,
		}
		if row.Status == "" {
			row.Status = "active"
		}
		if d.DeviceType != nil {
			row.DeviceTypeName = d.DeviceType.Model
		}
		if role := d.RoleRef(); role != nil {
			row.DeviceRoleName = role.Name
		}
		if d.Site != nil {
			row.SiteID = &d.Site.ID
			row.SiteName = d.Site.Name
		}
		if d.PrimaryIP4 != nil {
			row.PrimaryIP4 = d.PrimaryIP4.Address
		}
		if d.PrimaryIP6 != nil {
			row.PrimaryIP6 = d.PrimaryIP6.Address
		}
		if d.Platform != nil {
			row.PlatformName = d.Platform.Name
		}
		rows = append(rows, row)
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM netbox_devices").Error; err != nil {
			return err
		}
		return upsertByNetBoxID(tx, rows)
	})
}

func (s *Service) syncAddresses(ctx context.Context) (int, error) {
	addrs, err := s.nb.ListAddresses(ctx, nil)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	rows := make([]models.CachedAddress, 0, len(addrs))
	for _, a := range addrs {
		row := models.CachedAddress{
			NetBoxID:           a.ID,
			Address:            ipam.NormalizeAddress(a.Address),
			Status:             a.Status.Value,
			AssignedObjectType: a.AssignedObjectType,
			AssignedObjectID:   a.AssignedObjectID,
			DNSName:            a.DNSName,
			Description:        a.Description,
			SyncedAt:           now,
		}
		if row.Status == "" {
			row.Status = "active"
		}
		if a.AssignedObject != nil {
			row.InterfaceName = a.AssignedObject.Name
			if a.AssignedObject.Device != nil {
				row.DeviceName = a.AssignedObject.Device.Name
			}
		}
		rows = append(rows, row)
	}
	return len(rows), s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM netbox_ip_addresses").Error; err != nil {
			return err
		}
		return upsertByNetBoxID(tx, rows)
	})
}

func familyString(v int) string {
	if v == 6 {
		return "ipv6"
	}
	return "ipv4"
}

// ── cached reads (for the UI layer) ─────────────────────────

func (s *Service) CachedSites() ([]models.Site, error) {
	var out []models.Site
	err := s.db.Order("name").Find(&out).Error
	return out, err
}

func (s *Service) CachedDeviceTypes() ([]models.DeviceType, error) {
	var out []models.DeviceType
	err := s.db.Order("manufacturer_name, model").Find(&out).Error
	return out, err
}

func (s *Service) CachedDeviceRoles() ([]models.DeviceRole, error) {
	var out []models.DeviceRole
	err := s.db.Order("name").Find(&out).Error
	return out, err
}

func (s *Service) CachedPrefixes(siteID *int64) ([]models.Prefix, error) {
	q := s.db.Order("cidr")
	if siteID != nil {
		q = q.Where("site_id = ?", *siteID)
	}
	var out []models.Prefix
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) CachedVLANs(siteID *int64) ([]models.VLAN, error) {
	q := s.db.Order("vid")
	if siteID != nil {
		q = q.Where("site_id = ?", *siteID)
	}
	var out []models.VLAN
	err := q.Find(&out).Error
	return out, err
}

func (s *Service) Statuses() ([]models.SyncStatus, error) {
	var out []models.SyncStatus
	err := s.db.Order("entity_type").Find(&out).Error
	return out, err
}
