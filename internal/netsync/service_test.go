package netsync

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"archiflow/internal/models"
	"archiflow/internal/netbox"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeRegistry struct {
	sites       []netbox.Site
	deviceTypes []netbox.DeviceType
	deviceRoles []netbox.DeviceRole
	prefixes    []netbox.Prefix
	vlans       []netbox.VLAN
	devices     []netbox.Device
	addresses   []netbox.Address

	failOn string // entity whose fetch errors out
	calls  []string
}

var errBoom = errors.New("netbox unreachable")

func (f *fakeRegistry) fetch(entity string) error {
	f.calls = append(f.calls, entity)
	if f.failOn == entity {
		return errBoom
	}
	return nil
}

func (f *fakeRegistry) ListSites(context.Context) ([]netbox.Site, error) {
	return f.sites, f.fetch("sites")
}
func (f *fakeRegistry) ListDeviceTypes(context.Context) ([]netbox.DeviceType, error) {
	return f.deviceTypes, f.fetch("device_types")
}
func (f *fakeRegistry) ListDeviceRoles(context.Context) ([]netbox.DeviceRole, error) {
	return f.deviceRoles, f.fetch("device_roles")
}
func (f *fakeRegistry) ListPrefixes(context.Context, *int64) ([]netbox.Prefix, error) {
	return f.prefixes, f.fetch("prefixes")
}
func (f *fakeRegistry) ListVLANs(context.Context, *int64) ([]netbox.VLAN, error) {
	return f.vlans, f.fetch("vlans")
}
func (f *fakeRegistry) ListDevices(context.Context, url.Values) ([]netbox.Device, error) {
	return f.devices, f.fetch("devices")
}
func (f *fakeRegistry) ListAddresses(context.Context, url.Values) ([]netbox.Address, error) {
	return f.addresses, f.fetch("ip_addresses")
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Site{},
		&models.DeviceType{},
		&models.DeviceRole{},
		&models.Prefix{},
		&models.VLAN{},
		&models.CachedDevice{},
		&models.CachedAddress{},
		&models.SyncStatus{},
	))
	return db
}

func fullFake() *fakeRegistry {
	siteRef := &netbox.Ref{ID: 1, Name: "HQ"}
	return &fakeRegistry{
		sites: []netbox.Site{
			{ID: 1, Name: "HQ", Slug: "hq", Status: netbox.Choice{Value: "active"}},
			{ID: 2, Name: "Branch", Slug: "branch", Status: netbox.Choice{Value: "active"}},
		},
		deviceTypes: []netbox.DeviceType{
			{ID: 10, Manufacturer: netbox.Ref{ID: 3, Name: "Cisco", Slug: "cisco"}, Model: "C9300", Slug: "c9300"},
		},
		deviceRoles: []netbox.DeviceRole{
			{ID: 20, Name: "Access Switch", Slug: "access-switch"},
			{ID: 21, Name: "Router", Slug: "router"},
		},
		prefixes: []netbox.Prefix{
			{ID: 30, Prefix: "10.0.0.0/24", Family: netbox.Family{Value: 4}, Site: siteRef,
				VLAN: &netbox.VLAN{ID: 40, VID: 100, Name: "mgmt"}, Status: netbox.Choice{Value: "active"}, IsPool: true},
			{ID: 31, Prefix: "2001:db8::/64", Family: netbox.Family{Value: 6}, Status: netbox.Choice{Value: "active"}},
		},
		vlans: []netbox.VLAN{
			{ID: 40, VID: 100, Name: "mgmt", Site: siteRef, Status: netbox.Choice{Value: "active"}},
		},
		devices: []netbox.Device{
			{ID: 50, Name: "core-sw-01", Status: netbox.Choice{Value: "active"},
				DeviceType: &netbox.DeviceTypeRef{ID: 10, Model: "C9300"},
				Role:       &netbox.Ref{ID: 20, Name: "Access Switch"},
				Site:       siteRef,
				PrimaryIP4: &netbox.AddressRef{ID: 60, Address: "10.0.0.2/24"}},
		},
		addresses: []netbox.Address{
			{ID: 60, Address: "10.0.0.2/24", Status: netbox.Choice{Value: "active"},
				AssignedObject: &netbox.AssignedObject{ID: 70, Name: "Management",
					Device: &netbox.Ref{ID: 50, Name: "core-sw-01"}}},
			{ID: 61, Address: "10.0.0.3/24", Status: netbox.Choice{Value: "active"}},
		},
	}
}

func TestSyncAll(t *testing.T) {
	db := testDB(t)
	fake := fullFake()
	svc := NewService(db, fake)

	results, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	want := map[string]int{
		"sites": 2, "device_types": 1, "device_roles": 2,
		"prefixes": 2, "vlans": 1, "devices": 1, "ip_addresses": 2,
	}
	require.Len(t, results, len(want))
	for entity, count := range want {
		assert.True(t, results[entity].Success, entity)
		assert.Equal(t, count, results[entity].Count, entity)
	}

	// fetch order follows the dependency chain
	assert.Equal(t, []string{"sites", "device_types", "device_roles", "prefixes", "vlans", "devices", "ip_addresses"}, fake.calls)

	// cached address is stored without the prefix suffix, with the device
	var addr models.CachedAddress
	require.NoError(t, db.Where("netbox_id = ?", 60).First(&addr).Error)
	assert.Equal(t, "10.0.0.2", addr.Address)
	assert.Equal(t, "core-sw-01", addr.DeviceName)
	assert.Equal(t, "Management", addr.InterfaceName)

	var prefix models.Prefix
	require.NoError(t, db.Where("netbox_id = ?", 31).First(&prefix).Error)
	assert.Equal(t, "ipv6", prefix.Family)

	statuses, err := svc.Statuses()
	require.NoError(t, err)
	require.Len(t, statuses, 7)
	for _, st := range statuses {
		assert.Equal(t, "success", st.Status, st.EntityType)
	}
}

func TestSyncAllIdempotent(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, fullFake())

	first, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	second, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// no duplicates accumulated
	var count int64
	require.NoError(t, db.Model(&models.Site{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
	require.NoError(t, db.Model(&models.CachedAddress{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestSyncAllFailureAbortsSequence(t *testing.T) {
	db := testDB(t)
	fake := fullFake()
	fake.failOn = "prefixes"
	svc := NewService(db, fake)

	results, err := svc.SyncAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	// earlier steps committed, failed step recorded, later steps never ran
	assert.True(t, results["sites"].Success)
	assert.True(t, results["device_roles"].Success)
	assert.False(t, results["prefixes"].Success)
	_, ran := results["vlans"]
	assert.False(t, ran)
	assert.Equal(t, []string{"sites", "device_types", "device_roles", "prefixes"}, fake.calls)

	var st models.SyncStatus
	require.NoError(t, db.Where("entity_type = ?", "prefixes").First(&st).Error)
	assert.Equal(t, "failed", st.Status)
	assert.Contains(t, st.Message, "netbox unreachable")

	st = models.SyncStatus{}
	require.NoError(t, db.Where("entity_type = ?", "sites").First(&st).Error)
	assert.Equal(t, "success", st.Status)

	// sites landed despite the later failure
	var count int64
	require.NoError(t, db.Model(&models.Site{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

// A failed cycle must leave the previous device/address cache in place:
// those tables are only replaced inside their own steps, so occupancy reads
// go stale on failure, never empty.
func TestSyncFailureKeepsOccupancyCache(t *testing.T) {
	db := testDB(t)
	fake := fullFake()
	svc := NewService(db, fake)

	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	fake.failOn = "sites"
	_, err = svc.SyncAll(context.Background())
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.CachedAddress{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
	require.NoError(t, db.Model(&models.CachedDevice{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var addr models.CachedAddress
	require.NoError(t, db.Where("netbox_id = ?", 60).First(&addr).Error)
	assert.Equal(t, "core-sw-01", addr.DeviceName)
}

// A device removed upstream must disappear from the cache on the next sync.
func TestSyncAllDropsStaleRows(t *testing.T) {
	db := testDB(t)
	fake := fullFake()
	svc := NewService(db, fake)

	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	fake.devices = nil
	fake.addresses = fake.addresses[:1]
	_, err = svc.SyncAll(context.Background())
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.CachedDevice{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
	require.NoError(t, db.Model(&models.CachedAddress{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCachedReadsFilterBySite(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, fullFake())
	_, err := svc.SyncAll(context.Background())
	require.NoError(t, err)

	siteID := int64(1)
	prefixes, err := svc.CachedPrefixes(&siteID)
	require.NoError(t, err)
	require.Len(t, prefixes, 1)
	assert.Equal(t, "10.0.0.0/24", prefixes[0].CIDR)

	all, err := svc.CachedPrefixes(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	vlans, err := svc.CachedVLANs(&siteID)
	require.NoError(t, err)
	require.Len(t, vlans, 1)
	assert.Equal(t, 100, vlans[0].VID)
}
