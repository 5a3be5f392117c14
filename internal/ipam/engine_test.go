package ipam

import (
	"testing"
	"time"

	"archiflow/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Prefix{},
		&models.CachedAddress{},
		&models.IPAllocation{},
	))
	return db
}

func testEngine(t *testing.T) (*Engine, *gorm.DB) {
	db := testDB(t)
	return NewEngine(NewRepo(db)), db
}

func seedPrefix(t *testing.T, db *gorm.DB, netboxID int64, cidr string) models.Prefix {
	t.Helper()
	vlanID := int64(100)
	p := models.Prefix{
		NetBoxID: netboxID,
		CIDR:     cidr,
		Family:   "ipv4",
		Status:   "active",
		VLANID:   &vlanID,
		SyncedAt: time.Now(),
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestPoolAddressesUnknownPool(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.PoolAddresses(999, 0)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestPoolAddressesMarksCacheAssignments(t *testing.T) {
	e, db := testEngine(t)
	seedPrefix(t, db, 7, "10.0.0.0/29")

	require.NoError(t, db.Create(&models.CachedAddress{
		NetBoxID:   1,
		Address:    "10.0.0.2",
		Status:     "active",
		DeviceName: "core-sw-01",
		SyncedAt:   time.Now(),
	}).Error)
	// assigned but outside the pool: must not leak in
	require.NoError(t, db.Create(&models.CachedAddress{
		NetBoxID:   2,
		Address:    "10.9.9.9",
		Status:     "active",
		DeviceName: "other",
		SyncedAt:   time.Now(),
	}).Error)
	// unassigned cache row: stays available
	require.NoError(t, db.Create(&models.CachedAddress{
		NetBoxID: 3,
		Address:  "10.0.0.3",
		Status:   "active",
		SyncedAt: time.Now(),
	}).Error)

	view, err := e.PoolAddresses(7, 0)
	require.NoError(t, err)
	assert.Equal(t, "netbox_cache", view.Source)
	require.Len(t, view.Addresses, 6) // /29 → .1-.6

	byAddr := map[string]PoolAddress{}
	for _, a := range view.Addresses {
		byAddr[a.IPAddress] = a
	}
	assert.True(t, byAddr["10.0.0.2"].IsAllocated)
	assert.Equal(t, "core-sw-01", byAddr["10.0.0.2"].DeviceName)
	assert.NotNil(t, byAddr["10.0.0.2"].AllocatedAt)
	assert.False(t, byAddr["10.0.0.3"].IsAllocated)
	assert.False(t, byAddr["10.0.0.1"].IsAllocated)
}

// Ledger claims must not surface in the pool view: occupancy comes from the
// cache alone until the next sync folds the claim in.
func TestPoolAddressesIgnoresLedger(t *testing.T) {
	e, db := testEngine(t)
	seedPrefix(t, db, 7, "10.0.0.0/29")

	rec, err := e.Allocate("10.0.0.4", "edge-rt-01", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)

	view, err := e.PoolAddresses(7, 0)
	require.NoError(t, err)
	for _, a := range view.Addresses {
		assert.False(t, a.IsAllocated, a.IPAddress)
	}
}

func TestPoolAddressesLimit(t *testing.T) {
	e, db := testEngine(t)
	seedPrefix(t, db, 7, "10.0.0.0/24")

	view, err := e.PoolAddresses(7, 5)
	require.NoError(t, err)
	assert.Len(t, view.Addresses, 5)
	// capacity reports the whole pool even when the window is truncated
	assert.Equal(t, 254, view.UsableCount)

	// limit <= 0 falls back to the default cap
	view, err = e.PoolAddresses(7, 0)
	require.NoError(t, err)
	assert.Len(t, view.Addresses, DefaultPoolLimit)
}

func TestPoolAddressesIPv6Pool(t *testing.T) {
	e, db := testEngine(t)
	seedPrefix(t, db, 8, "2001:db8::/64")

	_, err := e.PoolAddresses(8, 0)
	assert.ErrorIs(t, err, ErrIPv6NotSupported)
}

func TestAllocateAndConflict(t *testing.T) {
	e, _ := testEngine(t)

	rec, err := e.Allocate("10.0.0.5", "sw-01", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "10.0.0.5", rec.Address)
	assert.Equal(t, "sw-01", rec.DeviceName)
	assert.Equal(t, "static", rec.AllocationType)

	// second claim: negative result, not an error
	dup, err := e.Allocate("10.0.0.5", "sw-02", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestAllocateNormalizesSuffix(t *testing.T) {
	e, db := testEngine(t)

	rec, err := e.Allocate("10.0.0.5/24", "sw-01", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "10.0.0.5", rec.Address)

	// suffixed and bare forms hit the same ledger row
	dup, err := e.Allocate("10.0.0.5", "sw-02", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, dup)

	var count int64
	require.NoError(t, db.Model(&models.IPAllocation{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAllocateInvalidAddress(t *testing.T) {
	e, _ := testEngine(t)
	_, err := e.Allocate("not-an-ip", "sw-01", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAllocateFillsSubnetFromPool(t *testing.T) {
	e, db := testEngine(t)
	p := seedPrefix(t, db, 12, "172.16.0.0/24")

	rec, err := e.Allocate("172.16.0.10", "fw-01", &p.NetBoxID, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "172.16.0.0/24", rec.Subnet)
	require.NotNil(t, rec.VLANID)
	assert.EqualValues(t, 100, *rec.VLANID)
}

func TestReleaseThenReallocate(t *testing.T) {
	e, _ := testEngine(t)

	_, err := e.Allocate("10.0.0.5", "sw-01", nil, nil)
	require.NoError(t, err)

	rec, ok, err := e.Release("10.0.0.5/24")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sw-01", rec.DeviceName)

	// releasing again is a no-op, not an error
	_, ok, err = e.Release("10.0.0.5")
	require.NoError(t, err)
	assert.False(t, ok)

	// freed address is claimable immediately
	again, err := e.Allocate("10.0.0.5", "sw-02", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "sw-02", again.DeviceName)
}

func TestCleanupOrphans(t *testing.T) {
	e, db := testEngine(t)
	stale := time.Now().Add(-2 * time.Hour)

	// stale and unconfirmed: reaped
	require.NoError(t, db.Create(&models.IPAllocation{
		Address: "10.0.0.9", DeviceName: "ghost", AllocationType: "static", CreatedAt: stale,
	}).Error)
	// stale but confirmed by the cache: kept
	require.NoError(t, db.Create(&models.IPAllocation{
		Address: "10.0.0.10", DeviceName: "sw-01", AllocationType: "static", CreatedAt: stale,
	}).Error)
	require.NoError(t, db.Create(&models.CachedAddress{
		NetBoxID: 1, Address: "10.0.0.10", Status: "active", DeviceName: "sw-01", SyncedAt: time.Now(),
	}).Error)
	// fresh and unconfirmed: inside the grace window, kept
	_, err := e.Allocate("10.0.0.11", "new", nil, nil)
	require.NoError(t, err)

	n, err := e.CleanupOrphans()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var left []models.IPAllocation
	require.NoError(t, db.Order("address").Find(&left).Error)
	require.Len(t, left, 2)
	assert.Equal(t, "10.0.0.10", left[0].Address)
	assert.Equal(t, "10.0.0.11", left[1].Address)
}
