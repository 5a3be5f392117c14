package ipam

import (
	"errors"
	"time"

	"archiflow/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// PrefixByNetBoxID — resolve a cached prefix by its NetBox id.
func (r *Repo) PrefixByNetBoxID(id int64) (*models.Prefix, error) {
	var p models.Prefix
	if err := r.db.Where("netbox_id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// AssignedAddresses — cached addresses that NetBox reports as attached to a
// device. Containment filtering happens in the engine; the cache stores bare
// addresses so the subnet test cannot be pushed into SQL portably.
func (r *Repo) AssignedAddresses() ([]models.CachedAddress, error) {
	var out []models.CachedAddress
	err := r.db.Where("device_name <> ''").Find(&out).Error
	return out, err
}

// Claim inserts the ledger record unless its address is already held. The
// insert rides the unique index on address: zero rows affected means a
// concurrent or earlier claim won, with no check-then-act window.
func (r *Repo) Claim(rec *models.IPAllocation) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindAllocation — current holder of an address, nil if unclaimed.
func (r *Repo) FindAllocation(address string) (*models.IPAllocation, error) {
	var rec models.IPAllocation
	err := r.db.Where("address = ?", NormalizeAddress(address)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Release deletes the allocation for an address. Returns the released record
// and false when nothing was held (idempotent).
func (r *Repo) Release(address string) (*models.IPAllocation, bool, error) {
	rec, err := r.FindAllocation(address)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, nil
	}
	if err := r.db.Delete(&models.IPAllocation{}, rec.ID).Error; err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Allocations — full ledger, oldest claim first.
func (r *Repo) Allocations() ([]models.IPAllocation, error) {
	var out []models.IPAllocation
	err := r.db.Order("created_at, id").Find(&out).Error
	return out, err
}

// CleanupOrphans removes ledger rows older than the grace window whose
// address the cache does not show assigned to any device — claims that never
// made it to NetBox (failed deploys, abandoned reservations).
func (r *Repo) CleanupOrphans(grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace)
	assigned := r.db.Model(&models.CachedAddress{}).
		Select("address").
		Where("device_name <> ''")
	res := r.db.
		Where("created_at < ?", cutoff).
		Where("address NOT IN (?)", assigned).
		Delete(&models.IPAllocation{})
	return res.RowsAffected, res.Error
}
