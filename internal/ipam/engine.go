package ipam

import (
	"errors"
	"fmt"
	"net"
	"time"

	"archiflow/internal/logs"
	"archiflow/internal/models"

	"gorm.io/gorm"
)

var (
	ErrPoolNotFound   = errors.New("ip pool not found")
	ErrInvalidAddress = errors.New("invalid ip address")
)

const (
	// DefaultPoolLimit caps pool browsing; ample for the /24s this is used on.
	DefaultPoolLimit = 254
	// OrphanGrace — how long an unconfirmed ledger claim survives before the
	// cleanup sweep may reap it. Long enough to cover a deploy plus one sync.
	OrphanGrace = time.Hour
)

// Engine answers pool occupancy and performs claim/release against the
// ledger. Occupancy for display comes from the reconciliation cache only: the
// ledger is transient bookkeeping that the next sync folds into the cache, so
// a just-claimed address shows as available until then (stated in the
// response via Source/SyncedAt).
type Engine struct {
	repo *Repo
}

func NewEngine(repo *Repo) *Engine { return &Engine{repo: repo} }

type PoolAddress struct {
	IPAddress   string     `json:"ip_address"`
	IsAllocated bool       `json:"is_allocated"`
	DeviceName  string     `json:"device_name,omitempty"`
	AllocatedAt *time.Time `json:"allocated_at,omitempty"`
}

type PoolView struct {
	Prefix   models.Prefix `json:"prefix"`
	Source   string        `json:"source"` // occupancy source, always "netbox_cache"
	SyncedAt time.Time     `json:"synced_at"`
	// UsableCount is the pool's full host capacity; Addresses may be a
	// truncated window of it.
	UsableCount int           `json:"usable_count"`
	Addresses   []PoolAddress `json:"addresses"`
}

// PoolAddresses enumerates the prefix's usable hosts and marks each one
// allocated where the cache shows a device assignment inside the CIDR.
func (e *Engine) PoolAddresses(prefixNetBoxID int64, limit int) (*PoolView, error) {
	prefix, err := e.repo.PrefixByNetBoxID(prefixNetBoxID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: netbox_id=%d", ErrPoolNotFound, prefixNetBoxID)
	}
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultPoolLimit
	}
	hosts, err := EnumerateHosts(prefix.CIDR, limit)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", prefix.CIDR, err)
	}
	usable, err := UsableHostCount(prefix.CIDR)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", prefix.CIDR, err)
	}

	assigned, err := e.repo.AssignedAddresses()
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]models.CachedAddress, len(assigned))
	for _, a := range assigned {
		if Contains(prefix.CIDR, a.Address) {
			occupied[a.Address] = a
		}
	}

	view := &PoolView{
		Prefix:      *prefix,
		Source:      "netbox_cache",
		SyncedAt:    prefix.SyncedAt,
		UsableCount: usable,
		Addresses:   make([]PoolAddress, 0, len(hosts)),
	}
	for _, host := range hosts {
		pa := PoolAddress{IPAddress: host}
		if a, ok := occupied[host]; ok {
			pa.IsAllocated = true
			pa.DeviceName = a.DeviceName
			at := a.SyncedAt
			pa.AllocatedAt = &at
		}
		view.Addresses = append(view.Addresses, pa)
	}
	return view, nil
}

// Allocate claims an address for a device. Returns (nil, nil) when the
// address is already held — a negative result, not an error, so callers can
// tell "pool unchanged" from a hard failure. The claim itself is a single
// conditional insert; NetBox propagation is deploy's job, not ours.
func (e *Engine) Allocate(address, deviceName string, poolID *int64, vlanID *int64) (*models.IPAllocation, error) {
	addr := NormalizeAddress(address)
	if net.ParseIP(addr) == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	rec := &models.IPAllocation{
		Address:        addr,
		VLANID:         vlanID,
		DeviceName:     deviceName,
		AllocationType: "static",
	}
	// Best effort: record which subnet the claim belongs to.
	if poolID != nil {
		if prefix, err := e.repo.PrefixByNetBoxID(*poolID); err == nil {
			rec.Subnet = prefix.CIDR
			if vlanID == nil {
				rec.VLANID = prefix.VLANID
			}
		}
	}

	claimed, err := e.repo.Claim(rec)
	if err != nil {
		return nil, err
	}
	if !claimed {
		logs.Logger.Infof("ipam: %s already allocated", addr)
		return nil, nil
	}
	logs.Logger.Infof("ipam: allocated %s to %s", addr, deviceName)
	return rec, nil
}

// Allocations — the current ledger, oldest claim first.
func (e *Engine) Allocations() ([]models.IPAllocation, error) {
	return e.repo.Allocations()
}

// Release frees an address. ok=false means nothing was held (idempotent).
func (e *Engine) Release(address string) (*models.IPAllocation, bool, error) {
	rec, ok, err := e.repo.Release(address)
	if err != nil {
		return nil, false, err
	}
	if ok {
		logs.Logger.Infof("ipam: released %s", rec.Address)
	}
	return rec, ok, nil
}

// CleanupOrphans reaps stale unconfirmed claims; returns released count.
func (e *Engine) CleanupOrphans() (int64, error) {
	n, err := e.repo.CleanupOrphans(OrphanGrace)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logs.Logger.Infof("ipam: cleaned up %d orphaned allocations", n)
	}
	return n, nil
}
