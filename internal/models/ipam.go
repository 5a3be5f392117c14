package models

import "time"

// IPAllocation — the allocation ledger: an address this system has claimed,
// independent of NetBox's own bookkeeping. No soft delete: a released address
// must be immediately re-claimable, and the unique index on address is what
// makes a claim atomic under concurrent requests.
type IPAllocation struct {
	ID             uint   `gorm:"primaryKey"`
	Address        string `gorm:"type:varchar(45);uniqueIndex:ux_ip_allocations_address"`
	Subnet         string `gorm:"type:varchar(64)"`
	VLANID         *int64 `gorm:"column:vlan_id"`
	DeviceName     string `gorm:"index"`
	AllocationType string `gorm:"type:varchar(16);default:static"`
	CreatedAt      time.Time
}

func (IPAllocation) TableName() string { return "ip_allocations" }
