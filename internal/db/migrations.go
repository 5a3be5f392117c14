// internal/db/migrations.go
package db

import "gorm.io/gorm"

// MigrateAllocationUniqueIndex makes sure ip_allocations.address carries a
// real unique index. AutoMigrate creates it for fresh tables; this guards
// tables created before the constraint existed. The claim path relies on the
// index for its at-most-one-holder guarantee, so a miss here is fatal.
func MigrateAllocationUniqueIndex(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if !db.Migrator().HasTable("ip_allocations") {
		return nil
	}
	if db.Migrator().HasIndex("ip_allocations", "ux_ip_allocations_address") {
		return nil
	}

	switch db.Dialector.Name() {
	case "mysql":
		return db.Exec("CREATE UNIQUE INDEX `ux_ip_allocations_address` ON `ip_allocations` (`address`)").Error
	case "postgres":
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_ip_allocations_address ON "ip_allocations" ("address")`).Error
	default:
		return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_ip_allocations_address ON ip_allocations (address)`).Error
	}
}
