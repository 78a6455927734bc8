package model

import "time"

// Register is an operational cash point. Its ID is usually the owning
// operator's user id. TimeZone is an IANA zone name that defines the
// register's calendar day; empty means the service default.
type Register struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	TenantID  string `gorm:"type:varchar(64);not null;index"`
	Name      string `gorm:"not null"`
	TimeZone  string `gorm:"type:varchar(64)"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the register's zone, falling back to def when unset or
// unknown.
func (r Register) Location(def *time.Location) *time.Location {
	if r.TimeZone == "" {
		return def
	}
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return def
	}
	return loc
}
