package models

import "time"

// Entry is the catalog row for a cache key. The file store stays the source
// of truth for liveness; rows are pruned when the store reports a miss.
type Entry struct {
	Key        string    `json:"key" gorm:"column:cache_key;primaryKey"`
	HashedID   string    `json:"hashedId" gorm:"column:hashed_id;not null"`
	Size       int       `json:"size"`
	TTLSeconds int64     `json:"ttlSeconds" gorm:"column:ttl_seconds"`
	ExpiresAt  time.Time `json:"expiresAt" gorm:"column:expires_at;index"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Entry Model
func (Entry) TableName() string {
	return "entries"
}
