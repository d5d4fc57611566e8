package model

import "time"

// StoredEvent is the persisted form of a DomainEvent. Rows are appended
// once and never updated or deleted.
type StoredEvent struct {
	EventID       string    `gorm:"primaryKey;size:64;not null"`
	EventType     string    `gorm:"size:64;index;not null"`
	Payload       []byte    `gorm:"not null"`
	OccurredAt    time.Time `gorm:"index;not null"`
	AggregateID   string    `gorm:"size:64;index:idx_stored_events_aggregate;not null"`
	AggregateType string    `gorm:"size:32;index:idx_stored_events_aggregate;not null"`
	CreatedAt     time.Time
}
