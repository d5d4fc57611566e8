package event

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"storefront-backend/internal/model"
)

// Store is the append-only domain event log. Aggregates are loaded from
// their current snapshot, not rebuilt from here; the log exists for
// audit and replay.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e model.DomainEvent) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	row := &model.StoredEvent{
		EventID:       e.EventID(),
		EventType:     e.EventType(),
		Payload:       payload,
		OccurredAt:    e.OccurredAt(),
		AggregateID:   e.AggregateID(),
		AggregateType: e.AggregateType(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("append stored event %s: %w", e.EventID(), err)
	}
	return nil
}

// EventsFor returns every stored event for one aggregate in occurrence
// order.
func (s *Store) EventsFor(ctx context.Context, aggregateID, aggregateType string) ([]model.DomainEvent, error) {
	var rows []model.StoredEvent
	err := s.db.WithContext(ctx).
		Where("aggregate_id = ? AND aggregate_type = ?", aggregateID, aggregateType).
		Order("occurred_at asc, created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load stored events for %s %s: %w", aggregateType, aggregateID, err)
	}

	events := make([]model.DomainEvent, 0, len(rows))
	for _, row := range rows {
		e, err := Decode(row.EventType, row.Payload)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
