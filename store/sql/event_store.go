package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/healthsync/go-connectors/core"
	"github.com/uptrace/bun"
)

const (
	eventStatusPending    = "pending"
	eventStatusDispatched = "dispatched"
)

// EventStore is the durable event queue: webhook intake appends rows and the
// dispatch worker drains them in arrival order.
type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
	now  func() time.Time
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	return &EventStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *EventStore) Enqueue(ctx context.Context, event core.NormalizedEvent) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: event store is not configured")
	}
	event.Vendor = core.NormalizeVendor(string(event.Vendor))
	event.UserID = strings.TrimSpace(event.UserID)
	if err := event.Vendor.Validate(); err != nil {
		return "", err
	}
	if event.UserID == "" {
		return "", fmt.Errorf("sqlstore: event user id is required")
	}

	now := s.clock()
	receivedAt := event.ReceivedAt.UTC()
	if event.ReceivedAt.IsZero() {
		receivedAt = now
	}
	payload := copyAnyMap(event.RawPayload)

	record := &eventRecord{
		ID:         uuid.NewString(),
		Vendor:     string(event.Vendor),
		UserID:     event.UserID,
		EventType:  strings.TrimSpace(event.EventType),
		ResourceID: strings.TrimSpace(event.ResourceID),
		TraceID:    strings.TrimSpace(event.TraceID),
		RawPayload: payload,
		Status:     eventStatusPending,
		ReceivedAt: receivedAt,
		CreatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return "", err
	}
	return record.ID, nil
}

// DequeuePending returns up to limit undispatched events, oldest first.
func (s *EventStore) DequeuePending(ctx context.Context, limit int) ([]core.NormalizedEvent, []string, error) {
	if s == nil || s.db == nil {
		return nil, nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	records := []*eventRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", eventStatusPending).
		OrderExpr("?TableAlias.received_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, nil, err
	}

	events := make([]core.NormalizedEvent, 0, len(records))
	messageIDs := make([]string, 0, len(records))
	for _, record := range records {
		events = append(events, record.toDomain())
		messageIDs = append(messageIDs, record.ID)
	}
	return events, messageIDs, nil
}

func (s *EventStore) MarkDispatched(ctx context.Context, messageID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return fmt.Errorf("sqlstore: message id is required")
	}

	now := s.clock()
	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", eventStatusDispatched).
		Set("dispatched_at = ?", now).
		Where("id = ?", messageID).
		Where("status = ?", eventStatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: event %q is not pending", messageID)
	}
	return nil
}

func (s *EventStore) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

func (r *eventRecord) toDomain() core.NormalizedEvent {
	if r == nil {
		return core.NormalizedEvent{}
	}
	return core.NormalizedEvent{
		Vendor:     core.Vendor(r.Vendor),
		UserID:     r.UserID,
		EventType:  r.EventType,
		ResourceID: r.ResourceID,
		TraceID:    r.TraceID,
		RawPayload: copyAnyMap(r.RawPayload),
		ReceivedAt: r.ReceivedAt,
	}
}
