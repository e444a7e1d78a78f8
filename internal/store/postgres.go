package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"whiteboard-backend/internal/model"
)

// PostgresStore is the gorm-backed durable document store: one row per room,
// upserted atomically by primary key.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an open gorm connection.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load fetches a room record by id, translating a missing row into
// ErrRoomNotFound.
func (p *PostgresStore) Load(ctx context.Context, roomID string) (*model.RoomRecord, error) {
	var rec model.RoomRecord
	err := p.db.WithContext(ctx).First(&rec, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room record: %w", err)
	}
	return &rec, nil
}

// Save upserts the full room record in one statement, which keeps concurrent
// writers from interleaving partial rows.
func (p *PostgresStore) Save(ctx context.Context, rec *model.RoomRecord) error {
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"elements", "app_state", "files", "version", "last_modified", "expires_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save room record: %w", err)
	}
	return nil
}

// Delete removes a room record. Deleting a missing row is not an error.
func (p *PostgresStore) Delete(ctx context.Context, roomID string) error {
	err := p.db.WithContext(ctx).Delete(&model.RoomRecord{}, "id = ?", roomID).Error
	if err != nil {
		return fmt.Errorf("delete room record: %w", err)
	}
	return nil
}

// DeleteExpired drops every room whose retention expiry has passed.
func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := p.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.RoomRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired rooms: %w", res.Error)
	}
	return res.RowsAffected, nil
}
