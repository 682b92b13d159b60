package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/florist-storefront/internal/repo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartSessionRecord is a row of the cart_sessions table.
type CartSessionRecord struct {
	ShopperID string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"primaryKey;size:64"`
	SessionID string `gorm:"size:255;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

func (CartSessionRecord) TableName() string { return "cart_sessions" }

// SQLBackend persists cart-session ids in the cart_sessions table.
type SQLBackend struct {
	base repo.Base
	name string
	ttl  time.Duration
	now  func() time.Time
}

func NewSQLBackend(db *gorm.DB, name string, ttl time.Duration) *SQLBackend {
	return &SQLBackend{base: repo.NewBase(db), name: name, ttl: ttl, now: time.Now}
}

func (b *SQLBackend) For(shopperID string) Store {
	return &SQLStore{backend: b, shopperID: shopperID}
}

// SQLStore is a Store scoped to one shopper row.
type SQLStore struct {
	backend   *SQLBackend
	shopperID string
}

func (s *SQLStore) Load(ctx context.Context) (string, bool, error) {
	var record CartSessionRecord
	err := s.backend.base.DB(ctx).
		Where("shopper_id = ? AND name = ?", s.shopperID, s.backend.name).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if record.ExpiresAt != nil && !record.ExpiresAt.After(s.backend.now()) {
		return "", false, s.delete(ctx)
	}
	id := strings.TrimSpace(record.SessionID)
	return id, id != "", nil
}

func (s *SQLStore) Save(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.delete(ctx)
	}

	now := s.backend.now().UTC()
	record := CartSessionRecord{
		ShopperID: s.shopperID,
		Name:      s.backend.name,
		SessionID: id,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.backend.ttl > 0 {
		expires := now.Add(s.backend.ttl)
		record.ExpiresAt = &expires
	}

	return s.backend.base.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shopper_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "updated_at", "expires_at"}),
	}).Create(&record).Error
}

func (s *SQLStore) delete(ctx context.Context) error {
	return s.backend.base.DB(ctx).
		Where("shopper_id = ? AND name = ?", s.shopperID, s.backend.name).
		Delete(&CartSessionRecord{}).Error
}
