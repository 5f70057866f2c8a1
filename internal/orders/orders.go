// Package orders holds the order-state transitions driven by payment facts.
// Transitions are guarded UPDATEs so redelivered facts cannot move an order
// twice or backwards.
package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

type Order struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	UserID     string     `gorm:"size:64;index;not null" json:"user_id"`
	Status     Status     `gorm:"size:32;index;not null" json:"status"`
	Total      float64    `json:"total"`
	PaymentID  string     `gorm:"size:64" json:"payment_id,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Order{})
}

// Confirm moves a created order to confirmed after payment success. An
// order already past created is left alone, which absorbs duplicate
// payment.success deliveries.
func (s *Store) Confirm(ctx context.Context, orderID, paymentID string) error {
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", orderID, StatusCreated).
		Updates(map[string]any{"status": StatusConfirmed, "payment_id": paymentID})
	if res.Error != nil {
		return fmt.Errorf("confirm order %q: %w", orderID, res.Error)
	}
	return nil
}

// MarkRefunded records a refund. Guarded the same way as Confirm.
func (s *Store) MarkRefunded(ctx context.Context, orderID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status <> ?", orderID, StatusRefunded).
		Updates(map[string]any{"status": StatusRefunded, "refunded_at": at})
	if res.Error != nil {
		return fmt.Errorf("mark order %q refunded: %w", orderID, res.Error)
	}
	return nil
}

func (s *Store) ByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	if err := s.db.WithContext(ctx).First(&o, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("load order %q: %w", orderID, err)
	}
	return &o, nil
}
