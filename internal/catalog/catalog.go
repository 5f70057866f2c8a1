// Package catalog is the product system of record plus the cache-aside read
// layer in front of it. The database always wins over the cache; cache
// entries are point-in-time snapshots bounded by TTL.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("product not found")

// Product mirrors the storefront catalog document: denormalized rating
// aggregates are recalculated by the review-aggregation worker, and deletion
// is soft so in-flight orders keep their references.
type Product struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"size:256;not null" json:"name"`
	Slug          string         `gorm:"size:256;uniqueIndex;not null" json:"slug"`
	Category      string         `gorm:"size:128;index" json:"category"`
	Type          string         `gorm:"size:32;index" json:"type"`
	Price         float64        `gorm:"not null" json:"price"`
	OriginalPrice float64        `json:"original_price,omitempty"`
	Discount      float64        `json:"discount,omitempty"`
	Stock         int            `gorm:"not null" json:"stock"`
	Unit          string         `gorm:"size:32" json:"unit"`
	Organic       bool           `gorm:"index" json:"organic"`
	ImageKeys     string         `gorm:"size:2048" json:"-"` // comma-joined object keys
	AvgRating     float64        `gorm:"index" json:"avg_rating"`
	ReviewCount   int            `json:"review_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Review keeps a snapshot of the reviewer's name so display does not break
// when the user renames themselves.
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	UserName  string    `gorm:"size:256" json:"user_name"`
	Rating    int       `gorm:"not null" json:"rating"`
	Title     string    `gorm:"size:256" json:"title"`
	Body      string    `gorm:"size:4096" json:"body"`
	Verified  bool      `json:"is_verified_purchase"`
	CreatedAt time.Time `json:"created_at"`
}

// Images splits the stored object keys. Presigning into URLs happens when
// the snapshot is built, not here.
func (p *Product) Images() []string {
	if p.ImageKeys == "" {
		return nil
	}
	return strings.Split(p.ImageKeys, ",")
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Product{}, &Review{})
}

func (s *Store) ProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product %q: %w", slug, err)
	}
	return &p, nil
}

func (s *Store) ProductByID(ctx context.Context, id uint) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ProductPage(ctx context.Context, offset, limit int) ([]Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var page []Product
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&page).Error
	if err != nil {
		return nil, fmt.Errorf("load product page: %w", err)
	}
	return page, nil
}

func (s *Store) CreateReview(ctx context.Context, r *Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("rating %d out of range", r.Rating)
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// RecalculateRating rebuilds the denormalized aggregates from the reviews
// table in one statement. Recomputing from scratch makes the operation
// naturally idempotent under duplicate review.created deliveries.
func (s *Store) RecalculateRating(ctx context.Context, productID uint) error {
	err := s.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"avg_rating":   s.db.Model(&Review{}).Select("COALESCE(AVG(rating), 0)").Where("product_id = ?", productID),
			"review_count": s.db.Model(&Review{}).Select("COUNT(*)").Where("product_id = ?", productID),
		}).Error
	if err != nil {
		return fmt.Errorf("recalculate rating for product %d: %w", productID, err)
	}
	return nil
}

// SoftDelete marks the product deleted. Already-deleted products are a
// no-op, so the delete worker tolerates redelivery.
func (s *Store) SoftDelete(ctx context.Context, slug string) error {
	err := s.db.WithContext(ctx).Where("slug = ?", slug).Delete(&Product{}).Error
	if err != nil {
		return fmt.Errorf("soft-delete product %q: %w", slug, err)
	}
	return nil
}
