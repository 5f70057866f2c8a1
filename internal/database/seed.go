package database

import (
	"encoding/json"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/velprakashr08-max/Frutify/internal/catalog"
)

type SeedReport struct {
	CreatedProducts int
	Noop            bool
}

// SeedSync brings the catalog in line with the seed fixtures. Products are
// matched by slug; existing rows are left untouched, so repeated runs are
// safe. An empty path seeds the built-in dev fixtures.
func SeedSync(db *gorm.DB, path string) (SeedReport, error) {
	products, err := seedProducts(path)
	if err != nil {
		return SeedReport{}, err
	}

	report := SeedReport{}
	for _, p := range products {
		var existing catalog.Product
		err := db.Where("slug = ?", p.Slug).First(&existing).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return SeedReport{}, fmt.Errorf("seed lookup %q: %w", p.Slug, err)
		}
		if err := db.Create(&p).Error; err != nil {
			return SeedReport{}, fmt.Errorf("seed create %q: %w", p.Slug, err)
		}
		report.CreatedProducts++
	}
	report.Noop = report.CreatedProducts == 0
	return report, nil
}

func seedProducts(path string) ([]catalog.Product, error) {
	if path == "" {
		return defaultSeedProducts(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var products []catalog.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return products, nil
}

func defaultSeedProducts() []catalog.Product {
	return []catalog.Product{
		{Name: "Organic Carrot", Slug: "organic-carrot", Category: "vegetables", Type: "vegetable", Price: 2.49, Stock: 120, Unit: "kg", Organic: true},
		{Name: "Alphonso Mango", Slug: "alphonso-mango", Category: "fruits", Type: "fruit", Price: 6.99, OriginalPrice: 8.99, Discount: 22, Stock: 40, Unit: "kg"},
		{Name: "Baby Spinach", Slug: "baby-spinach", Category: "vegetables", Type: "leafy", Price: 1.99, Stock: 80, Unit: "bunch", Organic: true},
		{Name: "Banana", Slug: "banana", Category: "fruits", Type: "fruit", Price: 0.99, Stock: 300, Unit: "dozen"},
		{Name: "Red Apple", Slug: "red-apple", Category: "fruits", Type: "fruit", Price: 3.49, Stock: 150, Unit: "kg"},
	}
}
