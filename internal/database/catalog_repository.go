package database

import (
	"database/sql"
	"fmt"

	"github.com/islandhop/travel-booking-backend/internal/models"
	"github.com/jmoiron/sqlx"
)

// CatalogRepository provides read-only lookups into the package catalog.
// The catalog itself is managed elsewhere; the booking flow only needs the
// package's active flag and the category's price and parent package id.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetActivePackage returns the package if it exists and is active.
func (r *CatalogRepository) GetActivePackage(packageID int64) (*models.TravelPackage, error) {
	var pkg models.TravelPackage
	query := `
		SELECT id, title, is_active
		FROM packages
		WHERE id = $1 AND is_active = true`
	err := r.db.Get(&pkg, query, packageID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "package", Message: "package not found or inactive"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return &pkg, nil
}

// GetCategory returns the category by id.
func (r *CatalogRepository) GetCategory(categoryID int64) (*models.PackageCategory, error) {
	var category models.PackageCategory
	query := `
		SELECT id, package_id, name, price
		FROM package_categories
		WHERE id = $1`
	err := r.db.Get(&category, query, categoryID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "category", Message: "category not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}
