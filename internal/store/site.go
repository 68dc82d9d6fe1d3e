// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"storefront/internal/models"
)

// SiteStore persists generated storefront sites in PostgreSQL. Products
// are stored as a JSONB array.
type SiteStore struct {
	db *sql.DB
}

// NewSiteStore creates a new SiteStore with the given database connection.
func NewSiteStore(db *sql.DB) *SiteStore {
	return &SiteStore{db: db}
}

// siteColumns lists the columns selected in site queries.
const siteColumns = `id, owner_id, store_name, tagline, about, products, contact_info,
	social_links, store_hours, header_image, html_content, is_public, created_at, updated_at`

const (
	querySiteInsert = `
		INSERT INTO sites (owner_id, store_name, tagline, about, products, contact_info,
			social_links, store_hours, header_image, html_content, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + siteColumns

	querySiteByID = `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`

	querySitesByOwner = `SELECT ` + siteColumns + `
		FROM sites WHERE owner_id = $1
		ORDER BY created_at DESC`

	querySitesPublic = `SELECT ` + siteColumns + `
		FROM sites WHERE is_public = TRUE
		ORDER BY created_at DESC
		LIMIT $1`

	querySiteUpdate = `
		UPDATE sites SET store_name = $2, tagline = $3, about = $4, products = $5,
			contact_info = $6, social_links = $7, store_hours = $8, header_image = $9,
			html_content = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + siteColumns

	querySiteVisibility = `
		UPDATE sites SET is_public = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + siteColumns

	querySiteDelete = `DELETE FROM sites WHERE id = $1`
)

// scanSite scans a site row from the result set.
func scanSite(scanner interface{ Scan(...any) error }) (*models.Site, error) {
	var (
		s        models.Site
		products []byte
	)
	err := scanner.Scan(
		&s.ID, &s.OwnerID, &s.StoreName, &s.Tagline, &s.About, &products, &s.ContactInfo,
		&s.SocialLinks, &s.StoreHours, &s.HeaderImage, &s.HTMLContent, &s.IsPublic,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &s.Products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	}
	return &s, nil
}

func encodeProducts(products []models.Product) ([]byte, error) {
	if products == nil {
		products = []models.Product{}
	}
	b, err := json.Marshal(products)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	return b, nil
}

// validID reports whether id can be a sites primary key. Anything else
// cannot exist, and sending it would make PostgreSQL reject the cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Create inserts a new site and returns it with the generated ID and timestamps.
func (s *SiteStore) Create(ctx context.Context, site *models.Site) (*models.Site, error) {
	products, err := encodeProducts(site.Products)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, querySiteInsert,
		site.OwnerID, site.StoreName, site.Tagline, site.About, products, site.ContactInfo,
		site.SocialLinks, site.StoreHours, site.HeaderImage, site.HTMLContent, site.IsPublic,
	)
	created, err := scanSite(row)
	if err != nil {
		return nil, fmt.Errorf("create site: %w", err)
	}
	return created, nil
}

// FindByID retrieves a single site. Returns nil if not found.
func (s *SiteStore) FindByID(ctx context.Context, id string) (*models.Site, error) {
	if !validID(id) {
		return nil, nil
	}
	site, err := scanSite(s.db.QueryRowContext(ctx, querySiteByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find site by id: %w", err)
	}
	return site, nil
}

// ListByOwner returns every site owned by the user, newest first.
func (s *SiteStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Site, error) {
	rows, err := s.db.QueryContext(ctx, querySitesByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sites by owner: %w", err)
	}
	return collectSites(rows)
}

// ListPublic returns up to limit public sites, newest first.
func (s *SiteStore) ListPublic(ctx context.Context, limit int) ([]models.Site, error) {
	rows, err := s.db.QueryContext(ctx, querySitesPublic, limit)
	if err != nil {
		return nil, fmt.Errorf("list public sites: %w", err)
	}
	return collectSites(rows)
}

func collectSites(rows *sql.Rows) ([]models.Site, error) {
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// Update overwrites the form fields and generated HTML of a site. The
// owner and visibility are left untouched. Returns nil if not found.
func (s *SiteStore) Update(ctx context.Context, site *models.Site) (*models.Site, error) {
	if !validID(site.ID) {
		return nil, nil
	}
	products, err := encodeProducts(site.Products)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, querySiteUpdate,
		site.ID, site.StoreName, site.Tagline, site.About, products, site.ContactInfo,
		site.SocialLinks, site.StoreHours, site.HeaderImage, site.HTMLContent,
	)
	updated, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update site: %w", err)
	}
	return updated, nil
}

// SetVisibility flips the public flag only. Returns nil if not found.
func (s *SiteStore) SetVisibility(ctx context.Context, id string, public bool) (*models.Site, error) {
	if !validID(id) {
		return nil, nil
	}
	site, err := scanSite(s.db.QueryRowContext(ctx, querySiteVisibility, id, public))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("set site visibility: %w", err)
	}
	return site, nil
}

// Delete removes a site and reports whether a row was deleted.
func (s *SiteStore) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, querySiteDelete, id)
	if err != nil {
		return false, fmt.Errorf("delete site: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete site rows: %w", err)
	}
	return n > 0, nil
}
