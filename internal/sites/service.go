// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package sites implements the lifecycle of generated storefront sites:
// validation, generation, ownership checks, persistence and the cached
// public listing.
package sites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/cache"
	"storefront/internal/generator"
	"storefront/internal/models"
)

var (
	// ErrNotFound is returned for missing sites and for private sites
	// requested by someone other than their owner.
	ErrNotFound = errors.New("site not found")

	// ErrForbidden is returned when a non-owner tries to change a site.
	ErrForbidden = errors.New("only the owner can change this site")
)

// Repository persists sites. Lookups return (nil, nil) when the site
// does not exist. Implemented by store.SiteStore and mongostore.SiteStore.
type Repository interface {
	Create(ctx context.Context, site *models.Site) (*models.Site, error)
	FindByID(ctx context.Context, id string) (*models.Site, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Site, error)
	ListPublic(ctx context.Context, limit int) ([]models.Site, error)
	Update(ctx context.Context, site *models.Site) (*models.Site, error)
	SetVisibility(ctx context.Context, id string, public bool) (*models.Site, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Generator produces site HTML and copy. Implemented by *generator.Generator.
type Generator interface {
	Website(ctx context.Context, in generator.Input) (string, error)
	AboutText(ctx context.Context, storeName, tagline string) (string, error)
	ImproveContent(ctx context.Context, content string) (string, error)
}

// ImageStore moves inline images to object storage. Implemented by
// *storage.Images.
type ImageStore interface {
	StoreDataURI(ctx context.Context, owner uuid.UUID, purpose models.UploadPurpose, uri string) (*models.Upload, error)
	Discard(ctx context.Context, u *models.Upload)
}

// ListingCache caches serialized public listings. Implemented by
// *cache.ListingCache.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	InvalidatePublic(ctx context.Context)
}

// Service coordinates site operations.
type Service struct {
	repo   Repository
	gen    Generator
	images ImageStore
	cache  ListingCache
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithImages moves inline data-URI images to object storage once the
// site has been generated. Without it, images stay inline in the record.
func WithImages(images ImageStore) Option {
	return func(s *Service) { s.images = images }
}

// WithCache caches the public listing.
func WithCache(c ListingCache) Option {
	return func(s *Service) { s.cache = c }
}

// New creates a site service.
func New(repo Repository, gen Generator, opts ...Option) *Service {
	s := &Service{repo: repo, gen: gen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, generates the HTML and stores a new
// private site. Nothing is stored if generation fails.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in Input) (*models.Site, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.gen.Website(ctx, generatorInput(&in))
	if err != nil {
		return nil, err
	}
	doc, uploads, err := s.storeInlineImages(ctx, ownerID, &in, doc)
	if err != nil {
		return nil, err
	}

	site := siteFromInput(&in)
	site.OwnerID = ownerID
	site.HTMLContent = doc

	created, err := s.repo.Create(ctx, site)
	if err != nil {
		s.discard(ctx, uploads)
		return nil, fmt.Errorf("create site: %w", err)
	}
	slog.Info("site created", "site_id", created.ID, "owner_id", ownerID)
	return created, nil
}

// Update validates the input, regenerates the HTML and overwrites the
// site. On any failure the stored site is left unchanged.
func (s *Service) Update(ctx context.Context, callerID uuid.UUID, id string, in Input) (*models.Site, error) {
	existing, err := s.owned(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.gen.Website(ctx, generatorInput(&in))
	if err != nil {
		return nil, err
	}
	doc, uploads, err := s.storeInlineImages(ctx, callerID, &in, doc)
	if err != nil {
		return nil, err
	}

	site := siteFromInput(&in)
	site.ID = existing.ID
	site.OwnerID = existing.OwnerID
	site.HTMLContent = doc

	updated, err := s.repo.Update(ctx, site)
	if err != nil {
		s.discard(ctx, uploads)
		return nil, fmt.Errorf("update site: %w", err)
	}
	if updated == nil {
		s.discard(ctx, uploads)
		return nil, ErrNotFound
	}
	if updated.IsPublic {
		s.invalidatePublic(ctx)
	}
	slog.Info("site updated", "site_id", id, "owner_id", callerID)
	return updated, nil
}

// Delete removes a site owned by the caller.
func (s *Service) Delete(ctx context.Context, callerID uuid.UUID, id string) error {
	if _, err := s.owned(ctx, callerID, id); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	s.invalidatePublic(ctx)
	slog.Info("site deleted", "site_id", id, "owner_id", callerID)
	return nil
}

// SetVisibility publishes or unpublishes a site. The HTML is not touched.
func (s *Service) SetVisibility(ctx context.Context, callerID uuid.UUID, id string, public bool) (*models.Site, error) {
	if _, err := s.owned(ctx, callerID, id); err != nil {
		return nil, err
	}
	site, err := s.repo.SetVisibility(ctx, id, public)
	if err != nil {
		return nil, fmt.Errorf("set site visibility: %w", err)
	}
	if site == nil {
		return nil, ErrNotFound
	}
	s.invalidatePublic(ctx)
	return site, nil
}

// Get returns a site regardless of visibility. Used for signed previews.
func (s *Service) Get(ctx context.Context, id string) (*models.Site, error) {
	site, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	if site == nil {
		return nil, ErrNotFound
	}
	return site, nil
}

// GetForViewer returns a site if viewerID may see it: public sites are
// visible to everyone, private sites only to their owner. viewerID is
// uuid.Nil for anonymous visitors.
func (s *Service) GetForViewer(ctx context.Context, viewerID uuid.UUID, id string) (*models.Site, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !site.IsPublic && !site.OwnedBy(viewerID) {
		return nil, ErrNotFound
	}
	return site, nil
}

// ListByOwner returns the owner's sites, newest first.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Site, error) {
	sites, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

// ListPublic returns up to limit public sites, newest first. Listing
// entries carry no HTML content.
func (s *Service) ListPublic(ctx context.Context, limit int) ([]models.Site, error) {
	key := cache.PublicListingKey(limit)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var sites []models.Site
			if err := json.Unmarshal(raw, &sites); err == nil {
				return sites, nil
			}
			slog.Warn("discarding corrupt listing cache entry", "key", key)
		}
	}

	sites, err := s.repo.ListPublic(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list public sites: %w", err)
	}
	for i := range sites {
		sites[i].HTMLContent = ""
	}

	if s.cache != nil {
		if raw, err := json.Marshal(sites); err == nil {
			s.cache.Set(ctx, key, raw)
		}
	}
	return sites, nil
}

// GenerateAbout drafts about text for the form.
func (s *Service) GenerateAbout(ctx context.Context, storeName, tagline string) (string, error) {
	return s.gen.AboutText(ctx, storeName, tagline)
}

// ImproveContent returns markdown suggestions for website copy.
func (s *Service) ImproveContent(ctx context.Context, content string) (string, error) {
	return s.gen.ImproveContent(ctx, content)
}

// owned loads a site and checks that callerID owns it.
func (s *Service) owned(ctx context.Context, callerID uuid.UUID, id string) (*models.Site, error) {
	site, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !site.OwnedBy(callerID) {
		slog.Warn("site ownership check failed", "site_id", id, "caller_id", callerID)
		return nil, ErrForbidden
	}
	return site, nil
}

// storeInlineImages moves data-URI images to object storage and points
// the input and the generated document at the stored copies. Identical
// images are stored once. On failure every upload made so far is
// discarded; on success the uploads are returned so a failed save can
// discard them too.
func (s *Service) storeInlineImages(ctx context.Context, ownerID uuid.UUID, in *Input, doc string) (string, []*models.Upload, error) {
	if s.images == nil {
		return doc, nil, nil
	}

	var uploads []*models.Upload
	urls := make(map[string]string)
	move := func(purpose models.UploadPurpose, uri string) (string, error) {
		if !models.IsDataURI(uri) {
			return uri, nil
		}
		if url, ok := urls[uri]; ok {
			return url, nil
		}
		u, err := s.images.StoreDataURI(ctx, ownerID, purpose, uri)
		if err != nil {
			return "", err
		}
		uploads = append(uploads, u)
		urls[uri] = u.URL
		doc = strings.ReplaceAll(doc, html.EscapeString(uri), html.EscapeString(u.URL))
		return u.URL, nil
	}

	header, err := move(models.PurposeHeader, in.HeaderImage)
	if err != nil {
		s.discard(ctx, uploads)
		return "", nil, fmt.Errorf("upload header image: %w", err)
	}
	in.HeaderImage = header
	for i := range in.Products {
		img, err := move(models.PurposeProduct, in.Products[i].Image)
		if err != nil {
			s.discard(ctx, uploads)
			return "", nil, fmt.Errorf("upload product image %d: %w", i+1, err)
		}
		in.Products[i].Image = img
	}
	return doc, uploads, nil
}

// discard removes uploads of a site that was never saved. It runs even
// when the request context is already done.
func (s *Service) discard(ctx context.Context, uploads []*models.Upload) {
	if len(uploads) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, u := range uploads {
		s.images.Discard(ctx, u)
	}
	slog.Info("discarded uploads of unsaved site", "count", len(uploads))
}

func (s *Service) invalidatePublic(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidatePublic(ctx)
	}
}

func siteFromInput(in *Input) *models.Site {
	return &models.Site{
		StoreName:   in.StoreName,
		Tagline:     in.Tagline,
		About:       in.About,
		Products:    in.products(),
		ContactInfo: in.ContactInfo,
		SocialLinks: in.SocialLinks,
		StoreHours:  in.StoreHours,
		HeaderImage: in.HeaderImage,
	}
}

func generatorInput(in *Input) generator.Input {
	return generator.Input{
		StoreName:   in.StoreName,
		Tagline:     in.Tagline,
		About:       in.About,
		Products:    in.products(),
		ContactInfo: in.ContactInfo,
		SocialLinks: in.SocialLinks,
		StoreHours:  in.StoreHours,
		HeaderImage: in.HeaderImage,
	}
}
