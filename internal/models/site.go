// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Product is one entry of a store's product list. Price is free text
// ("$12.99", "from 5 EUR") and Image is an optional image reference.
type Product struct {
	Name  string `json:"name" bson:"name"`
	Price string `json:"price" bson:"price"`
	Image string `json:"image,omitempty" bson:"image,omitempty"`
}

// Site is a generated storefront website. ID is assigned by the backing
// store: a UUID string in PostgreSQL, an ObjectID hex string in MongoDB.
type Site struct {
	ID          string    `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	StoreName   string    `json:"store_name"`
	Tagline     string    `json:"tagline,omitempty"`
	About       string    `json:"about"`
	Products    []Product `json:"products"`
	ContactInfo string    `json:"contact_info"`
	SocialLinks string    `json:"social_links,omitempty"`
	StoreHours  string    `json:"store_hours,omitempty"`
	HeaderImage string    `json:"header_image,omitempty"`
	HTMLContent string    `json:"html_content"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Title returns the store name, or "Site <id>" when the name is blank.
func (s *Site) Title() string {
	if name := strings.TrimSpace(s.StoreName); name != "" {
		return name
	}
	return "Site " + s.ID
}

// DownloadName returns the file name offered when downloading the
// generated HTML: the lowercased title with every whitespace character
// turned into a hyphen, plus ".html". Runs are not collapsed, so
// "Tom's  Tools" becomes "tom's--tools.html".
func (s *Site) DownloadName() string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, strings.ToLower(s.Title()))
	return name + ".html"
}

// OwnedBy reports whether the site belongs to the given user.
func (s *Site) OwnedBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && s.OwnerID == userID
}

// IsDataURI reports whether an image reference is inline-encoded image data.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:image/")
}

// IsImageURL reports whether an image reference is an externally hosted URL.
func IsImageURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}
