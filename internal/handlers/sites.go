// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/render"
	"storefront/internal/sharelink"
	"storefront/internal/sites"
)

// maxProductRows bounds the product indexes read from a form.
const maxProductRows = 200

// Default form values for a new site.
const (
	defaultContactInfo = "123 Main St, Anytown, USA | contact@example.com | 555-1234"
	defaultSocialLinks = "facebook.com/store, twitter.com/store"
	defaultStoreHours  = "Mon-Fri: 9am-5pm, Sat: 10am-2pm"
)

var productFieldRe = regexp.MustCompile(`^products\[(\d+)\]\.(name|price|image)$`)

// Sites groups the dashboard, site form, viewer, download and share
// handlers.
type Sites struct {
	renderer *render.Renderer
	svc      SiteService
	signer   ShareSigner
	baseURL  string
}

// NewSites creates the Sites handler group. baseURL is the absolute URL
// of the app, used in share and copy links.
func NewSites(renderer *render.Renderer, svc SiteService, signer ShareSigner, baseURL string) *Sites {
	return &Sites{renderer: renderer, svc: svc, signer: signer, baseURL: baseURL}
}

// Dashboard lists the caller's sites.
func (s *Sites) Dashboard(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListByOwner(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("dashboard list failed", "error", err)
		s.renderer.PageStatus(w, r, http.StatusInternalServerError, "error", &render.PageData{Title: "Error"})
		return
	}

	s.renderer.Page(w, r, "dashboard", &render.PageData{
		Title:   "Dashboard",
		Section: "dashboard",
		Data:    map[string]any{"Sites": list},
	})
}

// NewPage renders an empty site form with sample contact details.
func (s *Sites) NewPage(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, r, http.StatusOK, "", sites.Input{
		Products:    []sites.ProductInput{{}},
		ContactInfo: defaultContactInfo,
		SocialLinks: defaultSocialLinks,
		StoreHours:  defaultStoreHours,
	}, nil, nil)
}

// Create generates and stores a new site, then opens it in the viewer.
func (s *Sites) Create(w http.ResponseWriter, r *http.Request) {
	in, err := parseSiteForm(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	site, err := s.svc.Create(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		s.formError(w, r, "", in, err)
		return
	}

	render.SetFlash(w, render.FlashSuccess, "Website generated! It is private until you publish it.")
	http.Redirect(w, r, "/sites/"+site.ID, http.StatusSeeOther)
}

// EditPage renders the form pre-filled from a site the caller owns.
func (s *Sites) EditPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.UserID(r.Context())

	site, err := s.svc.GetForViewer(r.Context(), userID, id)
	if err == nil && !site.OwnedBy(userID) {
		err = sites.ErrForbidden
	}
	if err != nil {
		s.actionError(w, r, err)
		return
	}

	s.renderForm(w, r, http.StatusOK, site.ID, sites.InputFromSite(site), nil, nil)
}

// Update regenerates a site from the submitted form.
func (s *Sites) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	in, err := parseSiteForm(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	site, err := s.svc.Update(r.Context(), middleware.UserID(r.Context()), id, in)
	if err != nil {
		s.formError(w, r, id, in, err)
		return
	}

	render.SetFlash(w, render.FlashSuccess, "Website updated.")
	http.Redirect(w, r, "/sites/"+site.ID, http.StatusSeeOther)
}

// Delete removes a site and returns to the dashboard.
func (s *Sites) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Delete(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		s.actionError(w, r, err)
		return
	}

	render.SetFlash(w, render.FlashSuccess, "Website deleted.")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Visibility publishes or unpublishes a site. HTMX requests get the
// updated dashboard card back.
func (s *Sites) Visibility(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	public, err := strconv.ParseBool(r.FormValue("public"))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	site, err := s.svc.SetVisibility(r.Context(), middleware.UserID(r.Context()), id, public)
	if err != nil {
		s.actionError(w, r, err)
		return
	}

	if render.IsHTMX(r) {
		s.renderer.Partial(w, r, "dashboard", "site_card", &render.PageData{
			Data: map[string]any{"Site": site},
		})
		return
	}

	msg := "Website is now private."
	if site.IsPublic {
		msg = "Website is now public."
	}
	render.SetFlash(w, render.FlashSuccess, msg)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// View renders a site inside a sandboxed iframe. Private sites are only
// visible to their owner.
func (s *Sites) View(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	site, err := s.svc.GetForViewer(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.actionError(w, r, err)
		return
	}

	s.renderViewer(w, r, site, map[string]any{"IsOwner": site.OwnedBy(userID)})
}

// Share issues a signed preview link for a site the caller owns.
func (s *Sites) Share(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.UserID(r.Context())

	site, err := s.svc.GetForViewer(r.Context(), userID, id)
	if err == nil && !site.OwnedBy(userID) {
		err = sites.ErrForbidden
	}
	if err != nil {
		s.actionError(w, r, err)
		return
	}

	token, expires, err := s.signer.Sign(site.ID, userID.String())
	if err != nil {
		slog.Error("share link sign failed", "error", err, "site_id", site.ID)
		render.SetFlash(w, render.FlashError, genericError)
		http.Redirect(w, r, "/sites/"+site.ID, http.StatusSeeOther)
		return
	}

	slog.Info("share link issued", "site_id", site.ID, "expires", expires)
	s.renderViewer(w, r, site, map[string]any{
		"IsOwner":      true,
		"ShareURL":     s.baseURL + "/preview/" + token,
		"ShareExpires": expires,
	})
}

// Preview renders a site from a signed share link, whatever its visibility.
func (s *Sites) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := s.signer.Verify(chi.URLParam(r, "token"))
	if err != nil {
		msg := "This share link is invalid."
		if errors.Is(err, sharelink.ErrExpired) {
			msg = "This share link has expired."
		}
		s.renderer.PageStatus(w, r, http.StatusNotFound, "not_found", &render.PageData{
			Title: "Not found",
			Data:  map[string]any{"Message": msg},
		})
		return
	}

	site, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.actionError(w, r, err)
		return
	}

	s.renderViewer(w, r, site, map[string]any{
		"Shared":  true,
		"PageURL": s.baseURL + r.URL.Path,
	})
}

// Download returns the stored HTML as an attachment.
func (s *Sites) Download(w http.ResponseWriter, r *http.Request) {
	site, err := s.svc.GetForViewer(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.actionError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": site.DownloadName()}))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(site.HTMLContent))
}

func (s *Sites) renderViewer(w http.ResponseWriter, r *http.Request, site *models.Site, data map[string]any) {
	data["Site"] = site
	if _, ok := data["PageURL"]; !ok {
		data["PageURL"] = s.baseURL + "/sites/" + site.ID
	}
	s.renderer.Page(w, r, "site_view", &render.PageData{
		Title: site.Title(),
		Data:  data,
	})
}

func (s *Sites) renderForm(w http.ResponseWriter, r *http.Request, status int, id string, in sites.Input, errs map[string]string, flashes []render.Flash) {
	title, action, submit := "Create a website", "/sites", "Generate website"
	if id != "" {
		title, action, submit = "Edit website", "/sites/"+id, "Regenerate website"
	}

	s.renderer.PageStatus(w, r, status, "site_form", &render.PageData{
		Title:   title,
		Section: "create",
		Errors:  errs,
		Flashes: flashes,
		Data: map[string]any{
			"Form":   in,
			"Action": action,
			"Submit": submit,
			"SiteID": id,
		},
	})
}

// formError re-renders the form for validation and generation failures
// so the user keeps their input. Ownership and lookup errors redirect.
func (s *Sites) formError(w http.ResponseWriter, r *http.Request, id string, in sites.Input, err error) {
	var verr *sites.ValidationError
	if errors.As(err, &verr) {
		s.renderForm(w, r, http.StatusUnprocessableEntity, id, in, verr.Fields, nil)
		return
	}
	if errors.Is(err, sites.ErrForbidden) || errors.Is(err, sites.ErrNotFound) {
		s.actionError(w, r, err)
		return
	}

	slog.Error("site generation failed", "error", err, "site_id", id)
	status := http.StatusBadGateway
	if msg := userMessage(err); msg != genericError {
		status = http.StatusUnprocessableEntity
	}
	s.renderForm(w, r, status, id, in, nil, []render.Flash{{Type: render.FlashError, Message: userMessage(err)}})
}

// actionError handles failures of non-form actions.
func (s *Sites) actionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sites.ErrNotFound):
		notFound(s.renderer, w, r)
	case errors.Is(err, sites.ErrForbidden):
		render.SetFlash(w, render.FlashError, "Only the owner can change this site.")
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	default:
		slog.Error("site action failed", "error", err, "path", r.URL.Path)
		render.SetFlash(w, render.FlashError, genericError)
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}
}

// parseSiteForm reads the site form. Product rows are submitted as
// products[i].name / .price / .image; rows left completely blank are
// dropped.
func parseSiteForm(r *http.Request) (sites.Input, error) {
	if err := r.ParseForm(); err != nil {
		return sites.Input{}, err
	}

	in := sites.Input{
		StoreName:   r.PostForm.Get("storeName"),
		Tagline:     r.PostForm.Get("tagline"),
		About:       r.PostForm.Get("about"),
		ContactInfo: r.PostForm.Get("contactInfo"),
		SocialLinks: r.PostForm.Get("socialLinks"),
		StoreHours:  r.PostForm.Get("storeHours"),
		HeaderImage: r.PostForm.Get("headerImage"),
	}

	rows := map[int]*sites.ProductInput{}
	for key, vals := range r.PostForm {
		m := productFieldRe.FindStringSubmatch(key)
		if m == nil || len(vals) == 0 {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx >= maxProductRows {
			continue
		}
		row, ok := rows[idx]
		if !ok {
			row = &sites.ProductInput{}
			rows[idx] = row
		}
		switch m[2] {
		case "name":
			row.Name = vals[0]
		case "price":
			row.Price = vals[0]
		case "image":
			row.Image = vals[0]
		}
	}

	indexes := make([]int, 0, len(rows))
	for idx := range rows {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		row := rows[idx]
		if strings.TrimSpace(row.Name) == "" && strings.TrimSpace(row.Price) == "" && strings.TrimSpace(row.Image) == "" {
			continue
		}
		in.Products = append(in.Products, *row)
	}
	return in, nil
}
