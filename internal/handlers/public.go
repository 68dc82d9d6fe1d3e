// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"storefront/internal/render"
)

// ShowcaseLimit is the number of public sites listed on the homepage.
const ShowcaseLimit = 24

// healthTimeout bounds each dependency check of the health endpoint.
const healthTimeout = 2 * time.Second

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Public groups the handlers that need no session: the showcase of
// public sites, the health check and the not-found page.
type Public struct {
	renderer *render.Renderer
	svc      SiteService
	checks   map[string]HealthCheck
}

// NewPublic creates the Public handler group. checks are run by Health,
// keyed by dependency name.
func NewPublic(renderer *render.Renderer, svc SiteService, checks map[string]HealthCheck) *Public {
	return &Public{renderer: renderer, svc: svc, checks: checks}
}

// Home lists the most recent public sites.
func (p *Public) Home(w http.ResponseWriter, r *http.Request) {
	list, err := p.svc.ListPublic(r.Context(), ShowcaseLimit)
	if err != nil {
		// The showcase still renders, just empty.
		slog.Error("list public sites failed", "error", err)
	}

	p.renderer.Page(w, r, "home", &render.PageData{
		Title:   "Showcase",
		Section: "home",
		Data:    map[string]any{"Sites": list},
	})
}

// Health reports the status of every dependency as JSON. Any failing
// check turns the response into a 503.
func (p *Public) Health(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(p.checks))
	for name := range p.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := p.checks[name](ctx)
		cancel()
		if err != nil {
			slog.Warn("health check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

// NotFound renders the 404 page for unknown routes.
func (p *Public) NotFound(w http.ResponseWriter, r *http.Request) {
	notFound(p.renderer, w, r)
}
