package http

import (
	"net/http"

	"nfcescan/internal/log"
)

const (
	defaultVendorLimit = 10
	maxVendorLimit     = 50
)

// handleDashboardSummary returns spending grouped by category.
func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := ParsePeriodRange(r.URL.Query(), s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	summary, err := s.store.CategorySummary(ctx, rng)
	if err != nil {
		writeStoreError(w, r, log.OpDashboard, err)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}

// handleDashboardStats returns the KPIs and the prior-period comparison.
func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	rng, err := ParsePeriodRange(r.URL.Query(), s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	stats, err := s.store.Stats(ctx, rng)
	if err != nil {
		writeStoreError(w, r, log.OpDashboard, err)
		return
	}
	NewJSONResponse().JSON(stats).Write(w)
}

// handleDashboardVendors returns the vendors with the largest totals.
func (s *Server) handleDashboardVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := ParsePeriodRange(q, s.today())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	limit, err := ParseLimitParam(q, "limit", defaultVendorLimit, 1, maxVendorLimit)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	vendors, err := s.store.TopVendors(ctx, rng, limit)
	if err != nil {
		writeStoreError(w, r, log.OpDashboard, err)
		return
	}
	NewJSONResponse().JSON(vendors).Write(w)
}
