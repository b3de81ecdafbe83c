package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

// BuildDashboard fetches the category, statistics and vendor aggregates for
// period concurrently. The dashboard is replaced only when all three
// succeed; on any failure it is cleared and a single notice is emitted.
func (c *Coordinator) BuildDashboard(ctx context.Context, period core.Period) (core.Dashboard, error) {
	c.mu.Lock()
	c.period = period
	c.dashGen++
	gen := c.dashGen
	c.drillGen++
	c.drill = nil
	rng := period.Range(c.today())
	limit := c.vendorLimit
	c.mu.Unlock()

	d := core.Dashboard{Period: period, Range: rng}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Categories, err = c.svc.CategorySummary(gctx, rng)
		return err
	})
	g.Go(func() error {
		var err error
		d.Stats, err = c.svc.Stats(gctx, rng)
		return err
	})
	g.Go(func() error {
		var err error
		d.Vendors, err = c.svc.TopVendors(gctx, rng, limit)
		return err
	})
	err := g.Wait()

	c.mu.Lock()
	if gen != c.dashGen {
		c.mu.Unlock()
		return core.Dashboard{}, c.fail(ctx, log.OpDashboard, ErrSuperseded)
	}
	if err != nil {
		c.dashboard = nil
		c.mu.Unlock()
		return core.Dashboard{}, c.fail(ctx, log.OpDashboard, err)
	}
	c.dashboard = &d
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Dashboard built",
		log.FieldPeriod, string(period),
		log.FieldRangeStart, rng.Start.String(),
		log.FieldRangeEnd, rng.End.String())
	return d, nil
}

// ActivePeriod is the period of the last BuildDashboard call, thisYear
// before any.
func (c *Coordinator) ActivePeriod() core.Period {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// DrillDownCategory lists the items of a category over the active
// dashboard range.
func (c *Coordinator) DrillDownCategory(ctx context.Context, categoryID int64) (core.Breakdown, error) {
	return c.drillDown(ctx, func(ctx context.Context, r core.DateRange) (core.Breakdown, error) {
		return c.svc.ItemsByCategory(ctx, categoryID, r)
	})
}

// DrillDownVendor lists the items bought from vendor over the active
// dashboard range.
func (c *Coordinator) DrillDownVendor(ctx context.Context, vendor string) (core.Breakdown, error) {
	return c.drillDown(ctx, func(ctx context.Context, r core.DateRange) (core.Breakdown, error) {
		return c.svc.ItemsByVendor(ctx, vendor, r)
	})
}

func (c *Coordinator) drillDown(ctx context.Context, fetch func(context.Context, core.DateRange) (core.Breakdown, error)) (core.Breakdown, error) {
	c.mu.Lock()
	c.drillGen++
	gen := c.drillGen
	rng := c.period.Range(c.today())
	if c.dashboard != nil {
		rng = c.dashboard.Range
	}
	c.mu.Unlock()

	b, err := fetch(ctx, rng)

	c.mu.Lock()
	if gen != c.drillGen {
		c.mu.Unlock()
		return core.Breakdown{}, c.fail(ctx, log.OpDrillDown, ErrSuperseded)
	}
	if err == nil {
		c.drill = &b
	}
	c.mu.Unlock()

	if err != nil {
		return core.Breakdown{}, c.fail(ctx, log.OpDrillDown, err)
	}
	return b, nil
}

// CloseDrillDown discards the drill-down view.
func (c *Coordinator) CloseDrillDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drillGen++
	c.drill = nil
}
