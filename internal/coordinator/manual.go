package coordinator

import (
	"context"
	"fmt"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

// SetDraftVendor sets the optional vendor of the manual entry.
func (c *Coordinator) SetDraftVendor(vendor string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Vendor = vendor
}

// AddDraftItem validates and appends an item to the manual entry. The
// category is looked up in the local category set; zero means none.
func (c *Coordinator) AddDraftItem(ctx context.Context, name, quantity, value string, categoryID int64) (core.DraftItem, error) {
	c.mu.Lock()
	cat, _ := core.FindCategory(c.categories, categoryID)
	if categoryID != 0 && cat.ID == 0 {
		cat = core.Category{ID: categoryID}
	}
	item, err := c.draft.AddItem(name, quantity, value, cat)
	c.mu.Unlock()

	if err != nil {
		return core.DraftItem{}, c.fail(ctx, log.OpManual, err)
	}
	return item, nil
}

// RemoveDraftItem drops the i-th draft item.
func (c *Coordinator) RemoveDraftItem(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.RemoveItem(i)
}

// DiscardDraft clears the manual entry.
func (c *Coordinator) DiscardDraft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Reset()
}

// SubmitManualEntry sends the draft dated today. An empty draft is
// rejected without a request. On success the draft is cleared and the
// receipt list is re-queried under the current date filter.
func (c *Coordinator) SubmitManualEntry(ctx context.Context) (core.ManualResult, error) {
	c.mu.Lock()
	entry, err := c.draft.Entry(c.today())
	c.mu.Unlock()
	if err != nil {
		return core.ManualResult{}, c.fail(ctx, log.OpManual, err)
	}

	res, err := c.svc.CreateManualReceipt(ctx, entry)
	if err != nil {
		return core.ManualResult{}, c.fail(ctx, log.OpManual, err)
	}

	c.mu.Lock()
	c.draft.Reset()
	filter := c.filter
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Manual receipt created",
		log.FieldVendor, entry.Vendor,
		log.FieldCount, res.Items)
	c.succeed(log.OpManual, fmt.Sprintf("Lançamento criado com %d item(s). Total: %s", res.Items, res.Total))

	_ = c.SelectDateFilter(ctx, filter)
	return res, nil
}
