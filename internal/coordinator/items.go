package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

// OpenReceipt selects a receipt already in hand. No request is made.
func (c *Coordinator) OpenReceipt(r core.Receipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detailGen++
	c.selected = cloneReceipt(&r)
	c.pendingItem = 0
}

// OpenReceiptByID fetches and selects a receipt, as needed when coming
// from a product hit that only carries the receipt id.
func (c *Coordinator) OpenReceiptByID(ctx context.Context, id int64) (core.Receipt, error) {
	c.mu.Lock()
	c.detailGen++
	gen := c.detailGen
	c.mu.Unlock()

	r, err := c.svc.GetReceipt(ctx, id)

	c.mu.Lock()
	if gen != c.detailGen {
		c.mu.Unlock()
		return core.Receipt{}, c.fail(ctx, log.OpDetail, ErrSuperseded)
	}
	if err == nil {
		c.selected = cloneReceipt(&r)
		c.pendingItem = 0
	}
	c.mu.Unlock()

	if err != nil {
		return core.Receipt{}, c.fail(ctx, log.OpDetail, err)
	}
	return r, nil
}

// CloseReceipt clears the selection.
func (c *Coordinator) CloseReceipt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detailGen++
	c.selected = nil
	c.pendingItem = 0
}

// BeginRecategorize marks itemID as waiting for a category choice.
func (c *Coordinator) BeginRecategorize(itemID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingItem = itemID
}

// CancelRecategorize dismisses the pending category choice.
func (c *Coordinator) CancelRecategorize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingItem = 0
}

// RecategorizeItem writes the new category and, on success, patches the
// item in every held view. The pending choice is dismissed either way.
func (c *Coordinator) RecategorizeItem(ctx context.Context, itemID, categoryID int64) error {
	returned, err := c.svc.SetItemCategory(ctx, itemID, categoryID)

	c.mu.Lock()
	if c.pendingItem == itemID {
		c.pendingItem = 0
	}
	if err != nil {
		c.mu.Unlock()
		return c.fail(ctx, log.OpRecategorize, err)
	}

	cat, ok := core.FindCategory(c.categories, categoryID)
	if !ok {
		cat = returned
		if cat.ID != categoryID {
			cat = core.Category{ID: categoryID}
		}
	}
	patched := c.updateItemsLocked(
		func(li core.LineItem) bool { return li.ID == itemID },
		func(li *core.LineItem) { li.Category = cat },
	)
	for i := range c.products {
		if c.products[i].ItemID == itemID {
			c.products[i].Category = cat
			patched++
		}
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Item recategorized",
		log.FieldItemID, itemID,
		log.FieldCategoryID, categoryID,
		log.FieldCount, patched)
	c.succeed(log.OpRecategorize, "Categoria atualizada!")
	return nil
}

// updateItemsLocked applies update to every line item matching match in
// the selected receipt, the last-scan buffer and the receipt list. It
// returns the number of items touched.
func (c *Coordinator) updateItemsLocked(match func(core.LineItem) bool, update func(*core.LineItem)) int {
	n := 0
	patch := func(r *core.Receipt) {
		if r == nil {
			return
		}
		for i := range r.Items {
			if match(r.Items[i]) {
				update(&r.Items[i])
				n++
			}
		}
	}
	patch(c.selected)
	patch(c.lastScan)
	for i := range c.receipts {
		patch(&c.receipts[i])
	}
	return n
}

// LoadCategories refreshes the local category set.
func (c *Coordinator) LoadCategories(ctx context.Context) ([]core.Category, error) {
	cats, err := c.svc.ListCategories(ctx)
	if err != nil {
		return nil, c.fail(ctx, log.OpList, fmt.Errorf("categories: %w", err))
	}
	c.mu.Lock()
	c.categories = append([]core.Category(nil), cats...)
	c.mu.Unlock()
	return cats, nil
}

// Categories returns the local category set.
func (c *Coordinator) Categories() []core.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Category(nil), c.categories...)
}

// CreateCategory creates a category with the default color. When an item
// is pending recategorization the new category is applied to it.
func (c *Coordinator) CreateCategory(ctx context.Context, name, icon string) (core.Category, error) {
	name = strings.TrimSpace(name)
	icon = strings.TrimSpace(icon)
	if name == "" {
		return core.Category{}, c.fail(ctx, log.OpCreate, core.ErrEmptyName)
	}
	if icon == "" {
		return core.Category{}, c.fail(ctx, log.OpCreate, core.ErrEmptyIcon)
	}

	cat, err := c.svc.CreateCategory(ctx, name, icon, core.DefaultCategoryColor)
	if err != nil {
		return core.Category{}, c.fail(ctx, log.OpCreate, err)
	}

	c.mu.Lock()
	if _, exists := core.FindCategory(c.categories, cat.ID); !exists {
		c.categories = append(c.categories, cat)
	}
	pending := c.pendingItem
	c.mu.Unlock()

	c.succeed(log.OpCreate, fmt.Sprintf("Categoria %q criada!", cat.Name))
	if pending != 0 {
		if err := c.RecategorizeItem(ctx, pending, cat.ID); err != nil {
			return cat, err
		}
	}
	return cat, nil
}

// ErrNoChange marks a rename that was skipped locally.
var ErrNoChange = errors.New("nothing to change")

// RenameVendor renames oldName to newName on every receipt. Held views with
// that vendor are patched and the active list is re-queried. It returns the
// number of receipts the service updated.
func (c *Coordinator) RenameVendor(ctx context.Context, oldName, newName string) (int, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" || newName == strings.TrimSpace(oldName) {
		return 0, ErrNoChange
	}

	updated, err := c.svc.RenameVendor(ctx, oldName, newName)
	if err != nil {
		return 0, c.fail(ctx, log.OpRename, err)
	}

	c.mu.Lock()
	for _, r := range []*core.Receipt{c.selected, c.lastScan} {
		if r != nil && r.Vendor == oldName {
			r.Vendor = newName
		}
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Vendor renamed", log.FieldVendor, newName, log.FieldCount, updated)
	c.succeed(log.OpRename, fmt.Sprintf("%d nota(s) atualizada(s).", updated))

	// A failed refresh reports its own notice; the rename itself stands.
	_ = c.Refresh(ctx)
	return updated, nil
}
