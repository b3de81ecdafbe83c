package coordinator

import (
	"context"
	"strings"
	"unicode/utf8"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/remote"
)

// MinSearchLength is the shortest trimmed term that triggers a product search.
const MinSearchLength = 2

// listQuery captures the parameters of the active list at issue time.
type listQuery struct {
	gen   uint64
	kind  ModeKind
	term  string
	query remote.ReceiptQuery
}

// SelectDateFilter switches to Receipts(f), dropping any search term.
func (c *Coordinator) SelectDateFilter(ctx context.Context, f core.DateFilter) error {
	c.mu.Lock()
	c.filter = f
	c.enterReceiptsLocked()
	q := c.issueListLocked()
	c.mu.Unlock()

	return c.fetchList(ctx, q)
}

// SubmitSearch switches to Products(term) when the trimmed term has at
// least MinSearchLength characters. Shorter terms behave like ClearSearch.
func (c *Coordinator) SubmitSearch(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinSearchLength {
		return c.ClearSearch(ctx)
	}

	c.mu.Lock()
	if c.mode != ModeProducts {
		c.mode = ModeProducts
		c.receipts = nil
		c.products = []core.Product{}
	}
	c.term = term
	q := c.issueListLocked()
	c.mu.Unlock()

	return c.fetchList(ctx, q)
}

// ClearSearch returns to Receipts under the current date filter.
func (c *Coordinator) ClearSearch(ctx context.Context) error {
	c.mu.Lock()
	c.enterReceiptsLocked()
	q := c.issueListLocked()
	c.mu.Unlock()

	return c.fetchList(ctx, q)
}

// Refresh re-issues the active query with unchanged parameters.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	q := c.issueListLocked()
	c.mu.Unlock()

	return c.fetchList(ctx, q)
}

func (c *Coordinator) enterReceiptsLocked() {
	c.term = ""
	if c.mode != ModeReceipts {
		c.mode = ModeReceipts
		c.products = nil
		c.receipts = []core.Receipt{}
	}
}

// issueListLocked bumps the list generation and snapshots the query that
// represents the current mode.
func (c *Coordinator) issueListLocked() listQuery {
	c.listGen++
	c.loading = true
	q := listQuery{gen: c.listGen, kind: c.mode, term: c.term}
	if c.mode == ModeReceipts {
		q.query = remote.ReceiptQuery{Limit: c.listLimit}
		if since, ok := c.filter.Start(c.today()); ok {
			q.query.Since = since
		}
	}
	return q
}

func (c *Coordinator) fetchList(ctx context.Context, q listQuery) error {
	var (
		receipts []core.Receipt
		products []core.Product
		err      error
		op       = log.OpList
	)
	if q.kind == ModeProducts {
		op = log.OpSearch
		products, err = c.svc.SearchProducts(ctx, q.term)
	} else {
		receipts, err = c.svc.ListReceipts(ctx, q.query)
	}

	c.mu.Lock()
	if q.gen != c.listGen {
		c.mu.Unlock()
		return c.fail(ctx, op, ErrSuperseded)
	}
	c.loading = false
	if err == nil {
		if q.kind == ModeProducts {
			if products == nil {
				products = []core.Product{}
			}
			c.products = products
		} else {
			if receipts == nil {
				receipts = []core.Receipt{}
			}
			c.receipts = receipts
		}
	}
	c.mu.Unlock()

	if err != nil {
		return c.fail(ctx, op, err)
	}
	c.logger.DebugContext(ctx, "List updated",
		log.FieldOperation, op,
		log.FieldMode, q.kind.String(),
		log.FieldTerm, q.term,
		log.FieldRangeStart, q.query.Since.String(),
		log.FieldCount, len(receipts)+len(products),
		log.FieldGeneration, q.gen)
	return nil
}
