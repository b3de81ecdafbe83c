package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
)

const categoriesKey = "categorias"

// ReceiptQuery shapes GET /notas. Zero fields are omitted.
type ReceiptQuery struct {
	Limit  int
	Search string
	Since  core.Date
	Until  core.Date
}

func (q ReceiptQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("busca", q.Search)
	}
	if !q.Since.IsZero() {
		v.Set("data_inicio", q.Since.String())
	}
	if !q.Until.IsZero() {
		v.Set("data_fim", q.Until.String())
	}
	return v
}

// ListReceipts returns receipts newest first.
func (c *Client) ListReceipts(ctx context.Context, q ReceiptQuery) ([]core.Receipt, error) {
	var page core.ReceiptPage
	err := c.do(ctx, call{op: "list receipts", method: http.MethodGet, path: "/notas", query: q.values()}, &page)
	if err != nil {
		return nil, err
	}
	return page.Receipts, nil
}

func (c *Client) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	var r core.Receipt
	err := c.do(ctx, call{op: "get receipt", method: http.MethodGet, path: "/notas/" + strconv.FormatInt(id, 10)}, &r)
	return r, err
}

func (c *Client) CreateManualReceipt(ctx context.Context, entry core.ManualEntry) (core.ManualResult, error) {
	var res core.ManualResult
	err := c.do(ctx, call{op: "create manual receipt", method: http.MethodPost, path: "/notas/manual", body: entry}, &res)
	return res, err
}

// SearchProducts runs a full-history product search.
func (c *Client) SearchProducts(ctx context.Context, term string) ([]core.Product, error) {
	var page core.ProductPage
	q := url.Values{"q": {term}}
	if err := c.do(ctx, call{op: "search products", method: http.MethodGet, path: "/itens/busca", query: q}, &page); err != nil {
		return nil, err
	}
	return page.Products, nil
}

// ListCategories returns the category set, served from cache while fresh.
// Concurrent misses share one request.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	if cats, ok := c.categories.Get(categoriesKey); ok {
		return append([]core.Category(nil), cats...), nil
	}
	// Detached from the caller since the flight is shared. c.do still
	// applies the client timeout.
	shared := context.WithoutCancel(ctx)
	v, err, _ := c.flight.Do(categoriesKey, func() (any, error) {
		var list core.CategoryList
		if err := c.do(shared, call{op: "list categories", method: http.MethodGet, path: "/categorias"}, &list); err != nil {
			return nil, err
		}
		c.categories.Set(categoriesKey, list.Categories)
		return list.Categories, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]core.Category(nil), v.([]core.Category)...), nil
}

// InvalidateCategories forces the next ListCategories to hit the service.
func (c *Client) InvalidateCategories() {
	c.categories.Delete(categoriesKey)
}

// CreateCategory creates a category. A duplicate name yields ErrCategoryExists.
func (c *Client) CreateCategory(ctx context.Context, name, icon, color string) (core.Category, error) {
	q := url.Values{"nome": {name}, "icone": {icon}, "cor": {color}}
	var cat core.Category
	err := c.do(ctx, call{op: "create category", method: http.MethodPost, path: "/categorias", query: q}, &cat)
	if err != nil {
		if code := StatusCode(err); code == http.StatusBadRequest || code == http.StatusConflict {
			return core.Category{}, fmt.Errorf("%w: %w", ErrCategoryExists, err)
		}
		return core.Category{}, err
	}
	c.InvalidateCategories()
	return cat, nil
}

func (c *Client) SetItemCategory(ctx context.Context, itemID, categoryID int64) (core.Category, error) {
	q := url.Values{"categoria_id": {strconv.FormatInt(categoryID, 10)}}
	var res core.ItemCategoryResult
	path := "/item/" + strconv.FormatInt(itemID, 10) + "/categoria"
	if err := c.do(ctx, call{op: "set item category", method: http.MethodPut, path: path, query: q}, &res); err != nil {
		return core.Category{}, err
	}
	return res.Category, nil
}

// RenameVendor renames a vendor on every receipt and returns how many
// receipts were updated.
func (c *Client) RenameVendor(ctx context.Context, oldName, newName string) (int, error) {
	q := url.Values{"nome_atual": {oldName}, "novo_nome": {newName}}
	var res core.RenameResult
	if err := c.do(ctx, call{op: "rename vendor", method: http.MethodPut, path: "/estabelecimento/renomear", query: q}, &res); err != nil {
		return 0, err
	}
	return res.Updated, nil
}

// ScanURL asks the service to fetch and store the receipt behind a QR URL.
func (c *Client) ScanURL(ctx context.Context, rawURL string) (core.Receipt, error) {
	var r core.Receipt
	err := c.do(ctx, call{
		op:      "scan",
		method:  http.MethodPost,
		path:    "/scan/url",
		query:   url.Values{"url": {rawURL}},
		timeout: c.scanTimeout,
	}, &r)
	if err == nil {
		return r, nil
	}

	code := StatusCode(err)
	switch {
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		err = fmt.Errorf("%w: %w", ErrNotReceipt, err)
	case code >= http.StatusInternalServerError:
		err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	if !errors.Is(err, ErrConnectivity) {
		c.logger.InfoContext(ctx, "Scan rejected", log.FieldOperation, log.OpScan, log.FieldStatusCode, code)
	}
	return core.Receipt{}, err
}

func (c *Client) CategorySummary(ctx context.Context, r core.DateRange) (core.CategorySummary, error) {
	var s core.CategorySummary
	err := c.do(ctx, call{op: "dashboard categories", method: http.MethodGet, path: "/dashboard/resumo", query: rangeQuery(r)}, &s)
	return s, err
}

func (c *Client) Stats(ctx context.Context, r core.DateRange) (core.Stats, error) {
	var s core.Stats
	err := c.do(ctx, call{op: "dashboard stats", method: http.MethodGet, path: "/dashboard/estatisticas", query: rangeQuery(r)}, &s)
	return s, err
}

func (c *Client) TopVendors(ctx context.Context, r core.DateRange, limit int) (core.VendorSummary, error) {
	q := rangeQuery(r)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var s core.VendorSummary
	err := c.do(ctx, call{op: "dashboard vendors", method: http.MethodGet, path: "/dashboard/fornecedores", query: q}, &s)
	return s, err
}

func (c *Client) ItemsByCategory(ctx context.Context, categoryID int64, r core.DateRange) (core.Breakdown, error) {
	var b core.Breakdown
	path := "/itens/categoria/" + strconv.FormatInt(categoryID, 10)
	err := c.do(ctx, call{op: "items by category", method: http.MethodGet, path: path, query: rangeQuery(r)}, &b)
	return b, err
}

func (c *Client) ItemsByVendor(ctx context.Context, vendor string, r core.DateRange) (core.Breakdown, error) {
	q := rangeQuery(r)
	q.Set("estabelecimento", vendor)
	var b core.Breakdown
	err := c.do(ctx, call{op: "items by vendor", method: http.MethodGet, path: "/itens/fornecedor", query: q}, &b)
	if err == nil && b.Vendor == "" {
		b.Vendor = vendor
	}
	return b, err
}

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (core.Health, error) {
	var h core.Health
	err := c.do(ctx, call{op: "health", method: http.MethodGet, path: "/health"}, &h)
	return h, err
}
