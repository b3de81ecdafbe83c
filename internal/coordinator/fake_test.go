package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"nfcescan/internal/core"
	"nfcescan/internal/remote"
)

// fakeService records every call and answers from its fields.
type fakeService struct {
	mu    sync.Mutex
	calls []string

	receipts      []core.Receipt
	receiptQuery  []remote.ReceiptQuery
	listErr       error
	listHook      func(remote.ReceiptQuery)
	products      []core.Product
	searchTerms   []string
	byID          map[int64]core.Receipt
	categories    []core.Category
	nextCatID     int64
	createCatErr  error
	setCatErr     error
	setCatCalls   [][2]int64
	renameCount   int
	renameErr     error
	manualEntries []core.ManualEntry
	scanResult    core.Receipt
	scanErr       error
	summaryErr    error
	statsErr      error
	vendorsErr    error
	ranges        []core.DateRange
	vendorLimit   int
	breakdown     core.Breakdown
}

func (f *fakeService) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeService) ListReceipts(ctx context.Context, q remote.ReceiptQuery) ([]core.Receipt, error) {
	f.record("ListReceipts")
	f.mu.Lock()
	f.receiptQuery = append(f.receiptQuery, q)
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook(q)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Receipt(nil), f.receipts...), nil
}

func (f *fakeService) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	f.record("GetReceipt")
	r, ok := f.byID[id]
	if !ok {
		return core.Receipt{}, &remote.StatusError{Op: "get receipt", Code: 404}
	}
	return r, nil
}

func (f *fakeService) CreateManualReceipt(ctx context.Context, entry core.ManualEntry) (core.ManualResult, error) {
	f.record("CreateManualReceipt")
	f.manualEntries = append(f.manualEntries, entry)
	var total core.Money
	for _, it := range entry.Items {
		total.Cents += core.LineItem{Quantity: it.Quantity, UnitValue: it.Value}.Subtotal().Cents
	}
	return core.ManualResult{Success: true, ID: 99, Items: len(entry.Items), Total: total}, nil
}

func (f *fakeService) SearchProducts(ctx context.Context, term string) ([]core.Product, error) {
	f.record("SearchProducts")
	f.mu.Lock()
	f.searchTerms = append(f.searchTerms, term)
	f.mu.Unlock()
	return append([]core.Product(nil), f.products...), nil
}

func (f *fakeService) ListCategories(ctx context.Context) ([]core.Category, error) {
	f.record("ListCategories")
	return append([]core.Category(nil), f.categories...), nil
}

func (f *fakeService) CreateCategory(ctx context.Context, name, icon, color string) (core.Category, error) {
	f.record("CreateCategory")
	if f.createCatErr != nil {
		return core.Category{}, f.createCatErr
	}
	f.nextCatID++
	cat := core.Category{ID: f.nextCatID, Name: name, Icon: icon, Color: color}
	f.categories = append(f.categories, cat)
	return cat, nil
}

func (f *fakeService) SetItemCategory(ctx context.Context, itemID, categoryID int64) (core.Category, error) {
	f.record("SetItemCategory")
	f.setCatCalls = append(f.setCatCalls, [2]int64{itemID, categoryID})
	if f.setCatErr != nil {
		return core.Category{}, f.setCatErr
	}
	cat, _ := core.FindCategory(f.categories, categoryID)
	return cat, nil
}

func (f *fakeService) RenameVendor(ctx context.Context, oldName, newName string) (int, error) {
	f.record("RenameVendor")
	return f.renameCount, f.renameErr
}

func (f *fakeService) ScanURL(ctx context.Context, rawURL string) (core.Receipt, error) {
	f.record("ScanURL")
	if f.scanErr != nil {
		return core.Receipt{}, f.scanErr
	}
	return f.scanResult, nil
}

func (f *fakeService) addRange(r core.DateRange) {
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	f.mu.Unlock()
}

func (f *fakeService) CategorySummary(ctx context.Context, r core.DateRange) (core.CategorySummary, error) {
	f.record("CategorySummary")
	f.addRange(r)
	if f.summaryErr != nil {
		return core.CategorySummary{}, f.summaryErr
	}
	return core.CategorySummary{Total: core.Money{Cents: 1000}, Categories: []core.CategoryTotal{{ID: 1, Name: "Alimentação", Total: core.Money{Cents: 1000}, Percent: 100}}}, nil
}

func (f *fakeService) Stats(ctx context.Context, r core.DateRange) (core.Stats, error) {
	f.record("Stats")
	f.addRange(r)
	if f.statsErr != nil {
		return core.Stats{}, f.statsErr
	}
	return core.Stats{Total: core.Money{Cents: 1000}, Receipts: 2}, nil
}

func (f *fakeService) TopVendors(ctx context.Context, r core.DateRange, limit int) (core.VendorSummary, error) {
	f.record("TopVendors")
	f.addRange(r)
	f.mu.Lock()
	f.vendorLimit = limit
	f.mu.Unlock()
	if f.vendorsErr != nil {
		return core.VendorSummary{}, f.vendorsErr
	}
	return core.VendorSummary{Count: 1, Vendors: []core.VendorTotal{{Name: "MERCADO", Total: core.Money{Cents: 1000}, Purchases: 2, Percent: 100}}}, nil
}

func (f *fakeService) ItemsByCategory(ctx context.Context, categoryID int64, r core.DateRange) (core.Breakdown, error) {
	f.record("ItemsByCategory")
	f.addRange(r)
	return f.breakdown, nil
}

func (f *fakeService) ItemsByVendor(ctx context.Context, vendor string, r core.DateRange) (core.Breakdown, error) {
	f.record("ItemsByVendor")
	f.addRange(r)
	b := f.breakdown
	b.Vendor = vendor
	return b, nil
}

var errBoom = errors.New("boom")

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) add(x Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, x)
	n.mu.Unlock()
}

func (n *noticeLog) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

func (n *noticeLog) count(level Level) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.notices {
		if x.Level == level {
			c++
		}
	}
	return c
}

// newTestCoordinator pins the clock to 2024-06-10.
func newTestCoordinator(svc *fakeService) (*Coordinator, *noticeLog) {
	return newTestCoordinatorAt(svc, time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC))
}

func newTestCoordinatorAt(svc *fakeService, now time.Time) (*Coordinator, *noticeLog) {
	notes := &noticeLog{}
	c := New(Options{
		Service:      svc,
		Now:          func() time.Time { return now },
		Notify:       notes.add,
		ListLimit:    100,
		VendorLimit:  5,
		ScanCooldown: 2 * time.Second,
	})
	return c, notes
}
