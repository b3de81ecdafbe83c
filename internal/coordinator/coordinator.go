// Package coordinator turns user intent into remote queries and keeps the
// resulting display state.
//
// The Coordinator owns exactly one active list, either receipts or
// products, plus the selected receipt, the last scanned receipt, the
// dashboard with its drill-down, the category set and the manual-entry
// draft. Every operation applies its intent eagerly under the lock, then
// performs network I/O without holding it. Each query family carries a
// generation counter so that a response to a superseded request is
// dropped instead of overwriting newer state.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"nfcescan/internal/core"
	"nfcescan/internal/log"
	"nfcescan/internal/remote"
)

// ErrSuperseded is returned when a newer request of the same family was
// issued while this one was in flight. It never produces a notice.
var ErrSuperseded = errors.New("superseded by a newer request")

// Service is the subset of the remote data service the coordinator uses.
// *remote.Client implements it.
type Service interface {
	ListReceipts(ctx context.Context, q remote.ReceiptQuery) ([]core.Receipt, error)
	GetReceipt(ctx context.Context, id int64) (core.Receipt, error)
	CreateManualReceipt(ctx context.Context, entry core.ManualEntry) (core.ManualResult, error)
	SearchProducts(ctx context.Context, term string) ([]core.Product, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, name, icon, color string) (core.Category, error)
	SetItemCategory(ctx context.Context, itemID, categoryID int64) (core.Category, error)
	RenameVendor(ctx context.Context, oldName, newName string) (int, error)
	ScanURL(ctx context.Context, rawURL string) (core.Receipt, error)
	CategorySummary(ctx context.Context, r core.DateRange) (core.CategorySummary, error)
	Stats(ctx context.Context, r core.DateRange) (core.Stats, error)
	TopVendors(ctx context.Context, r core.DateRange, limit int) (core.VendorSummary, error)
	ItemsByCategory(ctx context.Context, categoryID int64, r core.DateRange) (core.Breakdown, error)
	ItemsByVendor(ctx context.Context, vendor string, r core.DateRange) (core.Breakdown, error)
}

// ModeKind tells which list is active.
type ModeKind int

const (
	ModeReceipts ModeKind = iota
	ModeProducts
)

func (k ModeKind) String() string {
	if k == ModeProducts {
		return "products"
	}
	return "receipts"
}

// Mode is the display state: Receipts(Filter) or Products(Term).
type Mode struct {
	Kind   ModeKind
	Filter core.DateFilter
	Term   string
}

// Options configures a Coordinator.
type Options struct {
	Service Service
	Logger  *log.Logger
	// Now is the clock; calendar days are taken in its location.
	Now func() time.Time
	// Notify receives every user-facing notice. It is called without the
	// coordinator lock held.
	Notify       func(Notice)
	ListLimit    int
	VendorLimit  int
	ScanCooldown time.Duration
	// AfterFunc schedules the scan re-arm. Defaults to time.AfterFunc.
	AfterFunc func(time.Duration, func())
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	svc          Service
	logger       *log.Logger
	now          func() time.Time
	notify       func(Notice)
	listLimit    int
	vendorLimit  int
	scanCooldown time.Duration
	afterFunc    func(time.Duration, func())

	mu sync.Mutex

	mode     ModeKind
	filter   core.DateFilter
	term     string
	receipts []core.Receipt
	products []core.Product
	loading  bool

	selected    *core.Receipt
	lastScan    *core.Receipt
	pendingItem int64
	categories  []core.Category

	period    core.Period
	dashboard *core.Dashboard
	drill     *core.Breakdown

	draft core.ManualDraft

	scanBusy   bool
	scanLocked bool
	scanGen    uint64

	listGen   uint64
	detailGen uint64
	dashGen   uint64
	drillGen  uint64
}

// New returns a coordinator in the initial state Receipts(all). No query is
// issued until the first operation.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		svc:          opts.Service,
		logger:       opts.Logger,
		now:          opts.Now,
		notify:       opts.Notify,
		listLimit:    opts.ListLimit,
		vendorLimit:  opts.VendorLimit,
		scanCooldown: opts.ScanCooldown,
		afterFunc:    opts.AfterFunc,
		mode:         ModeReceipts,
		filter:       core.FilterAll,
		period:       core.PeriodThisYear,
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentCoordinator)
	if c.now == nil {
		c.now = time.Now
	}
	if c.notify == nil {
		c.notify = func(Notice) {}
	}
	if c.listLimit <= 0 {
		c.listLimit = 100
	}
	if c.vendorLimit <= 0 {
		c.vendorLimit = 5
	}
	if c.scanCooldown <= 0 {
		c.scanCooldown = 2 * time.Second
	}
	if c.afterFunc == nil {
		c.afterFunc = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	return c
}

// today is the current calendar day in the clock's location.
func (c *Coordinator) today() core.Date {
	return core.DateOf(c.now())
}

// Snapshot is a copy of the display state. Mutating it does not affect
// the coordinator.
type Snapshot struct {
	Mode        Mode
	Receipts    []core.Receipt
	Products    []core.Product
	Loading     bool
	Selected    *core.Receipt
	LastScan    *core.Receipt
	PendingItem int64
	Categories  []core.Category
	Period      core.Period
	Dashboard   *core.Dashboard
	DrillDown   *core.Breakdown
	DraftVendor string
	DraftItems  []core.DraftItem
	DraftTotal  core.Money
	ScanLocked  bool
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Mode:        c.modeLocked(),
		Loading:     c.loading,
		Selected:    cloneReceipt(c.selected),
		LastScan:    cloneReceipt(c.lastScan),
		PendingItem: c.pendingItem,
		Categories:  append([]core.Category(nil), c.categories...),
		Period:      c.period,
		DraftVendor: c.draft.Vendor,
		DraftItems:  c.draft.Items(),
		DraftTotal:  c.draft.Total(),
		ScanLocked:  c.scanBusy || c.scanLocked,
	}
	if c.receipts != nil {
		s.Receipts = make([]core.Receipt, len(c.receipts))
		for i := range c.receipts {
			s.Receipts[i] = *cloneReceipt(&c.receipts[i])
		}
	}
	if c.products != nil {
		s.Products = append([]core.Product{}, c.products...)
	}
	if c.dashboard != nil {
		d := *c.dashboard
		d.Categories.Categories = append([]core.CategoryTotal(nil), d.Categories.Categories...)
		d.Vendors.Vendors = append([]core.VendorTotal(nil), d.Vendors.Vendors...)
		s.Dashboard = &d
	}
	if c.drill != nil {
		b := *c.drill
		b.Items = append([]core.BreakdownItem(nil), c.drill.Items...)
		s.DrillDown = &b
	}
	return s
}

// Mode returns the current display mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modeLocked()
}

func (c *Coordinator) modeLocked() Mode {
	m := Mode{Kind: c.mode, Filter: c.filter}
	if c.mode == ModeProducts {
		m.Term = c.term
	}
	return m
}

func cloneReceipt(r *core.Receipt) *core.Receipt {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Items = append([]core.LineItem(nil), r.Items...)
	if r.Meta != nil {
		meta := *r.Meta
		cp.Meta = &meta
	}
	return &cp
}

// fail converts err to a notice and logs it. Superseded responses are
// passed through silently.
func (c *Coordinator) fail(ctx context.Context, op string, err error) error {
	if errors.Is(err, ErrSuperseded) {
		c.logger.DebugContext(ctx, "Dropped stale response", log.FieldOperation, op, log.FieldErrorType, log.ErrorTypeStale)
		return err
	}
	c.logger.WarnContext(ctx, "Operation failed",
		log.FieldOperation, op,
		log.FieldErrorType, errorType(err),
		log.FieldError, err)
	c.notify(Notice{Level: LevelError, Op: op, Message: messageFor(op, err), Err: err})
	return err
}

func (c *Coordinator) succeed(op, message string) {
	c.notify(Notice{Level: LevelSuccess, Op: op, Message: message})
}
