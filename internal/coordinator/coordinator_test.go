package coordinator

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"nfcescan/internal/core"
	"nfcescan/internal/remote"
)

func TestNewInitialState(t *testing.T) {
	c, _ := newTestCoordinator(&fakeService{})
	snap := c.Snapshot()

	if snap.Mode.Kind != ModeReceipts || snap.Mode.Filter != core.FilterAll {
		t.Errorf("initial mode = %+v, want Receipts(all)", snap.Mode)
	}
	if snap.Period != core.PeriodThisYear {
		t.Errorf("initial period = %q, want %q", snap.Period, core.PeriodThisYear)
	}
	if snap.Selected != nil || snap.LastScan != nil || snap.Dashboard != nil {
		t.Error("initial state should hold no receipt or dashboard")
	}
}

func TestSelectDateFilterAlwaysEntersReceipts(t *testing.T) {
	for _, f := range core.DateFilters() {
		t.Run(string(f), func(t *testing.T) {
			svc := &fakeService{}
			c, _ := newTestCoordinator(svc)
			ctx := context.Background()

			if err := c.SubmitSearch(ctx, "arroz"); err != nil {
				t.Fatalf("SubmitSearch: %v", err)
			}
			if err := c.SelectDateFilter(ctx, f); err != nil {
				t.Fatalf("SelectDateFilter: %v", err)
			}

			m := c.Mode()
			if m.Kind != ModeReceipts || m.Filter != f || m.Term != "" {
				t.Errorf("mode = %+v, want Receipts(%s) without term", m, f)
			}
			snap := c.Snapshot()
			if snap.Products != nil {
				t.Errorf("products should be cleared, got %v", snap.Products)
			}
		})
	}
}

func TestSubmitSearchShortTermClears(t *testing.T) {
	tests := []struct {
		name string
		term string
	}{
		{"empty", ""},
		{"single char", "a"},
		{"padded single char", "  a  "},
		{"single multibyte rune", "é"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			c, _ := newTestCoordinator(svc)
			ctx := context.Background()

			_ = c.SubmitSearch(ctx, "leite")
			if err := c.SubmitSearch(ctx, tt.term); err != nil {
				t.Fatalf("SubmitSearch(%q): %v", tt.term, err)
			}
			if m := c.Mode(); m.Kind != ModeReceipts {
				t.Errorf("SubmitSearch(%q) mode = %s, want receipts", tt.term, m.Kind)
			}
			if len(svc.searchTerms) != 1 {
				t.Errorf("search calls = %v, want only the first", svc.searchTerms)
			}
		})
	}
}

func TestSearchAndClearRestoresFilter(t *testing.T) {
	svc := &fakeService{
		receipts: []core.Receipt{{ID: 1, Vendor: "MERCADO"}},
		products: []core.Product{{ItemID: 7, ReceiptID: 1, Name: "LEITE"}},
	}
	c, _ := newTestCoordinator(svc)
	ctx := context.Background()

	if err := c.SelectDateFilter(ctx, core.FilterLast7Days); err != nil {
		t.Fatalf("SelectDateFilter: %v", err)
	}
	if got := svc.receiptQuery[0].Since.String(); got != "2024-06-03" {
		t.Errorf("data_inicio = %s, want 2024-06-03", got)
	}
	if got := svc.receiptQuery[0].Limit; got != 100 {
		t.Errorf("limit = %d, want 100", got)
	}

	if err := c.SubmitSearch(ctx, " milk "); err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}
	snap := c.Snapshot()
	if snap.Mode.Kind != ModeProducts || snap.Mode.Term != "milk" {
		t.Errorf("mode = %+v, want Products(milk)", snap.Mode)
	}
	if snap.Receipts != nil {
		t.Errorf("receipts should be cleared in products mode, got %d", len(snap.Receipts))
	}
	if len(snap.Products) != 1 {
		t.Errorf("products = %d, want 1", len(snap.Products))
	}
	if svc.searchTerms[0] != "milk" {
		t.Errorf("search term = %q, want %q", svc.searchTerms[0], "milk")
	}

	if err := c.ClearSearch(ctx); err != nil {
		t.Fatalf("ClearSearch: %v", err)
	}
	snap = c.Snapshot()
	if snap.Mode.Kind != ModeReceipts || snap.Mode.Filter != core.FilterLast7Days {
		t.Errorf("mode = %+v, want Receipts(last7days)", snap.Mode)
	}
	if snap.Products != nil {
		t.Error("products should be cleared after ClearSearch")
	}
	last := svc.receiptQuery[len(svc.receiptQuery)-1]
	if last.Since.String() != "2024-06-03" {
		t.Errorf("data_inicio after clear = %s, want 2024-06-03", last.Since)
	}
}

func TestFilterAllSendsNoLowerBound(t *testing.T) {
	svc := &fakeService{}
	c, _ := newTestCoordinator(svc)

	if err := c.SelectDateFilter(context.Background(), core.FilterAll); err != nil {
		t.Fatalf("SelectDateFilter: %v", err)
	}
	if !svc.receiptQuery[0].Since.IsZero() {
		t.Errorf("data_inicio = %s, want none", svc.receiptQuery[0].Since)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	svc := &fakeService{receipts: []core.Receipt{{ID: 1}, {ID: 2}}}
	c, _ := newTestCoordinator(svc)
	ctx := context.Background()

	_ = c.SelectDateFilter(ctx, core.FilterThisMonth)
	first := c.Snapshot()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	second := c.Snapshot()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("state changed across refreshes:\n got %+v\nwant %+v", second, first)
	}
	for i, q := range svc.receiptQuery {
		if q != svc.receiptQuery[0] {
			t.Errorf("query %d = %+v, want %+v", i, q, svc.receiptQuery[0])
		}
	}
}

func TestListFailureKeepsModeAndNotifies(t *testing.T) {
	svc := &fakeService{listErr: remote.ErrConnectivity}
	c, notes := newTestCoordinator(svc)

	err := c.SelectDateFilter(context.Background(), core.FilterLast30Days)
	if !errors.Is(err, remote.ErrConnectivity) {
		t.Fatalf("err = %v, want ErrConnectivity", err)
	}
	snap := c.Snapshot()
	if snap.Mode.Filter != core.FilterLast30Days || snap.Loading {
		t.Errorf("snapshot = %+v, want filter kept and loading cleared", snap.Mode)
	}
	if n := notes.last(); n.Level != LevelError || !strings.Contains(n.Message, "conexão") {
		t.Errorf("notice = %+v, want connectivity error", n)
	}
}

func TestStaleListResponseDropped(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	svc := &fakeService{receipts: []core.Receipt{{ID: 1}}}
	svc.listHook = func(q remote.ReceiptQuery) {
		if q.Since.IsZero() {
			once.Do(func() { close(started) })
			<-release
		}
	}
	c, notes := newTestCoordinator(svc)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() { errc <- c.SelectDateFilter(ctx, core.FilterAll) }()
	<-started

	if err := c.SubmitSearch(ctx, "café"); err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale request err = %v, want ErrSuperseded", err)
	}
	snap := c.Snapshot()
	if snap.Mode.Kind != ModeProducts || snap.Receipts != nil {
		t.Errorf("stale receipts overwrote products mode: %+v", snap.Mode)
	}
	if notes.count(LevelError) != 0 {
		t.Errorf("stale response produced %d error notices", notes.count(LevelError))
	}
}

func TestOpenReceipt(t *testing.T) {
	r := core.Receipt{ID: 5, Vendor: "PADARIA", Items: []core.LineItem{{ID: 1, Name: "PAO"}}}
	svc := &fakeService{byID: map[int64]core.Receipt{5: r}}
	c, _ := newTestCoordinator(svc)

	c.OpenReceipt(r)
	if svc.callCount() != 0 {
		t.Errorf("inline open made %d calls", svc.callCount())
	}

	got, err := c.OpenReceiptByID(context.Background(), 5)
	if err != nil {
		t.Fatalf("OpenReceiptByID: %v", err)
	}
	if got.Vendor != "PADARIA" || c.Snapshot().Selected.ID != 5 {
		t.Errorf("selected = %+v, want receipt 5", c.Snapshot().Selected)
	}

	_, err = c.OpenReceiptByID(context.Background(), 404)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("missing receipt err = %v, want ErrNotFound", err)
	}
	if c.Snapshot().Selected.ID != 5 {
		t.Error("failed open replaced the selection")
	}

	c.CloseReceipt()
	if c.Snapshot().Selected != nil {
		t.Error("CloseReceipt kept the selection")
	}
}

func TestRecategorizePatchesEveryView(t *testing.T) {
	cats := []core.Category{{ID: 1, Name: "Alimentação", Icon: "🍔"}, {ID: 2, Name: "Limpeza", Icon: "🧹"}}
	receipt := core.Receipt{ID: 3, Vendor: "MERCADO", Items: []core.LineItem{
		{ID: 11, Name: "SABAO", Category: cats[0]},
		{ID: 12, Name: "ARROZ", Category: cats[0]},
	}}
	svc := &fakeService{
		categories: cats,
		receipts:   []core.Receipt{receipt},
		scanResult: receipt,
	}
	c, notes := newTestCoordinator(svc)
	ctx := context.Background()

	if _, err := c.LoadCategories(ctx); err != nil {
		t.Fatalf("LoadCategories: %v", err)
	}
	_ = c.SelectDateFilter(ctx, core.FilterAll)
	if _, err := c.Scan(ctx, "https://sefaz.example/nfce?p=123456789012345678901234"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	c.OpenReceipt(receipt)
	c.BeginRecategorize(11)

	if err := c.RecategorizeItem(ctx, 11, 2); err != nil {
		t.Fatalf("RecategorizeItem: %v", err)
	}
	first := c.Snapshot()
	if err := c.RecategorizeItem(ctx, 11, 2); err != nil {
		t.Fatalf("second RecategorizeItem: %v", err)
	}
	second := c.Snapshot()

	if !reflect.DeepEqual(first, second) {
		t.Error("repeating the same recategorization changed the state")
	}
	views := map[string]*core.Receipt{
		"selected":  first.Selected,
		"last scan": first.LastScan,
		"list":      &first.Receipts[0],
	}
	for name, r := range views {
		if r.Items[0].Category.ID != 2 {
			t.Errorf("%s item 11 category = %d, want 2", name, r.Items[0].Category.ID)
		}
		if r.Items[1].Category.ID != 1 {
			t.Errorf("%s item 12 category = %d, want untouched 1", name, r.Items[1].Category.ID)
		}
	}
	if first.PendingItem != 0 {
		t.Errorf("pending item = %d, want dismissed", first.PendingItem)
	}
	if n := notes.last(); n.Level != LevelSuccess {
		t.Errorf("notice = %+v, want success", n)
	}
}

func TestRecategorizeFailureLeavesItems(t *testing.T) {
	receipt := core.Receipt{ID: 3, Items: []core.LineItem{{ID: 11, Category: core.Category{ID: 1}}}}
	svc := &fakeService{setCatErr: &remote.StatusError{Op: "set item category", Code: 404}}
	c, notes := newTestCoordinator(svc)

	c.OpenReceipt(receipt)
	c.BeginRecategorize(11)
	if err := c.RecategorizeItem(context.Background(), 11, 2); err == nil {
		t.Fatal("expected error")
	}
	snap := c.Snapshot()
	if snap.Selected.Items[0].Category.ID != 1 {
		t.Errorf("category = %d, want unchanged 1", snap.Selected.Items[0].Category.ID)
	}
	if snap.PendingItem != 0 {
		t.Errorf("pending item = %d, want dismissed", snap.PendingItem)
	}
	if n := notes.last(); n.Level != LevelError || n.Message != "Não foi possível atualizar" {
		t.Errorf("notice = %+v", n)
	}
}

func TestCreateCategoryAppliesToPendingItem(t *testing.T) {
	svc := &fakeService{nextCatID: 8}
	c, _ := newTestCoordinator(svc)
	ctx := context.Background()

	c.OpenReceipt(core.Receipt{ID: 1, Items: []core.LineItem{{ID: 42, Name: "RACAO"}}})
	c.BeginRecategorize(42)

	cat, err := c.CreateCategory(ctx, " Pets ", "🐕")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if cat.ID != 9 || cat.Name != "Pets" || cat.Color != core.DefaultCategoryColor {
		t.Errorf("category = %+v", cat)
	}
	if len(svc.setCatCalls) != 1 || svc.setCatCalls[0] != [2]int64{42, 9} {
		t.Errorf("set-category calls = %v, want [[42 9]]", svc.setCatCalls)
	}
	snap := c.Snapshot()
	if got := snap.Selected.Items[0].Category; got.ID != 9 || got.Name != "Pets" {
		t.Errorf("item category = %+v, want Pets", got)
	}
	if len(snap.Categories) != 1 {
		t.Errorf("local categories = %v, want the new one", snap.Categories)
	}
}

func TestCreateCategoryValidation(t *testing.T) {
	tests := []struct {
		name    string
		catName string
		icon    string
		wantErr error
		wantMsg string
	}{
		{"empty name", "  ", "🐕", core.ErrEmptyName, "Informe o nome"},
		{"empty icon", "Pets", "", core.ErrEmptyIcon, "Preencha o nome e o emoji"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			c, notes := newTestCoordinator(svc)

			_, err := c.CreateCategory(context.Background(), tt.catName, tt.icon)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if svc.callCount() != 0 {
				t.Errorf("invalid input made %d calls", svc.callCount())
			}
			if got := notes.last().Message; got != tt.wantMsg {
				t.Errorf("notice = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestCreateCategoryDuplicate(t *testing.T) {
	svc := &fakeService{createCatErr: remote.ErrCategoryExists}
	c, notes := newTestCoordinator(svc)

	if _, err := c.CreateCategory(context.Background(), "Pets", "🐕"); !errors.Is(err, remote.ErrCategoryExists) {
		t.Errorf("err = %v, want ErrCategoryExists", err)
	}
	if got := notes.last().Message; got != "Essa categoria já existe" {
		t.Errorf("notice = %q", got)
	}
}

func TestRenameVendorNoChange(t *testing.T) {
	tests := []struct {
		name    string
		oldName string
		newName string
	}{
		{"empty", "MERCADO", "   "},
		{"same", "MERCADO", " MERCADO "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			c, notes := newTestCoordinator(svc)

			_, err := c.RenameVendor(context.Background(), tt.oldName, tt.newName)
			if !errors.Is(err, ErrNoChange) {
				t.Errorf("err = %v, want ErrNoChange", err)
			}
			if svc.callCount() != 0 {
				t.Errorf("no-op rename made %d calls", svc.callCount())
			}
			if len(notes.notices) != 0 {
				t.Errorf("no-op rename produced notices: %v", notes.notices)
			}
		})
	}
}

func TestRenameVendorPatchesAndRefreshes(t *testing.T) {
	svc := &fakeService{renameCount: 3}
	c, notes := newTestCoordinator(svc)
	ctx := context.Background()

	c.OpenReceipt(core.Receipt{ID: 1, Vendor: "SUPERMERCADO XYZ LTDA"})
	n, err := c.RenameVendor(ctx, "SUPERMERCADO XYZ LTDA", "Mercado do Zé")
	if err != nil {
		t.Fatalf("RenameVendor: %v", err)
	}
	if n != 3 {
		t.Errorf("updated = %d, want 3", n)
	}
	if got := c.Snapshot().Selected.Vendor; got != "Mercado do Zé" {
		t.Errorf("selected vendor = %q", got)
	}
	if len(svc.receiptQuery) != 1 {
		t.Errorf("list queries after rename = %d, want 1", len(svc.receiptQuery))
	}
	var found bool
	for _, x := range notes.notices {
		if x.Level == LevelSuccess && x.Message == "3 nota(s) atualizada(s)." {
			found = true
		}
	}
	if !found {
		t.Errorf("notices = %+v, want rename success", notes.notices)
	}
}

func TestBuildDashboard(t *testing.T) {
	svc := &fakeService{}
	c, _ := newTestCoordinator(svc)

	d, err := c.BuildDashboard(context.Background(), core.PeriodLast3Months)
	if err != nil {
		t.Fatalf("BuildDashboard: %v", err)
	}
	if d.Range.Start.String() != "2024-04-01" || d.Range.End.String() != "2024-07-01" {
		t.Errorf("range = %s, want [2024-04-01, 2024-07-01)", d.Range)
	}
	for i, r := range svc.ranges {
		if r != d.Range {
			t.Errorf("call %d range = %s, want %s", i, r, d.Range)
		}
	}
	if svc.vendorLimit != 5 {
		t.Errorf("vendor limit = %d, want 5", svc.vendorLimit)
	}
	snap := c.Snapshot()
	if snap.Dashboard == nil || snap.Period != core.PeriodLast3Months {
		t.Fatalf("dashboard not stored: %+v", snap.Period)
	}
	if len(snap.Dashboard.Vendors.Vendors) != 1 || snap.Dashboard.Stats.Receipts != 2 {
		t.Errorf("dashboard = %+v", snap.Dashboard)
	}
}

func TestBuildDashboardAllOrNothing(t *testing.T) {
	tests := []struct {
		name string
		fail func(*fakeService)
	}{
		{"summary fails", func(f *fakeService) { f.summaryErr = errBoom }},
		{"stats fails", func(f *fakeService) { f.statsErr = errBoom }},
		{"vendors fails", func(f *fakeService) { f.vendorsErr = errBoom }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			c, notes := newTestCoordinator(svc)
			ctx := context.Background()

			if _, err := c.BuildDashboard(ctx, core.PeriodThisYear); err != nil {
				t.Fatalf("first build: %v", err)
			}
			tt.fail(svc)

			if _, err := c.BuildDashboard(ctx, core.PeriodThisMonth); !errors.Is(err, errBoom) {
				t.Errorf("err = %v, want errBoom", err)
			}
			if c.Snapshot().Dashboard != nil {
				t.Error("previous dashboard survived a failed rebuild")
			}
			if got := notes.count(LevelError); got != 1 {
				t.Errorf("error notices = %d, want 1", got)
			}
		})
	}
}

func TestDrillDownUsesDashboardRange(t *testing.T) {
	svc := &fakeService{breakdown: core.Breakdown{TotalItems: 2}}
	c, _ := newTestCoordinator(svc)
	ctx := context.Background()

	if _, err := c.DrillDownCategory(ctx, 1); err != nil {
		t.Fatalf("DrillDownCategory before dashboard: %v", err)
	}
	yearRange := core.PeriodThisYear.Range(core.NewDate(2024, 6, 10))
	if svc.ranges[0] != yearRange {
		t.Errorf("default drill range = %s, want %s", svc.ranges[0], yearRange)
	}

	d, err := c.BuildDashboard(ctx, core.PeriodLastMonth)
	if err != nil {
		t.Fatalf("BuildDashboard: %v", err)
	}
	svc.ranges = nil

	b, err := c.DrillDownVendor(ctx, "MERCADO")
	if err != nil {
		t.Fatalf("DrillDownVendor: %v", err)
	}
	if b.Vendor != "MERCADO" {
		t.Errorf("vendor = %q", b.Vendor)
	}
	if len(svc.ranges) != 1 || svc.ranges[0] != d.Range {
		t.Errorf("drill ranges = %v, want %s", svc.ranges, d.Range)
	}
	if c.Snapshot().DrillDown == nil {
		t.Error("drill-down not stored")
	}

	c.CloseDrillDown()
	if c.Snapshot().DrillDown != nil {
		t.Error("CloseDrillDown kept the view")
	}
}

func TestManualEntryFallbackVendor(t *testing.T) {
	svc := &fakeService{categories: []core.Category{{ID: 1, Name: "Alimentação"}}}
	c, notes := newTestCoordinator(svc)
	ctx := context.Background()

	_, _ = c.LoadCategories(ctx)
	_ = c.SelectDateFilter(ctx, core.FilterThisMonth)
	if _, err := c.AddDraftItem(ctx, "Bread", "2", "3,50", 1); err != nil {
		t.Fatalf("AddDraftItem: %v", err)
	}

	res, err := c.SubmitManualEntry(ctx)
	if err != nil {
		t.Fatalf("SubmitManualEntry: %v", err)
	}
	if res.Total.Cents != 700 || res.Items != 1 {
		t.Errorf("result = %+v, want 1 item totaling 700", res)
	}

	entry := svc.manualEntries[0]
	if entry.Vendor != core.ManualVendorFallback {
		t.Errorf("vendor = %q, want %q", entry.Vendor, core.ManualVendorFallback)
	}
	if entry.IssueDate.String() != "2024-06-10" {
		t.Errorf("issue date = %s, want 2024-06-10", entry.IssueDate)
	}
	want := core.ManualItem{Name: "BREAD", Quantity: 2, Value: core.Money{Cents: 350}, CategoryID: 1}
	if !reflect.DeepEqual(entry.Items[0], want) {
		t.Errorf("item = %+v, want %+v", entry.Items[0], want)
	}

	snap := c.Snapshot()
	if len(snap.DraftItems) != 0 || snap.DraftVendor != "" {
		t.Errorf("draft not cleared: %+v", snap.DraftItems)
	}
	if snap.Mode.Kind != ModeReceipts || snap.Mode.Filter != core.FilterThisMonth {
		t.Errorf("mode = %+v, want Receipts(thisMonth)", snap.Mode)
	}
	if len(svc.receiptQuery) != 2 {
		t.Errorf("list queries = %d, want re-query after submit", len(svc.receiptQuery))
	}
	if n := notes.notices; !strings.Contains(n[0].Message, "R$ 7,00") {
		t.Errorf("notice = %q, want total", n[0].Message)
	}
}

func TestManualEntryEmptyDraftNoCall(t *testing.T) {
	svc := &fakeService{}
	c, notes := newTestCoordinator(svc)

	c.SetDraftVendor("Feira")
	_, err := c.SubmitManualEntry(context.Background())
	if !errors.Is(err, core.ErrEmptyDraft) {
		t.Errorf("err = %v, want ErrEmptyDraft", err)
	}
	if svc.callCount() != 0 {
		t.Errorf("empty draft made %d calls", svc.callCount())
	}
	if got := notes.last().Message; got != "Adicione pelo menos um item" {
		t.Errorf("notice = %q", got)
	}
	if c.Snapshot().DraftVendor != "Feira" {
		t.Error("failed submit lost the vendor")
	}
}

func TestAddDraftItemValidation(t *testing.T) {
	tests := []struct {
		name       string
		item       string
		value      string
		categoryID int64
		wantErr    error
	}{
		{"missing name", "", "1,00", 1, core.ErrEmptyName},
		{"zero value", "PAO", "0", 1, core.ErrInvalidAmount},
		{"garbage value", "PAO", "abc", 1, core.ErrInvalidAmount},
		{"no category", "PAO", "1,00", 0, core.ErrNoCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoordinator(&fakeService{})
			_, err := c.AddDraftItem(context.Background(), tt.item, "", tt.value, tt.categoryID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if n := len(c.Snapshot().DraftItems); n != 0 {
				t.Errorf("draft items = %d, want 0", n)
			}
		})
	}
}

func TestScanRejectsNonURL(t *testing.T) {
	svc := &fakeService{}
	c, notes := newTestCoordinator(svc)

	if _, err := c.Scan(context.Background(), "123456"); !errors.Is(err, ErrNotURL) {
		t.Errorf("err = %v, want ErrNotURL", err)
	}
	if svc.callCount() != 0 || len(notes.notices) != 0 {
		t.Error("non-URL input should be ignored silently")
	}
}

func TestScanLocksUntilReset(t *testing.T) {
	svc := &fakeService{scanResult: core.Receipt{ID: 4, Vendor: "MERCADO", Cached: true}}
	c, notes := newTestCoordinator(svc)
	ctx := context.Background()
	url := "https://sefaz.example/qrcode?p=35240612345678000190650010000001231000001234"

	r, err := c.Scan(ctx, url)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !r.Cached {
		t.Error("cached flag lost")
	}
	if n := notes.last(); n.Level != LevelInfo {
		t.Errorf("cached scan notice = %+v, want info", n)
	}

	if _, err := c.Scan(ctx, url); !errors.Is(err, ErrScanLocked) {
		t.Errorf("second scan err = %v, want ErrScanLocked", err)
	}
	if got := svc.callCount(); got != 1 {
		t.Errorf("scan calls = %d, want 1", got)
	}

	c.ResetScan()
	snap := c.Snapshot()
	if snap.LastScan != nil || snap.ScanLocked {
		t.Error("ResetScan did not clear the buffer")
	}
	if _, err := c.Scan(ctx, url); err != nil {
		t.Errorf("scan after reset: %v", err)
	}
}

func TestScanFailureRearmsAfterCooldown(t *testing.T) {
	svc := &fakeService{scanErr: remote.ErrUpstreamUnavailable}
	notes := &noticeLog{}
	var (
		delays  []time.Duration
		pending []func()
	)
	c := New(Options{
		Service:      svc,
		Now:          func() time.Time { return time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC) },
		Notify:       notes.add,
		ScanCooldown: 2 * time.Second,
		AfterFunc: func(d time.Duration, f func()) {
			delays = append(delays, d)
			pending = append(pending, f)
		},
	})
	ctx := context.Background()
	url := "https://sefaz.example/qrcode?p=123456789012345678901234"

	if _, err := c.Scan(ctx, url); !errors.Is(err, remote.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if got := notes.last().Message; got != "O site da nota fiscal está fora do ar." {
		t.Errorf("notice = %q", got)
	}
	if len(delays) != 1 || delays[0] != 2*time.Second {
		t.Fatalf("cooldown = %v, want [2s]", delays)
	}
	if !c.Snapshot().ScanLocked {
		t.Error("scanner should be locked during cooldown")
	}
	if _, err := c.Scan(ctx, url); !errors.Is(err, ErrScanLocked) {
		t.Errorf("scan during cooldown err = %v, want ErrScanLocked", err)
	}

	pending[0]()
	if c.Snapshot().ScanLocked {
		t.Error("scanner still locked after cooldown")
	}
}

func TestStaleRearmKeepsNewerLock(t *testing.T) {
	svc := &fakeService{scanErr: remote.ErrNotReceipt}
	var pending []func()
	c := New(Options{
		Service:   svc,
		AfterFunc: func(_ time.Duration, f func()) { pending = append(pending, f) },
	})
	ctx := context.Background()
	url := "https://sefaz.example/qrcode?p=123456789012345678901234"

	_, _ = c.Scan(ctx, url)
	c.ResetScan()
	svc.scanErr = nil
	svc.scanResult = core.Receipt{ID: 1}
	if _, err := c.Scan(ctx, url); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	pending[0]()
	if !c.Snapshot().ScanLocked {
		t.Error("an old cooldown unlocked a newer successful scan")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	receipt := core.Receipt{ID: 1, Items: []core.LineItem{{ID: 1, Name: "PAO"}}}
	c, _ := newTestCoordinator(&fakeService{})
	c.OpenReceipt(receipt)

	snap := c.Snapshot()
	snap.Selected.Items[0].Name = "CHANGED"

	if got := c.Snapshot().Selected.Items[0].Name; got != "PAO" {
		t.Errorf("snapshot mutation leaked: %q", got)
	}
}
