package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"nfcescan/internal/core"
	"nfcescan/internal/log"

	_ "modernc.org/sqlite"
)

var (
	ErrReceiptNotFound  = errors.New("receipt not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
	ErrVendorNotFound   = errors.New("no receipt with that vendor")
)

// Limits applied when the caller passes none.
const (
	DefaultListLimit   = 50
	DefaultSearchLimit = 50
	DefaultDrillLimit  = 100
)

// ManualSourcePrefix marks the source URL of receipts typed in by hand.
const ManualSourcePrefix = "manual://"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

// NewSQLiteRepository opens the database at dbPath, creating its directory,
// and applies pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentStorage)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReceiptFilter narrows ListReceipts. Zero dates disable a bound; Until is
// inclusive.
type ReceiptFilter struct {
	Search string
	Since  core.Date
	Until  core.Date
	Limit  int
}

// ListReceipts returns receipts most recently read first, with their items.
func (r *SQLiteRepository) ListReceipts(ctx context.Context, f ReceiptFilter) ([]core.Receipt, error) {
	params := ListNotasParams{Busca: f.Search, Limit: int64(f.Limit)}
	if params.Limit <= 0 {
		params.Limit = DefaultListLimit
	}
	if !f.Since.IsZero() {
		params.Since = f.Since.String()
	}
	if !f.Until.IsZero() {
		params.UntilExc = f.Until.AddDays(1).String()
	}

	notas, err := r.queries.ListNotas(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}

	receipts := make([]core.Receipt, 0, len(notas))
	for _, n := range notas {
		rec, err := r.withItems(ctx, n)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	return receipts, nil
}

func (r *SQLiteRepository) GetReceipt(ctx context.Context, id int64) (core.Receipt, error) {
	n, err := r.queries.GetNota(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, ErrReceiptNotFound
	}
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %d: %w", id, err)
	}
	return r.withItems(ctx, n)
}

// ReceiptBySource looks a receipt up by its QR code URL.
func (r *SQLiteRepository) ReceiptBySource(ctx context.Context, url string) (core.Receipt, bool, error) {
	n, err := r.queries.GetNotaByURL(ctx, url)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, false, nil
	}
	if err != nil {
		return core.Receipt{}, false, fmt.Errorf("get receipt by url: %w", err)
	}
	rec, err := r.withItems(ctx, n)
	return rec, err == nil, err
}

// NewReceipt is a receipt to be stored. A blank SourceURL gets a unique
// manual:// identifier.
type NewReceipt struct {
	Vendor    string
	Address   string
	IssueDate core.Date
	SourceURL string
	Items     []NewItem
}

type NewItem struct {
	Name       string
	Quantity   float64
	UnitValue  core.Money
	CategoryID int64
}

// CreateReceipt stores a receipt with its items in one transaction. The
// total is the sum of the item subtotals.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, nr NewReceipt) (core.Receipt, error) {
	if nr.SourceURL == "" {
		nr.SourceURL = ManualSourcePrefix + uuid.NewString()
	}
	var total core.Money
	for _, it := range nr.Items {
		total.Cents += core.LineItem{Quantity: it.Quantity, UnitValue: it.UnitValue}.Subtotal().Cents
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()
	qtx := r.queries.WithTx(tx)

	id, err := qtx.CreateNota(ctx, CreateNotaParams{
		Estabelecimento: nr.Vendor,
		Endereco:        nullString(nr.Address),
		TotalCents:      total.Cents,
		DataEmissao:     nullDate(nr.IssueDate),
		UrlOrigem:       nr.SourceURL,
	})
	if err != nil {
		return core.Receipt{}, fmt.Errorf("create receipt: %w", err)
	}
	for _, it := range nr.Items {
		err := qtx.CreateItem(ctx, CreateItemParams{
			NotaID:      id,
			Nome:        it.Name,
			Qtd:         it.Quantity,
			ValorCents:  it.UnitValue.Cents,
			CategoriaID: sql.NullInt64{Int64: it.CategoryID, Valid: it.CategoryID != 0},
		})
		if err != nil {
			return core.Receipt{}, fmt.Errorf("create item %q: %w", it.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.Receipt{}, fmt.Errorf("commit receipt: %w", err)
	}

	r.logger.InfoContext(ctx, "Receipt stored",
		log.FieldReceiptID, id,
		log.FieldVendor, nr.Vendor,
		log.FieldCount, len(nr.Items))
	return r.GetReceipt(ctx, id)
}

// DeleteReceipt removes a receipt and its items.
func (r *SQLiteRepository) DeleteReceipt(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := r.queries.WithTx(tx).DeleteNota(ctx, id)
	if err != nil {
		return fmt.Errorf("delete receipt %d: %w", id, err)
	}
	if n == 0 {
		return ErrReceiptNotFound
	}
	return tx.Commit()
}

// SearchProducts finds items whose name contains term, names starting with
// it first.
func (r *SQLiteRepository) SearchProducts(ctx context.Context, term string, limit int) ([]core.Product, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	hits, err := r.queries.SearchItens(ctx, term, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	products := make([]core.Product, 0, len(hits))
	for _, h := range hits {
		products = append(products, core.Product{
			ItemID:    h.ID,
			ReceiptID: h.NotaID,
			Name:      h.Nome,
			Quantity:  h.Qtd,
			UnitValue: core.Money{Cents: h.ValorCents},
			Category:  h.category(),
			Vendor:    h.Estabelecimento,
			IssueDate: parseDate(h.DataEmissao),
		})
	}
	return products, nil
}

// ListCategories returns every category ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategorias(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats := make([]core.Category, 0, len(rows))
	for _, c := range rows {
		cats = append(cats, c.toCore())
	}
	return cats, nil
}

// CreateCategory stores a category. Names are unique.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	n, err := r.queries.CountCategoriaByNome(ctx, c.Name)
	if err != nil {
		return core.Category{}, fmt.Errorf("check category name: %w", err)
	}
	if n > 0 {
		return core.Category{}, ErrCategoryExists
	}
	id, err := r.queries.CreateCategoria(ctx, c.Name, c.Icon, c.Color)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	r.logger.InfoContext(ctx, "Category created", log.FieldCategoryID, id, "name", c.Name)
	return c, nil
}

// SetItemCategory assigns a category to an item and returns the category.
func (r *SQLiteRepository) SetItemCategory(ctx context.Context, itemID, categoryID int64) (core.Category, error) {
	previous, err := r.queries.GetItemCategoria(ctx, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrItemNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get item %d: %w", itemID, err)
	}
	cat, err := r.queries.GetCategoria(ctx, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %d: %w", categoryID, err)
	}
	if err := r.queries.SetItemCategoria(ctx, itemID, categoryID); err != nil {
		return core.Category{}, fmt.Errorf("set item category: %w", err)
	}

	r.logger.DebugContext(ctx, "Item recategorized",
		log.FieldItemID, itemID,
		log.FieldCategoryID, categoryID,
		"previous_category_id", previous.Int64)
	return cat.toCore(), nil
}

// RenameVendor renames the vendor on every matching receipt and returns how
// many were updated.
func (r *SQLiteRepository) RenameVendor(ctx context.Context, current, renamed string) (int, error) {
	n, err := r.queries.RenameEstabelecimento(ctx, current, renamed)
	if err != nil {
		return 0, fmt.Errorf("rename vendor: %w", err)
	}
	if n == 0 {
		return 0, ErrVendorNotFound
	}
	r.logger.InfoContext(ctx, "Vendor renamed", log.FieldVendor, renamed, log.FieldCount, n)
	return int(n), nil
}

// CategorySummary groups spending by category over the half-open range.
func (r *SQLiteRepository) CategorySummary(ctx context.Context, rng core.DateRange) (core.CategorySummary, error) {
	sums, err := r.queries.SumByCategoria(ctx, rng.Start.String(), rng.End.String())
	if err != nil {
		return core.CategorySummary{}, fmt.Errorf("sum by category: %w", err)
	}

	s := core.CategorySummary{
		Period:     core.PeriodBounds{Start: rng.Start, End: rng.End},
		Categories: make([]core.CategoryTotal, 0, len(sums)),
	}
	for _, row := range sums {
		s.Total.Cents += row.TotalCents
	}
	for _, row := range sums {
		total := core.Money{Cents: row.TotalCents}
		s.Categories = append(s.Categories, core.CategoryTotal{
			ID:      row.ID,
			Name:    row.Nome,
			Icon:    row.Icone,
			Color:   row.Cor,
			Total:   total,
			Percent: core.Percent(total, s.Total),
		})
	}
	return s, nil
}

// TopVendors groups receipt totals by vendor, largest first.
func (r *SQLiteRepository) TopVendors(ctx context.Context, rng core.DateRange, limit int) (core.VendorSummary, error) {
	sums, err := r.queries.SumByFornecedor(ctx, rng.Start.String(), rng.End.String(), int64(limit))
	if err != nil {
		return core.VendorSummary{}, fmt.Errorf("sum by vendor: %w", err)
	}

	s := core.VendorSummary{
		Period:  core.PeriodBounds{Start: rng.Start, End: rng.End},
		Count:   len(sums),
		Vendors: make([]core.VendorTotal, 0, len(sums)),
	}
	for _, row := range sums {
		s.Total.Cents += row.TotalCents
	}
	for _, row := range sums {
		total := core.Money{Cents: row.TotalCents}
		s.Vendors = append(s.Vendors, core.VendorTotal{
			Name:      row.Estabelecimento,
			Total:     total,
			Purchases: int(row.NumCompras),
			Percent:   core.Percent(total, s.Total),
		})
	}
	return s, nil
}

// Stats computes the headline figures for the range and compares the total
// with the preceding range of the same length.
func (r *SQLiteRepository) Stats(ctx context.Context, rng core.DateRange) (core.Stats, error) {
	days := rng.Days()
	if days <= 0 {
		days = 1
	}
	cur, err := r.queries.GetPeriodTotals(ctx, rng.Start.String(), rng.End.String())
	if err != nil {
		return core.Stats{}, fmt.Errorf("period totals: %w", err)
	}
	prevStart := rng.Start.AddDays(-days)
	prev, err := r.queries.GetPeriodTotals(ctx, prevStart.String(), rng.Start.String())
	if err != nil {
		return core.Stats{}, fmt.Errorf("previous period totals: %w", err)
	}

	total := core.Money{Cents: cur.TotalCents}
	s := core.Stats{
		Period:       core.PeriodBounds{Start: rng.Start, End: rng.End, Days: days},
		Total:        total,
		DailyAverage: divide(total, int64(days)),
		Receipts:     int(cur.NumNotas),
		Vendors:      int(cur.NumFornecedores),
		Comparison:   core.Compare(total, core.Money{Cents: prev.TotalCents}),
	}
	if cur.NumNotas > 0 {
		s.AverageTicket = divide(total, cur.NumNotas)
	}
	return s, nil
}

// ItemsByCategory lists the items of one category over the range.
func (r *SQLiteRepository) ItemsByCategory(ctx context.Context, categoryID int64, rng core.DateRange, limit int) (core.Breakdown, error) {
	hits, err := r.queries.ListItensByCategoria(ctx, categoryID, itemFilter(rng, limit))
	if err != nil {
		return core.Breakdown{}, fmt.Errorf("items by category: %w", err)
	}

	cat := core.Category{ID: categoryID, Name: "Desconhecida", Icon: core.DefaultCategoryIcon}
	if row, err := r.queries.GetCategoria(ctx, categoryID); err == nil {
		cat = row.toCore()
	} else if !errors.Is(err, sql.ErrNoRows) {
		return core.Breakdown{}, fmt.Errorf("get category %d: %w", categoryID, err)
	}

	b := core.Breakdown{Category: &cat, Items: make([]core.BreakdownItem, 0, len(hits))}
	for _, h := range hits {
		b.Items = append(b.Items, h.breakdownItem())
		b.TotalValue.Cents += h.subtotal().Cents
	}
	b.TotalItems = len(b.Items)
	return b, nil
}

// ItemsByVendor lists the items bought from vendors whose name contains
// vendor, with a count per category.
func (r *SQLiteRepository) ItemsByVendor(ctx context.Context, vendor string, rng core.DateRange, limit int) (core.Breakdown, error) {
	hits, err := r.queries.ListItensByFornecedor(ctx, vendor, itemFilter(rng, limit))
	if err != nil {
		return core.Breakdown{}, fmt.Errorf("items by vendor: %w", err)
	}

	b := core.Breakdown{
		Vendor:         vendor,
		CategoryCounts: map[string]int{},
		Items:          make([]core.BreakdownItem, 0, len(hits)),
	}
	for _, h := range hits {
		item := h.breakdownItem()
		item.Vendor = ""
		b.Items = append(b.Items, item)
		b.TotalValue.Cents += h.subtotal().Cents
		b.CategoryCounts[item.CategoryName]++
	}
	b.TotalItems = len(b.Items)
	return b, nil
}

func (r *SQLiteRepository) withItems(ctx context.Context, n Nota) (core.Receipt, error) {
	rows, err := r.queries.ListItensByNota(ctx, n.ID)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("list items of receipt %d: %w", n.ID, err)
	}
	rec := core.Receipt{
		ID:        n.ID,
		Meta:      &core.ReceiptMeta{ReadAt: n.DataLeitura, SourceURL: n.UrlOrigem},
		Vendor:    n.Estabelecimento,
		Address:   n.Endereco.String,
		Total:     core.Money{Cents: n.TotalCents},
		IssueDate: parseDate(n.DataEmissao),
		Items:     make([]core.LineItem, 0, len(rows)),
	}
	for _, it := range rows {
		rec.Items = append(rec.Items, core.LineItem{
			ID:        it.ID,
			Name:      it.Nome,
			Quantity:  it.Qtd,
			UnitValue: core.Money{Cents: it.ValorCents},
			Category:  it.category(),
		})
	}
	return rec, nil
}

func (c Categoria) toCore() core.Category {
	return core.Category{ID: c.ID, Name: c.Nome, Icon: c.Icone, Color: c.Cor}
}

// category resolves the joined category, falling back to the default one
// for uncategorized items.
func (i ItemRow) category() core.Category {
	if !i.CategoriaID.Valid || !i.CategoriaNome.Valid {
		return core.Category{}.OrDefault()
	}
	return core.Category{
		ID:    i.CategoriaID.Int64,
		Name:  i.CategoriaNome.String,
		Icon:  i.CategoriaIcone.String,
		Color: i.CategoriaCor.String,
	}
}

func (i ItemRow) subtotal() core.Money {
	return core.LineItem{Quantity: i.Qtd, UnitValue: core.Money{Cents: i.ValorCents}}.Subtotal()
}

func (h ItemHit) breakdownItem() core.BreakdownItem {
	cat := h.category()
	return core.BreakdownItem{
		ItemID:       h.ID,
		ReceiptID:    h.NotaID,
		Name:         h.Nome,
		Quantity:     h.Qtd,
		Value:        core.Money{Cents: h.ValorCents},
		Vendor:       h.Estabelecimento,
		CategoryName: cat.Name,
		CategoryIcon: cat.Icon,
		IssueDate:    parseDate(h.DataEmissao),
	}
}

func itemFilter(rng core.DateRange, limit int) ItemFilter {
	f := ItemFilter{Limit: int64(limit)}
	if f.Limit <= 0 {
		f.Limit = DefaultDrillLimit
	}
	if !rng.Start.IsZero() {
		f.Since = rng.Start.String()
	}
	if !rng.End.IsZero() {
		f.UntilExc = rng.End.String()
	}
	return f
}

func divide(m core.Money, n int64) core.Money {
	return core.MoneyFromReais(m.Reais() / float64(n))
}

func parseDate(s sql.NullString) core.Date {
	if !s.Valid {
		return core.Date{}
	}
	d, err := core.ParseDate(s.String)
	if err != nil {
		return core.Date{}
	}
	return d
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
