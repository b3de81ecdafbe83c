package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"nfcescan/internal/coordinator"
	"nfcescan/internal/core"
)

const (
	nameWidth   = 32
	vendorWidth = 24
	moneyWidth  = 14
)

// cell pads or truncates s to w terminal columns. Emoji icons and
// accented product names take more than one byte per column.
func cell(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func money(m core.Money) string {
	return runewidth.FillLeft(m.String(), moneyWidth)
}

func quantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func (s *Shell) renderList(snap coordinator.Snapshot) {
	var b strings.Builder
	switch snap.Mode.Kind {
	case coordinator.ModeProducts:
		fmt.Fprintf(&b, "Busca %q: %d produto(s)\n", snap.Mode.Term, len(snap.Products))
		for _, p := range snap.Products {
			fmt.Fprintf(&b, "  %6d %s %s %s %s x%s  %s\n",
				p.ItemID, p.Category.OrDefault().Icon, cell(p.Name, nameWidth),
				cell(p.Vendor, vendorWidth), money(p.UnitValue), quantity(p.Quantity), p.IssueDate)
		}
	default:
		fmt.Fprintf(&b, "%s: %d nota(s)\n", snap.Mode.Filter.Label(), len(snap.Receipts))
		for _, r := range snap.Receipts {
			fmt.Fprintf(&b, "  #%-5d %s %s %s  %d itens\n",
				r.ID, r.IssueDate, cell(r.Vendor, vendorWidth), money(r.Total), len(r.Items))
		}
	}
	s.write(b.String())
}

func (s *Shell) renderReceipt(r core.Receipt, pending int64) {
	var b strings.Builder
	fmt.Fprintf(&b, "Nota #%d  %s  %s\n", r.ID, r.Vendor, r.IssueDate)
	if r.Address != "" {
		fmt.Fprintf(&b, "  %s\n", r.Address)
	}
	if r.Cached {
		b.WriteString("  (nota já registrada)\n")
	}
	for _, it := range r.Items {
		mark := " "
		if it.ID == pending {
			mark = ">"
		}
		cat := it.Category.OrDefault()
		fmt.Fprintf(&b, " %s%6d %s %s x%-6s %s %s\n",
			mark, it.ID, cat.Icon, cell(it.Name, nameWidth), quantity(it.Quantity),
			money(it.UnitValue), money(it.Subtotal()))
	}
	fmt.Fprintf(&b, "  Total %s\n", r.Total)
	s.write(b.String())
}

func (s *Shell) renderCategories(cats []core.Category) {
	var b strings.Builder
	for _, c := range cats {
		fmt.Fprintf(&b, "  %4d %s %s %s\n", c.ID, runewidth.FillRight(c.Icon, 2), cell(c.Name, 20), c.Color)
	}
	s.write(b.String())
}

func (s *Shell) renderDashboard(d core.Dashboard) {
	var b strings.Builder
	st := d.Stats
	fmt.Fprintf(&b, "%s (%s)\n", d.Period.Label(), d.Range)
	fmt.Fprintf(&b, "  Total %s  média/dia %s  ticket médio %s\n", st.Total, st.DailyAverage, st.AverageTicket)
	fmt.Fprintf(&b, "  %d nota(s) em %d fornecedor(es)\n", st.Receipts, st.Vendors)
	fmt.Fprintf(&b, "  Anterior %s  %+.1f%% (%s)\n",
		st.Comparison.PreviousTotal, st.Comparison.PercentChange, st.Comparison.Trend)

	b.WriteString("Categorias\n")
	for _, c := range d.Categories.Categories {
		fmt.Fprintf(&b, "  %4d %s %s %s %5.1f%%\n",
			c.ID, runewidth.FillRight(c.Icon, 2), cell(c.Name, 20), money(c.Total), c.Percent)
	}
	b.WriteString("Fornecedores\n")
	for _, v := range d.Vendors.Vendors {
		fmt.Fprintf(&b, "  %s %s %5.1f%%  %d compra(s)\n",
			cell(v.Name, vendorWidth), money(v.Total), v.Percent, v.Purchases)
	}
	s.write(b.String())
}

func (s *Shell) renderBreakdown(bd core.Breakdown) {
	var b strings.Builder
	switch {
	case bd.Category != nil:
		fmt.Fprintf(&b, "%s %s\n", bd.Category.Icon, bd.Category.Name)
	default:
		fmt.Fprintf(&b, "%s\n", bd.Vendor)
	}
	fmt.Fprintf(&b, "  %d item(ns), %s\n", bd.TotalItems, bd.TotalValue)
	for _, it := range bd.Items {
		label := it.Vendor
		if bd.Category == nil {
			label = strings.TrimSpace(it.CategoryIcon + " " + it.CategoryName)
		}
		fmt.Fprintf(&b, "  %6d %s %s x%-6s %s  %s\n",
			it.ItemID, cell(it.Name, nameWidth), cell(label, vendorWidth),
			quantity(it.Quantity), money(it.Value), it.IssueDate)
	}
	s.write(b.String())
}

func (s *Shell) renderDraft(snap coordinator.Snapshot) {
	var b strings.Builder
	vendor := snap.DraftVendor
	if vendor == "" {
		vendor = "(sem estabelecimento)"
	}
	fmt.Fprintf(&b, "Lançamento: %s\n", vendor)
	for i, it := range snap.DraftItems {
		fmt.Fprintf(&b, "  %2d. %s %s x%-6s %s\n",
			i+1, it.Category.Icon, cell(it.Name, nameWidth), quantity(it.Quantity), money(it.Value))
	}
	fmt.Fprintf(&b, "  Total %s\n", snap.DraftTotal)
	s.write(b.String())
}
