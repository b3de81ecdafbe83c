package core

import "math"

// Trend labels used by the prior-period comparison.
const (
	TrendUp     = "alta"
	TrendDown   = "baixa"
	TrendStable = "estavel"
)

// PeriodBounds echoes the range the service aggregated over.
type PeriodBounds struct {
	Start Date `json:"inicio"`
	End   Date `json:"fim"`
	Days  int  `json:"dias,omitempty"`
}

// CategoryTotal is one slice of the spending-by-category breakdown.
type CategoryTotal struct {
	ID      int64   `json:"id"`
	Name    string  `json:"nome"`
	Icon    string  `json:"icone"`
	Color   string  `json:"cor"`
	Total   Money   `json:"total"`
	Percent float64 `json:"porcentagem"`
}

type CategorySummary struct {
	Period     PeriodBounds    `json:"periodo"`
	Total      Money           `json:"total_periodo"`
	Categories []CategoryTotal `json:"categorias"`
}

type VendorTotal struct {
	Name      string  `json:"nome"`
	Total     Money   `json:"total"`
	Purchases int     `json:"num_compras"`
	Percent   float64 `json:"porcentagem"`
}

type VendorSummary struct {
	Period  PeriodBounds  `json:"periodo"`
	Count   int           `json:"total_fornecedores"`
	Total   Money         `json:"total_periodo"`
	Vendors []VendorTotal `json:"fornecedores"`
}

// Comparison relates a period total to the previous period of equal length.
type Comparison struct {
	PreviousTotal Money   `json:"total_anterior"`
	PercentChange float64 `json:"variacao_percentual"`
	Trend         string  `json:"tendencia"`
}

type Stats struct {
	Period        PeriodBounds `json:"periodo"`
	Total         Money        `json:"total"`
	DailyAverage  Money        `json:"media_dia"`
	AverageTicket Money        `json:"ticket_medio"`
	Receipts      int          `json:"num_notas"`
	Vendors       int          `json:"num_fornecedores"`
	Comparison    Comparison   `json:"comparativo"`
}

// Dashboard joins the three aggregate views for one period.
type Dashboard struct {
	Period     Period
	Range      DateRange
	Categories CategorySummary
	Stats      Stats
	Vendors    VendorSummary
}

// BreakdownItem is one line of a drill-down listing.
type BreakdownItem struct {
	ItemID       int64   `json:"item_id"`
	ReceiptID    int64   `json:"nota_id"`
	Name         string  `json:"produto"`
	Quantity     float64 `json:"qtd"`
	Value        Money   `json:"valor"`
	Vendor       string  `json:"estabelecimento,omitempty"`
	CategoryName string  `json:"categoria,omitempty"`
	CategoryIcon string  `json:"categoria_icone,omitempty"`
	IssueDate    Date    `json:"data_emissao"`
}

// Breakdown lists the items behind one dashboard slice. Category is set
// for category drill-downs, Vendor for vendor drill-downs.
type Breakdown struct {
	Category       *Category       `json:"categoria,omitempty"`
	Vendor         string          `json:"estabelecimento,omitempty"`
	TotalItems     int             `json:"total_itens"`
	TotalValue     Money           `json:"total_valor"`
	CategoryCounts map[string]int  `json:"categorias_compradas,omitempty"`
	Items          []BreakdownItem `json:"itens"`
}

// TrendOf classifies a percent change.
func TrendOf(change float64) string {
	switch {
	case change > 0:
		return TrendUp
	case change < 0:
		return TrendDown
	default:
		return TrendStable
	}
}

// Compare builds the prior-period comparison. A previous total of zero
// counts as +100% when there is any current spending.
func Compare(current, previous Money) Comparison {
	var change float64
	switch {
	case previous.Cents > 0:
		change = float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
	case current.Cents > 0:
		change = 100
	}
	change = roundTo(change, 1)
	return Comparison{PreviousTotal: previous, PercentChange: change, Trend: TrendOf(change)}
}

// Percent returns part/total*100 rounded to one decimal, 0 when total is 0.
func Percent(part, total Money) float64 {
	if total.Cents <= 0 {
		return 0
	}
	return roundTo(float64(part.Cents)/float64(total.Cents)*100, 1)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
