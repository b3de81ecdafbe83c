package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Fallback values applied when the service returns an item without a category.
const (
	DefaultCategoryName  = "Outros"
	DefaultCategoryIcon  = "📦"
	DefaultCategoryColor = "#666666"
)

type (
	// Date is a calendar day without time of day.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID    int64  `json:"id"`
		Name  string `json:"nome"`
		Icon  string `json:"icone"`
		Color string `json:"cor,omitempty"`
	}

	LineItem struct {
		ID        int64    `json:"id"`
		Name      string   `json:"nome"`
		Quantity  float64  `json:"qtd"`
		UnitValue Money    `json:"valor"`
		Category  Category `json:"categoria"`
	}

	ReceiptMeta struct {
		ReadAt    string `json:"data_leitura,omitempty"`
		SourceURL string `json:"url_origem,omitempty"`
	}

	Receipt struct {
		ID        int64        `json:"id"`
		Meta      *ReceiptMeta `json:"meta,omitempty"`
		Vendor    string       `json:"estabelecimento"`
		Address   string       `json:"endereco,omitempty"`
		Total     Money        `json:"total"`
		IssueDate Date         `json:"data_emissao"`
		Cached    bool         `json:"cached,omitempty"`
		Items     []LineItem   `json:"itens"`
	}

	// Product is a flat search hit. It references its receipt only by id.
	Product struct {
		ItemID    int64    `json:"item_id"`
		ReceiptID int64    `json:"nota_id"`
		Name      string   `json:"produto"`
		Quantity  float64  `json:"qtd"`
		UnitValue Money    `json:"valor_unitario"`
		Category  Category `json:"categoria"`
		Vendor    string   `json:"estabelecimento"`
		IssueDate Date     `json:"data_emissao"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty name")
	ErrEmptyIcon     = errors.New("empty icon")
	ErrNoCategory    = errors.New("no category selected")
	ErrEmptyDraft    = errors.New("manual entry has no items")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD and also full timestamps, keeping only the day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// AddDays returns the date n days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MoneyFromReais converts a decimal reais value, rounding to the nearest centavo.
func MoneyFromReais(v float64) Money {
	return Money{Cents: int64(math.Round(v * 100))}
}

// Money travels as a decimal number of reais.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Reais(), 'f', 2, 64)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
	}
	*m = MoneyFromReais(v)
	return nil
}

// OrDefault fills in the fallback category when the service sent none.
func (c Category) OrDefault() Category {
	if c.ID == 0 && c.Name == "" {
		return Category{Name: DefaultCategoryName, Icon: DefaultCategoryIcon, Color: DefaultCategoryColor}
	}
	return c
}

// Subtotal is quantity times unit value, rounded to centavos.
func (li LineItem) Subtotal() Money {
	return Money{Cents: int64(math.Round(li.Quantity * float64(li.UnitValue.Cents)))}
}

// FindCategory returns the category with the given id from cats.
func FindCategory(cats []Category, id int64) (Category, bool) {
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
