package core

import (
	"strings"
)

// ManualVendorFallback labels manual receipts entered without a vendor.
const ManualVendorFallback = "Lançamento Manual"

// DraftItem is a validated line of a manual receipt being composed.
type DraftItem struct {
	Name     string
	Quantity float64
	Value    Money
	Category Category
}

// ManualItem is the wire form of one manual receipt line.
type ManualItem struct {
	Name       string  `json:"nome" validate:"required,max=200"`
	Quantity   float64 `json:"qtd" validate:"gt=0"`
	Value      Money   `json:"valor"`
	CategoryID int64   `json:"categoria_id" validate:"gt=0"`
}

// ManualEntry is the body of a manual receipt submission.
type ManualEntry struct {
	Vendor    string       `json:"estabelecimento" validate:"required,max=200"`
	IssueDate Date         `json:"data_emissao"`
	Items     []ManualItem `json:"itens" validate:"required,min=1,dive"`
}

// ManualResult is the service's answer to a manual submission.
type ManualResult struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id,omitempty"`
	Items   int   `json:"num_itens"`
	Total   Money `json:"total"`
}

// ManualDraft accumulates items for a manual receipt. Items are validated
// when added so that submission never carries an invalid line.
// It is not safe for concurrent use.
type ManualDraft struct {
	Vendor string
	items  []DraftItem
}

// AddItem validates and appends an item. The name is stored upper-cased,
// the value accepts a decimal comma and a blank or unparsable quantity
// counts as 1. A category with a zero id means none was selected.
func (d *ManualDraft) AddItem(name, quantity, value string, category Category) (DraftItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DraftItem{}, ErrEmptyName
	}
	cents, err := ParseDecimalToCents(value)
	if err != nil {
		return DraftItem{}, err
	}
	if category.ID == 0 {
		return DraftItem{}, ErrNoCategory
	}
	item := DraftItem{
		Name:     strings.ToUpper(name),
		Quantity: ParseQuantity(quantity),
		Value:    Money{Cents: cents},
		Category: category,
	}
	d.items = append(d.items, item)
	return item, nil
}

// RemoveItem drops the item at index i. Out-of-range indexes are ignored.
func (d *ManualDraft) RemoveItem(i int) bool {
	if i < 0 || i >= len(d.items) {
		return false
	}
	d.items = append(d.items[:i], d.items[i+1:]...)
	return true
}

func (d *ManualDraft) Items() []DraftItem {
	return append([]DraftItem(nil), d.items...)
}

func (d *ManualDraft) Len() int { return len(d.items) }

// Total is the sum of quantity times value over all items.
func (d *ManualDraft) Total() Money {
	var total Money
	for _, it := range d.items {
		total.Cents += LineItem{Quantity: it.Quantity, UnitValue: it.Value}.Subtotal().Cents
	}
	return total
}

func (d *ManualDraft) Reset() {
	d.Vendor = ""
	d.items = nil
}

// Entry builds the submission payload dated today.
func (d *ManualDraft) Entry(today Date) (ManualEntry, error) {
	if len(d.items) == 0 {
		return ManualEntry{}, ErrEmptyDraft
	}
	vendor := strings.TrimSpace(d.Vendor)
	if vendor == "" {
		vendor = ManualVendorFallback
	}
	entry := ManualEntry{Vendor: vendor, IssueDate: today, Items: make([]ManualItem, 0, len(d.items))}
	for _, it := range d.items {
		entry.Items = append(entry.Items, ManualItem{
			Name:       it.Name,
			Quantity:   it.Quantity,
			Value:      it.Value,
			CategoryID: it.Category.ID,
		})
	}
	return entry, nil
}
