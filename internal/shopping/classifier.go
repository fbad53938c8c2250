package shopping

import "strings"

// ManualCategory is the category manual items are filed under when re-added.
const ManualCategory = "Añadido manualmente"

// DefaultMarkers are unit fragments only the manual add path produces.
var DefaultMarkers = []string{"Comprar", "cartón", "docena", "kg", "pack"}

// Classifier tells manually added items apart from recipe-derived ones.
// There is no provenance field on the backend: an item counts as manual when
// its unit contains one of the markers.
type Classifier struct {
	markers []string
}

// NewClassifier creates a Classifier. An empty marker list uses DefaultMarkers.
func NewClassifier(markers []string) *Classifier {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	m := make([]string, len(markers))
	copy(m, markers)
	return &Classifier{markers: m}
}

// Markers returns a copy of the configured markers.
func (c *Classifier) Markers() []string {
	m := make([]string, len(c.markers))
	copy(m, c.markers)
	return m
}

// IsManual reports whether item was added by hand.
func (c *Classifier) IsManual(item Item) bool {
	unit := item.UnitText()
	if unit == "" {
		return false
	}
	for _, marker := range c.markers {
		if strings.Contains(unit, marker) {
			return true
		}
	}
	return false
}

// Partition splits every item of the list into manual and derived, in List.Items order.
func (c *Classifier) Partition(list List) (manual, derived []Item) {
	for _, item := range list.Items() {
		if c.IsManual(item) {
			manual = append(manual, item)
		} else {
			derived = append(derived, item)
		}
	}
	return manual, derived
}

// ManualItems snapshots the manual items of list.
func (c *Classifier) ManualItems(list List) []ManualItem {
	manual, _ := c.Partition(list)

	out := make([]ManualItem, 0, len(manual))
	for _, item := range manual {
		out = append(out, ManualItem{
			Name:     item.Name,
			Amount:   item.Amount,
			Unit:     item.UnitText(),
			Category: item.CategoryText(),
		})
	}
	return out
}

// ReinsertUnit drops the leading quantity token of a stored unit, so
// "2 cartón" becomes "cartón". A single-token unit is kept unchanged: an
// empty unit matches no marker, so the item would be lost on the next regeneration.
func ReinsertUnit(unit string) string {
	fields := strings.Fields(unit)
	if len(fields) < 2 {
		return strings.TrimSpace(unit)
	}
	return strings.Join(fields[1:], " ")
}

// ToNewItem builds the add-item payload used to put m back on the list.
func (m ManualItem) ToNewItem() NewItem {
	return NewItem{
		CustomName: m.Name,
		Amount:     m.Amount,
		Unit:       ReinsertUnit(m.Unit),
		Category:   ManualCategory,
	}
}
