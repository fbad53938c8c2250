package shopping

import "sort"

// Item is a single entry of the remote shopping list.
type Item struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Amount    *float64 `json:"amount,omitempty"`
	Unit      *string  `json:"unit,omitempty"`
	Category  *string  `json:"category,omitempty"`
	IsChecked bool     `json:"is_checked"`
}

// UnitText returns the unit or an empty string.
func (i Item) UnitText() string {
	if i.Unit == nil {
		return ""
	}
	return *i.Unit
}

// CategoryText returns the category or an empty string.
func (i Item) CategoryText() string {
	if i.Category == nil {
		return ""
	}
	return *i.Category
}

// List is the shopping list as served by the backend, grouped by category.
type List struct {
	ItemsByCategory map[string][]Item `json:"items_by_category"`
}

// Categories returns the category names in sorted order.
func (l List) Categories() []string {
	cats := make([]string, 0, len(l.ItemsByCategory))
	for c := range l.ItemsByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Items flattens the list, categories sorted, items in server order.
func (l List) Items() []Item {
	var items []Item
	for _, c := range l.Categories() {
		items = append(items, l.ItemsByCategory[c]...)
	}
	return items
}

// Len returns the total number of items.
func (l List) Len() int {
	n := 0
	for _, items := range l.ItemsByCategory {
		n += len(items)
	}
	return n
}

// Find returns the first item with the given name.
func (l List) Find(name string) (Item, bool) {
	for _, item := range l.Items() {
		if item.Name == name {
			return item, true
		}
	}
	return Item{}, false
}

// ManualItem is a user-entered item held only while the list is regenerated.
type ManualItem struct {
	Name     string
	Amount   *float64
	Unit     string
	Category string
}

// NewItem is the payload for adding a custom item to the list.
type NewItem struct {
	CustomName string   `json:"custom_name"`
	Amount     *float64 `json:"amount,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Category   string   `json:"category,omitempty"`
}
