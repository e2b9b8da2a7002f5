package model

import (
	"strings"
	"time"
)

// ItemStatus is the lifecycle state of an item.
type ItemStatus string

const (
	ItemActive   ItemStatus = "active"
	ItemInactive ItemStatus = "inactive"
	ItemPending  ItemStatus = "pending"
	ItemArchived ItemStatus = "archived"
)

// ItemStatuses lists every valid status in display order.
var ItemStatuses = []ItemStatus{ItemActive, ItemInactive, ItemPending, ItemArchived}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	for _, v := range ItemStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Item is a generic owned record.
type Item struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	UserID      ID         `json:"userId"`
}

// CreateItemInput is the payload of a create call.
type CreateItemInput struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	Status      ItemStatus `json:"status" validate:"required,oneof=active inactive pending archived"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// UpdateItemInput is a partial field set; nil fields are left unchanged.
type UpdateItemInput struct {
	Name        *string     `json:"name,omitempty" validate:"omitnil,min=1"`
	Description *string     `json:"description,omitempty"`
	Status      *ItemStatus `json:"status,omitempty" validate:"omitnil,oneof=active inactive pending archived"`
	Category    *string     `json:"category,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
}

// Empty reports whether no field is set.
func (u UpdateItemInput) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Status == nil && u.Category == nil && u.Tags == nil
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps first-seen order.
// It returns nil when nothing is left.
func NormalizeTags(raw []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// FilterItems keeps items whose name or description contains query (case-insensitive)
// and whose status matches. An empty status or "all" matches every status.
func FilterItems(items []Item, query string, status string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if status != "" && status != "all" && string(it.Status) != status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(it.Name), q) &&
			!strings.Contains(strings.ToLower(it.Description), q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// CountByStatus returns the number of items per status; every known status is present.
func CountByStatus(items []Item) map[ItemStatus]int {
	out := make(map[ItemStatus]int, len(ItemStatuses))
	for _, s := range ItemStatuses {
		out[s] = 0
	}
	for _, it := range items {
		out[it.Status]++
	}
	return out
}
