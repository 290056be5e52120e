package domain

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindCategory    Kind = "categories"
	KindSubcategory Kind = "subcategories"
)

// Kinds lists every catalog kind in the order multi-kind deltas process them.
var Kinds = []Kind{KindCategory, KindSubcategory}

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCategory, KindSubcategory:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, s)
}

// Table returns the store table holding entries of this kind.
func (k Kind) Table() string {
	return string(k)
}

// CatalogEntry is a category or subcategory. Entries are never removed from
// the store; deletion flips Deleted and bumps UpdatedAt so delta consumers can
// observe it.
type CatalogEntry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	ParentID  *int64    `json:"parentId,omitempty"`
	PriceHint string    `json:"priceHint,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Deleted   bool      `json:"deleted"`
}

// Touch rewrites UpdatedAt to the mutation time.
func (e *CatalogEntry) Touch(now time.Time) {
	e.UpdatedAt = now
	if e.UpdatedAt.Before(e.CreatedAt) {
		e.UpdatedAt = e.CreatedAt
	}
}

// MarkDeleted turns the entry into a tombstone.
func (e *CatalogEntry) MarkDeleted(now time.Time) {
	e.Deleted = true
	e.Touch(now)
}

// EntryInput carries the mutable fields of a create or update request.
type EntryInput struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	ParentID  *int64 `json:"parentId,omitempty"`
	PriceHint string `json:"priceHint,omitempty"`
}

// CatalogItem is an entry as served to clients, with availability joined on.
type CatalogItem struct {
	CatalogEntry
	AvailableIn AvailabilityFlags `json:"available_in"`
}

// Tombstone identifies a soft-deleted entry in a delta response.
type Tombstone struct {
	ID int64 `json:"id"`
}

// ParseKindSet parses a delta kind selector. "" and "all" select every kind.
func ParseKindSet(s string) ([]Kind, error) {
	if s == "" || s == "all" {
		return Kinds, nil
	}
	k, err := ParseKind(s)
	if err != nil {
		return nil, err
	}
	return []Kind{k}, nil
}
