package domain

import "time"

// Page is one slice of a scan-paginated listing. Total is exact only for
// unfiltered scans that completed within the scan ceiling; HasMore is the
// signal callers should drive pagination with.
type Page struct {
	Items      []CatalogItem `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
	HasMore    bool          `json:"hasMore"`
	Partial    bool          `json:"partial,omitempty"`
}

type CategoryList struct {
	Items   []CatalogItem `json:"items"`
	Partial bool          `json:"partial,omitempty"`
}

// KindDelta is the per-kind result of a delta computation.
type KindDelta struct {
	Changed    []CatalogEntry `json:"changed"`
	Tombstones []Tombstone    `json:"tombstones"`
	Partial    bool           `json:"partial,omitempty"`
}

// DeltaResponse is the envelope returned to sync clients. Watermark is nil
// when nothing may be advanced (a partial full sync).
type DeltaResponse struct {
	Categories    *DeltaSet  `json:"categories,omitempty"`
	Subcategories *DeltaSet  `json:"subcategories,omitempty"`
	NewWatermark  *time.Time `json:"newWatermark,omitempty"`
	Partial       bool       `json:"partial,omitempty"`
}

type DeltaSet struct {
	Changed    []CatalogItem `json:"changed"`
	Tombstones []Tombstone   `json:"tombstones"`
}
