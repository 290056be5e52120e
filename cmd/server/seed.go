package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/core/service"
)

// seedFile is the layout of a seed document. Subcategories are nested under
// their category so parent ids never need to be known up front.
type seedFile struct {
	Sellers    []domain.SellerRecord `json:"sellers"`
	Categories []seedCategory        `json:"categories"`
}

type seedCategory struct {
	domain.EntryInput
	Subcategories []domain.EntryInput `json:"subcategories"`
}

type seedStats struct {
	Sellers       int
	Categories    int
	Subcategories int
}

func readSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding seed file %s: %w", path, err)
	}
	return &f, nil
}

func seedCatalog(ctx context.Context, catalog *service.CatalogService, f *seedFile) (seedStats, error) {
	var stats seedStats

	for _, s := range f.Sellers {
		if err := catalog.UpsertSeller(ctx, s); err != nil {
			return stats, fmt.Errorf("seller %d: %w", s.ID, err)
		}
		stats.Sellers++
	}

	for _, c := range f.Categories {
		parent, err := catalog.CreateEntry(ctx, domain.KindCategory, c.EntryInput)
		if err != nil {
			return stats, fmt.Errorf("category %q: %w", c.Name, err)
		}
		stats.Categories++

		for _, sub := range c.Subcategories {
			sub.ParentID = &parent.ID
			if _, err := catalog.CreateEntry(ctx, domain.KindSubcategory, sub); err != nil {
				return stats, fmt.Errorf("subcategory %q of %q: %w", sub.Name, c.Name, err)
			}
			stats.Subcategories++
		}
	}
	return stats, nil
}
