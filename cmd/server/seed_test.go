package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rl1809/catalog-sync/internal/adapter/storage"
	"github.com/rl1809/catalog-sync/internal/core/cache"
	"github.com/rl1809/catalog-sync/internal/core/service"
	"github.com/rl1809/catalog-sync/internal/logging"
	"github.com/rl1809/catalog-sync/internal/port"
)

const seedJSON = `{
  "sellers": [
    {"id": 1, "delStatus": "active", "sellerClass": "wholesale"},
    {"id": 2, "delStatus": "active", "sellerClass": "retail"}
  ],
  "categories": [
    {"name": "Metal", "image": "metal.png", "subcategories": [{"name": "Copper"}, {"name": "Brass"}]},
    {"name": "Paper", "subcategories": [{"name": "Cardboard"}]}
  ]
}`

func TestSeedCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := readSeedFile(path)
	if err != nil {
		t.Fatalf("readSeedFile: %v", err)
	}

	clock := port.RealClock{}
	manager := cache.NewManager(storage.NewMemoryCache(nil), clock, cache.Options{}, logging.NewNopLogger())
	catalog := service.NewCatalogService(storage.NewMemoryStore(), manager, clock, service.Options{}, logging.NewNopLogger())
	ctx := context.Background()

	stats, err := seedCatalog(ctx, catalog, f)
	if err != nil {
		t.Fatalf("seedCatalog: %v", err)
	}
	if stats != (seedStats{Sellers: 2, Categories: 2, Subcategories: 3}) {
		t.Errorf("unexpected stats %+v", stats)
	}

	paperID := int64(2)
	page, err := catalog.ListSubcategories(ctx, service.SubcategoriesQuery{CategoryID: &paperID})
	if err != nil {
		t.Fatalf("ListSubcategories: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "Cardboard" {
		t.Errorf("expected Cardboard under Paper, got %+v", page.Items)
	}
	if flags := page.Items[0].AvailableIn; !flags.B2B || !flags.B2C {
		t.Errorf("expected both flags, got %+v", flags)
	}
}

func TestReadSeedFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readSeedFile(path); err == nil {
		t.Error("expected decode error")
	}
	if _, err := readSeedFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected read error")
	}
}
