package scan

import (
	"fmt"

	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/port"
)

// DecodeEntries decodes raw catalog records, preserving scan order.
func DecodeEntries(recs []port.Record) ([]domain.CatalogEntry, error) {
	out := make([]domain.CatalogEntry, 0, len(recs))
	for _, r := range recs {
		var e domain.CatalogEntry
		if err := r.Decode(&e); err != nil {
			return nil, fmt.Errorf("decoding catalog record: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// DecodeSellers decodes raw seller records.
func DecodeSellers(recs []port.Record) ([]domain.SellerRecord, error) {
	out := make([]domain.SellerRecord, 0, len(recs))
	for _, r := range recs {
		var s domain.SellerRecord
		if err := r.Decode(&s); err != nil {
			return nil, fmt.Errorf("decoding seller record: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
