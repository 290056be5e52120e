package delta

import (
	"fmt"
	"time"

	"github.com/rl1809/catalog-sync/internal/core/domain"
)

var watermarkLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseWatermark parses an ISO-8601 watermark. An empty string means no
// watermark (full sync). Zone-less values are taken as UTC.
func ParseWatermark(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range watermarkLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: watermark %q is not an ISO-8601 timestamp", domain.ErrInvalidArgument, s)
}
