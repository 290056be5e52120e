package cache

import (
	"fmt"
	"time"
)

type Tier string

const (
	// TierShort is for data expected to change often, e.g. availability.
	TierShort Tier = "short"
	// TierLong is for reference data that is queried in many shapes.
	TierLong Tier = "long"
	// TierStatic is for slowly changing reference data such as the full catalog.
	TierStatic Tier = "static"
)

type TTLs struct {
	Short  time.Duration
	Long   time.Duration
	Static time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{
		Short:  5 * time.Minute,
		Long:   6 * time.Hour,
		Static: 24 * time.Hour,
	}
}

func (t TTLs) For(tier Tier) (time.Duration, error) {
	switch tier {
	case TierShort:
		return t.Short, nil
	case TierLong:
		return t.Long, nil
	case TierStatic:
		return t.Static, nil
	}
	return 0, fmt.Errorf("unknown cache tier %q", tier)
}
