// Package availability derives catalog-wide availability flags from seller
// records.
package availability

import "github.com/rl1809/catalog-sync/internal/core/domain"

var (
	b2bClasses = map[domain.SellerClass]bool{
		domain.SellerClassIndustrial: true,
		domain.SellerClassWholesale:  true,
	}
	b2cClasses = map[domain.SellerClass]bool{
		domain.SellerClassRetail: true,
	}
)

// Classify reports, per class bucket, whether at least one active seller
// exists. Doorstep sellers belong to neither bucket.
//
// The flags are catalog-wide, not per entry: a b2b flag means "some active
// b2b seller exists anywhere", and every entry in a response shares it.
func Classify(sellers []domain.SellerRecord) domain.AvailabilityFlags {
	var flags domain.AvailabilityFlags
	for _, s := range sellers {
		if s.DelStatus != domain.DelStatusActive {
			continue
		}
		if b2bClasses[s.SellerClass] {
			flags.B2B = true
		}
		if b2cClasses[s.SellerClass] {
			flags.B2C = true
		}
		if flags.B2B && flags.B2C {
			break
		}
	}
	return flags
}
