package domain

import "fmt"

type DelStatus string

const (
	DelStatusActive  DelStatus = "active"
	DelStatusRemoved DelStatus = "removed"
)

type SellerClass string

const (
	SellerClassIndustrial SellerClass = "industrial"
	SellerClassDoorstep   SellerClass = "doorstep"
	SellerClassRetail     SellerClass = "retail"
	SellerClassWholesale  SellerClass = "wholesale"
)

// SellersTable is the store table holding seller records.
const SellersTable = "sellers"

// SellerRecord is only ever used in aggregate to derive availability.
type SellerRecord struct {
	ID          int64       `json:"id"`
	DelStatus   DelStatus   `json:"delStatus"`
	SellerClass SellerClass `json:"sellerClass"`
}

func (s SellerRecord) Validate() error {
	switch s.DelStatus {
	case DelStatusActive, DelStatusRemoved:
	default:
		return fmt.Errorf("%w: unknown delStatus %q", ErrInvalidArgument, s.DelStatus)
	}
	switch s.SellerClass {
	case SellerClassIndustrial, SellerClassDoorstep, SellerClassRetail, SellerClassWholesale:
	default:
		return fmt.Errorf("%w: unknown sellerClass %q", ErrInvalidArgument, s.SellerClass)
	}
	if s.ID <= 0 {
		return fmt.Errorf("%w: seller id must be positive", ErrInvalidArgument)
	}
	return nil
}

// AvailabilityFlags is derived, never stored. Flags are catalog-wide: every
// entry in a response carries the same values.
type AvailabilityFlags struct {
	B2B bool `json:"b2b"`
	B2C bool `json:"b2c"`
}

type UserType string

const (
	UserTypeAll UserType = "all"
	UserTypeB2B UserType = "b2b"
	UserTypeB2C UserType = "b2c"
)

func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case "":
		return UserTypeAll, nil
	case UserTypeAll, UserTypeB2B, UserTypeB2C:
		return UserType(s), nil
	}
	return "", fmt.Errorf("%w: unknown userType %q", ErrInvalidArgument, s)
}

// Allows reports whether a catalog with these flags is visible to the user type.
func (f AvailabilityFlags) Allows(u UserType) bool {
	switch u {
	case UserTypeB2B:
		return f.B2B
	case UserTypeB2C:
		return f.B2C
	}
	return true
}
