// Package delivery estimates shipping times from an Indian pincode.
package delivery

import (
	"time"

	"github.com/go-faster/errors"
)

// ErrInvalidPincode is returned for anything but six digits.
var ErrInvalidPincode = errors.New("pincode must be 6 digits")

// Estimate is the delivery promise for one product and pincode.
type Estimate struct {
	Available bool
	Days      int
	By        time.Time
}

// ValidPincode reports whether s is exactly six ASCII digits.
func ValidPincode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Days returns the transit days for a valid pincode. Metro regions
// (first digit 1, 4, 5, 6) ship in 2 days, the north-east and east
// (7, 8, 9) in 5, everything else in 3.
func Days(pincode string) int {
	switch pincode[0] {
	case '1', '4', '5', '6':
		return 2
	case '7', '8', '9':
		return 5
	default:
		return 3
	}
}

// Quote estimates delivery for a product with the given stock.
func Quote(pincode string, stock int, now time.Time) (Estimate, error) {
	if !ValidPincode(pincode) {
		return Estimate{}, ErrInvalidPincode
	}
	if stock <= 0 {
		return Estimate{}, nil
	}
	days := Days(pincode)
	return Estimate{
		Available: true,
		Days:      days,
		By:        now.AddDate(0, 0, days),
	}, nil
}
