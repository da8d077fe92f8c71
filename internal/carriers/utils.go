package carriers

import (
	"errors"
	"math"
	"strings"
	"time"
)

// OrderDateLayout is the order_date format the aggregator expects
const OrderDateLayout = "2006-01-02 15:04"

// CleanPhoneNumber normalizes phone numbers to 10-digit Indian format
// Handles various input formats including:
// - 10 digits: 9876543210
// - With leading 0: 09876543210
// - With country code: 919876543210, +919876543210
func CleanPhoneNumber(phone string) string {
	var b strings.Builder
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()

	switch len(digits) {
	case 10:
		return digits
	case 11:
		if digits[0] == '0' {
			return digits[1:]
		}
		return digits[:10]
	case 12:
		if digits[:2] == "91" {
			return digits[2:]
		}
		return digits[:10]
	case 13:
		// +91 with a stray leading 0
		if digits[:3] == "910" {
			return digits[3:]
		}
		return digits[:10]
	default:
		if len(digits) > 10 {
			return digits[len(digits)-10:]
		}
		// Less than 10 digits - return empty to indicate invalid
		return ""
	}
}

// SplitName splits a full name into first and last name.
// The aggregator rejects empty last names, so "." stands in.
func SplitName(fullName string) (firstName, lastName string) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return "Customer", "."
	}
	if len(parts) == 1 {
		return parts[0], "."
	}
	return parts[0], strings.Join(parts[1:], " ")
}

var (
	errPincodeLength = errors.New("pincode must be 6 digits")
	errPincodeDigits = errors.New("pincode must be numeric and not start with 0")
)

// ValidatePincode checks an Indian postal code
func ValidatePincode(pincode string) error {
	if len(pincode) != 6 {
		return errPincodeLength
	}
	if pincode[0] == '0' {
		return errPincodeDigits
	}
	for _, c := range pincode {
		if c < '0' || c > '9' {
			return errPincodeDigits
		}
	}
	return nil
}

// FormatOrderDate formats t in the aggregator's timezone
func FormatOrderDate(t time.Time) string {
	return t.In(istLocation).Format(OrderDateLayout)
}

// Round2 rounds a money amount to paise
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseTime parses a timestamp in any of the aggregator's formats, nil if unparsable
func ParseTime(v string) *time.Time {
	return parseAggregatorTime(v)
}
