package enums

import "fmt"

// ScanType identifies which loyalty QR code was scanned.
type ScanType string

const (
	ScanTypeMeal  ScanType = "meal"
	ScanTypeDrink ScanType = "drink"
)

var validScanTypes = []ScanType{
	ScanTypeMeal,
	ScanTypeDrink,
}

// IsValid reports whether the value is known.
func (t ScanType) IsValid() bool {
	for _, candidate := range validScanTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseScanType converts raw input into a ScanType.
func ParseScanType(value string) (ScanType, error) {
	for _, candidate := range validScanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid scan type %q", value)
}
