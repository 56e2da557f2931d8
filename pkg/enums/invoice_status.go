package enums

import "fmt"

// InvoiceStatus mirrors the billing state recorded per invoice row.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusUnpaid    InvoiceStatus = "unpaid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
	InvoiceStatusFailed    InvoiceStatus = "failed"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusUnpaid,
	InvoiceStatusCancelled,
	InvoiceStatusFailed,
}

// IsValid reports whether the value is known.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
