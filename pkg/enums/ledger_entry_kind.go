package enums

import "fmt"

// LedgerEntryKind maps to the ledger_entry_kind enum in Postgres.
type LedgerEntryKind string

const (
	LedgerEntryKindScanAccrual  LedgerEntryKind = "scan_accrual"
	LedgerEntryKindPaymentDebit LedgerEntryKind = "payment_debit"
	LedgerEntryKindGiftSend     LedgerEntryKind = "gift_send"
	LedgerEntryKindGiftReceive  LedgerEntryKind = "gift_receive"
	LedgerEntryKindTopup        LedgerEntryKind = "topup"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindScanAccrual,
	LedgerEntryKindPaymentDebit,
	LedgerEntryKindGiftSend,
	LedgerEntryKindGiftReceive,
	LedgerEntryKindTopup,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerEntryKind converts raw input into a LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	for _, candidate := range validLedgerEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry kind %q", value)
}
