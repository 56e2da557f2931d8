package enums

import "fmt"

// PaymentProvider names the processor that handled a payment attempt.
type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderPayPal PaymentProvider = "paypal"
	PaymentProviderCash   PaymentProvider = "cash"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderStripe,
	PaymentProviderPayPal,
	PaymentProviderCash,
}

// IsValid reports whether the value is known.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts raw input into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	for _, candidate := range validPaymentProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
