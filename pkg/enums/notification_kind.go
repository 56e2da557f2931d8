package enums

import "fmt"

// NotificationKind classifies events handed to the notification sink.
type NotificationKind string

const (
	NotificationKindBalanceChanged        NotificationKind = "balance_changed"
	NotificationKindSubscriptionActivated NotificationKind = "subscription_activated"
	NotificationKindGiftReceived          NotificationKind = "gift_received"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindBalanceChanged,
	NotificationKindSubscriptionActivated,
	NotificationKindGiftReceived,
}

// IsValid reports whether the value is known.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
