package enums

import "fmt"

// NotificationType labels in-app notifications by the event that produced them.
type NotificationType string

const (
	NotificationOrderStatus   NotificationType = "order_status"
	NotificationHandoffCode   NotificationType = "handoff_code"
	NotificationLoyaltyPoints NotificationType = "loyalty_points"
	NotificationReferral      NotificationType = "referral"
	NotificationLuckyBox      NotificationType = "lucky_box"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderStatus,
	NotificationHandoffCode,
	NotificationLoyaltyPoints,
	NotificationReferral,
	NotificationLuckyBox,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
