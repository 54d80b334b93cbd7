package enums

import "slices"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrder      NotificationType = "order"
	NotificationTypeSettlement NotificationType = "settlement"
	NotificationTypeKYC        NotificationType = "kyc"
	NotificationTypeDispute    NotificationType = "dispute"
	NotificationTypePayment    NotificationType = "payment"
	NotificationTypeLowStock   NotificationType = "low_stock"
	NotificationTypeAIInsight  NotificationType = "ai_insight"
	NotificationTypeReferral   NotificationType = "referral"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypeSettlement,
	NotificationTypeKYC,
	NotificationTypeDispute,
	NotificationTypePayment,
	NotificationTypeLowStock,
	NotificationTypeAIInsight,
	NotificationTypeReferral,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse(value, validNotificationTypes, "notification type")
}
