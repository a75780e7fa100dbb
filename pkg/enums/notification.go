package enums

import "fmt"

// NotificationKind classifies both the delivery template and the in-app notification row.
type NotificationKind string

const (
	NotificationDraftCreated    NotificationKind = "draft_created"
	NotificationAutoPromotion   NotificationKind = "auto_promotion"
	NotificationManualPromotion NotificationKind = "manual_promotion"
	NotificationTransferUpdate  NotificationKind = "transfer_update"
	NotificationPasswordSetup   NotificationKind = "password_setup"
	NotificationUserMessage     NotificationKind = "user_message"
	NotificationAdminAlert      NotificationKind = "admin_alert"
	NotificationSystemAlert     NotificationKind = "system_alert"
)

var validNotificationKinds = []NotificationKind{
	NotificationDraftCreated,
	NotificationAutoPromotion,
	NotificationManualPromotion,
	NotificationTransferUpdate,
	NotificationPasswordSetup,
	NotificationUserMessage,
	NotificationAdminAlert,
	NotificationSystemAlert,
}

// IsValid checks whether the given kind matches the canonical enum.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw strings into NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

// NotificationAudience selects who a requested notification fans out to.
type NotificationAudience string

const (
	AudienceUser     NotificationAudience = "user"
	AudienceManagers NotificationAudience = "managers"
	AudienceAdmins   NotificationAudience = "admins"
)

func (a NotificationAudience) IsValid() bool {
	switch a {
	case AudienceUser, AudienceManagers, AudienceAdmins:
		return true
	default:
		return false
	}
}
