package domain

// NotificationType is the severity of a user-visible status message.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyWarning NotificationType = "warning"
	NotifyInfo    NotificationType = "info"
)

// Notification is a user-visible status message.
type Notification struct {
	ID        int64            `json:"id"` // monotonic, Unix ms based
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp int64            `json:"timestamp"` // Unix ms
}
