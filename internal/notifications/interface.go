package notifications

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error
}

// NopNotifier discards all alerts. Used when no notifier is configured.
type NopNotifier struct{}

func (NopNotifier) SendAlert(level, message string) error { return nil }
