package apperr

import (
	"log/slog"

	"github.com/JonMunkholm/gradebook/internal/alert"
)

// Classifier turns failures into user-facing messages and, on request,
// raises exactly one alert per failure.
type Classifier struct {
	notifier alert.Notifier
	logger   *slog.Logger
}

// NewClassifier creates a Classifier that raises alerts through n.
// A nil notifier discards alerts.
func NewClassifier(n alert.Notifier, logger *slog.Logger) *Classifier {
	if n == nil {
		n = alert.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{notifier: n, logger: logger}
}

// Classify maps err to a user-facing message for the given operation label.
// When showAlert is true one error alert is raised. Returns "" for a nil error.
func (c *Classifier) Classify(err error, operation string, showAlert bool) string {
	if err == nil {
		return ""
	}

	msg := MapError(err)
	text := msg.Message
	if operation != "" {
		text = operation + ": " + msg.Message
	}

	c.logger.Warn("operation failed",
		"operation", operation,
		"code", msg.Code,
		"error", err,
	)

	if showAlert {
		c.notifier.AddCustomAlert(alert.TypeError, msg.Title, text+". "+msg.Action, false)
	}
	return text
}

// Notify raises an alert through the classifier's notifier.
func (c *Classifier) Notify(kind alert.Type, title, message string) {
	c.notifier.AddCustomAlert(kind, title, message, false)
}
