package notification

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

const (
	// KindVerificationLink delivers a freshly created verification link.
	KindVerificationLink = "verification_link"
	// KindVerificationReminder delivers a resent verification link.
	KindVerificationReminder = "verification_reminder"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// ErrNoDestination is returned when the message has nowhere to go.
var ErrNoDestination = errors.New("notification destination is required")

// Message describes a notification payload.
type Message struct {
	Kind        string
	Channel     string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if strings.TrimSpace(message.Destination) == "" {
		return ErrNoDestination
	}
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("channel", message.Channel),
		slog.String("destination", mask(message.Destination)),
		slog.String("subject", message.Subject),
	)
	return nil
}

// mask hides most of an email or phone number for logs.
func mask(dest string) string {
	if at := strings.IndexByte(dest, '@'); at > 0 {
		return dest[:1] + "***" + dest[at:]
	}
	if len(dest) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(dest)-4) + dest[len(dest)-4:]
}

// Recorder keeps sent messages in memory. Useful for tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Send stores the message or returns the configured error.
func (r *Recorder) Send(_ context.Context, message Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, message)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
