package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/bankverify/bankverify/internal/logging"
)

func TestLoggerNotifierRequiresDestination(t *testing.T) {
	n := NewLoggerNotifier(logging.Discard())
	err := n.Send(context.Background(), Message{Kind: KindVerificationLink, Channel: ChannelEmail})
	if !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
	if err := n.Send(context.Background(), Message{Kind: KindVerificationLink, Channel: ChannelEmail, Destination: "a@b.co"}); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"jane@example.com": "j***@example.com",
		"+15551234567":     "********4567",
		"123":              "****",
	}
	for in, want := range cases {
		if got := mask(in); got != want {
			t.Fatalf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}
