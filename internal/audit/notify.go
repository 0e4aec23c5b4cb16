package audit

import (
	"context"

	"guild_ledger/internal/notifications"
)

// NotifySink publishes records to the archive ntfy topic.
type NotifySink struct {
	client *notifications.Client
}

func NewNotifySink(client *notifications.Client) *NotifySink {
	return &NotifySink{client: client}
}

func (s *NotifySink) Name() string { return "ntfy" }

func (s *NotifySink) Write(ctx context.Context, r Record) error {
	return s.client.Send(ctx, notifications.Message{
		Title: "Command executed: " + r.Command,
		Body:  r.Text(),
		Tags:  []string{"ledger", r.Command},
	})
}
