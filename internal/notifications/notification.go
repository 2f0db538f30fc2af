package notifications

import (
	"context"
	"fmt"
	"time"

	"slotswapper/pkg/kafka"
	"slotswapper/pkg/logger"
	"slotswapper/pkg/model"
)

type Notification struct {
	RecipientID    string
	CounterpartyID string
	RequestID      string
	Event          model.SwapEventType
	Text           string
	OccurredAt     time.Time
}

// Sender delivers a notification to its recipient.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// LogSender records notifications as structured log lines.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, n *Notification) error {
	s.log.Info("Notification sent",
		"recipient_id", n.RecipientID,
		"counterparty_id", n.CounterpartyID,
		"request_id", n.RequestID,
		"event", n.Event,
		"text", n.Text,
	)
	return nil
}

type Handler struct {
	sender Sender
	log    *logger.Logger
}

func NewHandler(sender Sender, log *logger.Logger) *Handler {
	return &Handler{sender: sender, log: log}
}

// Handle is a kafka.MessageHandler for the swap events topic.
func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.SwapEvent
	if err := msg.DecodeValue(&event); err != nil {
		return kafka.NewPermanentError("failed to decode swap event", err)
	}

	n, err := Build(&event)
	if err != nil {
		return kafka.NewPermanentError("unroutable swap event", err)
	}

	if err := h.sender.Send(ctx, n); err != nil {
		return kafka.NewTransientError("failed to send notification", err)
	}
	return nil
}

// Build decides who hears about event: the side that did not act.
func Build(event *model.SwapEvent) (*Notification, error) {
	if event.RequestID == "" {
		return nil, fmt.Errorf("event has no request id")
	}

	n := &Notification{
		RequestID:  event.RequestID,
		Event:      event.Type,
		OccurredAt: event.OccurredAt,
	}

	switch event.Type {
	case model.SwapEventProposed:
		n.RecipientID, n.CounterpartyID = event.ResponderID, event.RequesterID
		n.Text = "You received a new swap request"
	case model.SwapEventAccepted:
		n.RecipientID, n.CounterpartyID = event.RequesterID, event.ResponderID
		n.Text = "Your swap request was accepted"
	case model.SwapEventRejected:
		n.RecipientID, n.CounterpartyID = event.RequesterID, event.ResponderID
		n.Text = "Your swap request was rejected"
	case model.SwapEventCancelled:
		n.RecipientID, n.CounterpartyID = event.ResponderID, event.RequesterID
		n.Text = "A swap request sent to you was cancelled"
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}

	if n.RecipientID == "" {
		return nil, fmt.Errorf("event %s has no recipient", event.Type)
	}
	return n, nil
}
