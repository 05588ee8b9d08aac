package service

import (
	"context"
	"log/slog"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

// Notifier delivers a plain text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

type Message struct {
	UserID int64
	Text   string
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	UserID int64
	Err    error
}

func (d Delivery) Sent() bool { return d.Err == nil }

type BatchReport struct {
	Deliveries []Delivery
	Sent       int
	Failed     int
}

// SendBatch delivers every message in order. Failures are recorded per
// recipient and never stop the batch.
func SendBatch(ctx context.Context, n Notifier, msgs []Message) BatchReport {
	report := BatchReport{Deliveries: make([]Delivery, 0, len(msgs))}
	for _, m := range msgs {
		err := n.Notify(ctx, m.UserID, m.Text)
		report.Deliveries = append(report.Deliveries, Delivery{UserID: m.UserID, Err: err})
		if err != nil {
			report.Failed++
			notificationsTotal.WithLabelValues("failed").Inc()
			slog.Debug("notification failed", "user_id", m.UserID, "err", err)
			continue
		}
		report.Sent++
		notificationsTotal.WithLabelValues("sent").Inc()
	}
	return report
}

// Broadcast sends text to every known user.
func Broadcast(ctx context.Context, users store.UserStore, n Notifier, text string) (BatchReport, error) {
	ids, err := users.AllUserIDs(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	msgs := make([]Message, len(ids))
	for i, id := range ids {
		msgs[i] = Message{UserID: id, Text: text}
	}
	report := SendBatch(ctx, n, msgs)
	slog.Info("broadcast finished", "recipients", len(ids), "sent", report.Sent, "failed", report.Failed)
	return report, nil
}
