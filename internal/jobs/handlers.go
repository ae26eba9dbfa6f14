package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, body string) error
}

// Notifier tells an entry author about activity on their entry.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, n EntryNotify) error
}

func OTPDeliveryHandler(s SMSSender) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		var p OTPDelivery
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return Permanent(fmt.Errorf("bad payload: %w", err))
		}
		if p.Phone == "" || p.Code == "" {
			return Permanent(errors.New("incomplete otp payload"))
		}
		return s.Send(ctx, p.Phone, "Your Whispering Diary code is "+p.Code)
	}
}

func EntryNotifyHandler(n Notifier) HandlerFunc {
	return func(ctx context.Context, job *Job) error {
		var p EntryNotify
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return Permanent(fmt.Errorf("bad payload: %w", err))
		}
		return n.Notify(ctx, job.UserID, p)
	}
}

// LogSender writes outgoing messages to the log instead of an SMS gateway.
// Development only: the message body includes the code.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, phone, body string) error {
	s.Log.Info("[SMS]", zap.String("phone", phone), zap.String("body", body))
	return nil
}

type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, userID uint64, p EntryNotify) error {
	fields := []zap.Field{
		zap.Uint64("user", userID),
		zap.Uint64("entry", p.EntryID),
		zap.Uint64("comment", p.CommentID),
	}
	if !p.Anonymous {
		fields = append(fields, zap.Uint64("actor", p.ActorID))
	}
	n.Log.Info("[NOTIFY] new comment", fields...)
	return nil
}
