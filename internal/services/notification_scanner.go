package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"xitique/internal/notify"
	"xitique/internal/storage"
)

// NotificationScanner periodically derives notifications from circle state
// and persists the ones that do not exist yet.
type NotificationScanner struct {
	store    storage.Store
	interval time.Duration
}

func NewNotificationScanner(store storage.Store, interval time.Duration) *NotificationScanner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &NotificationScanner{
		store:    store,
		interval: interval,
	}
}

// Run scans immediately and then on every tick until ctx is done.
func (s *NotificationScanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if _, err := s.ScanOnce(ctx, time.Now()); err != nil {
		slog.ErrorContext(ctx, "Notification scan failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Notification scanner stopping", "reason", ctx.Err())
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := s.ScanOnce(ctx, now); err != nil {
				slog.ErrorContext(ctx, "Notification scan failed", "error", err)
			}
		}
	}
}

// ScanOnce generates and persists notifications for a single point in time.
// It returns how many new notifications were created.
func (s *NotificationScanner) ScanOnce(ctx context.Context, now time.Time) (int, error) {
	xitiques, err := s.store.ListXitiques(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list xitiques: %w", err)
	}

	existing, err := s.store.NotificationIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load notification ids: %w", err)
	}

	generated := notify.Generate(xitiques, existing, now)
	if len(generated) == 0 {
		return 0, nil
	}

	if err := s.store.SaveNotifications(ctx, generated); err != nil {
		return 0, fmt.Errorf("save notifications: %w", err)
	}

	slog.InfoContext(ctx, "Notification scan complete",
		"scanned", len(xitiques),
		"created", len(generated))
	return len(generated), nil
}
