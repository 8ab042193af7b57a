package notify

import (
	"fmt"
	"testing"
	"time"

	"xitique/internal/core"
)

func circleWithPayout(daysFromNow int, now time.Time) *core.Xitique {
	return &core.Xitique{
		ID:         "x1",
		Name:       "Bairro Central",
		Kind:       core.KindGroup,
		Status:     core.StatusActive,
		BaseAmount: core.Money{Cents: 10000},
		Frequency:  core.Monthly,
		Participants: []core.Participant{
			{
				ID:         "p1",
				Name:       "Ana",
				Position:   1,
				PayoutDate: core.Date{Time: now.AddDate(0, 0, daysFromNow)},
			},
		},
	}
}

func TestGenerateUpcomingWindow(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		days     int
		wantID   string
		severity core.Severity
	}{
		{2, "contrib-x1-p1-2", core.SeverityInfo},
		{1, "contrib-x1-p1-1", core.SeverityInfo},
		{0, "payout-x1-p1", core.SeveritySuccess},
		{-1, "overdue-x1-p1", core.SeverityWarning},
		{-29, "overdue-x1-p1", core.SeverityWarning},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("days_%d", tc.days), func(t *testing.T) {
			x := circleWithPayout(tc.days, now)
			got := Generate([]*core.Xitique{x}, map[string]struct{}{}, now)
			if len(got) != 1 {
				t.Fatalf("got %d notifications, want 1", len(got))
			}
			if got[0].ID != tc.wantID {
				t.Fatalf("id = %s, want %s", got[0].ID, tc.wantID)
			}
			if got[0].Severity != tc.severity {
				t.Fatalf("severity = %s, want %s", got[0].Severity, tc.severity)
			}
		})
	}

	quiet := []int{3, 10, -30, -45}
	for _, days := range quiet {
		x := circleWithPayout(days, now)
		if got := Generate([]*core.Xitique{x}, map[string]struct{}{}, now); len(got) != 0 {
			t.Fatalf("days=%d: got %d notifications, want 0", days, len(got))
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	x := circleWithPayout(1, now)

	existing := map[string]struct{}{}
	first := Generate([]*core.Xitique{x}, existing, now)
	if len(first) != 1 {
		t.Fatalf("first call: got %d, want 1", len(first))
	}
	second := Generate([]*core.Xitique{x}, existing, now)
	if len(second) != 0 {
		t.Fatalf("second call with carried ids: got %d, want 0", len(second))
	}
}

func TestGenerateSkipsPaidAndInactive(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	paid := circleWithPayout(1, now)
	paid.Participants[0].Received = true
	if got := Generate([]*core.Xitique{paid}, map[string]struct{}{}, now); len(got) != 0 {
		t.Fatal("paid participant must not trigger reminders")
	}

	for _, status := range []core.Status{core.StatusCompleted, core.StatusArchived} {
		x := circleWithPayout(1, now)
		x.Status = status
		if got := Generate([]*core.Xitique{x}, map[string]struct{}{}, now); len(got) != 0 {
			t.Fatalf("status %s must not trigger reminders", status)
		}
	}
}

func TestGenerateUpcomingFiresOncePerRemainingDay(t *testing.T) {
	created := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	x := circleWithPayout(2, created)

	existing := map[string]struct{}{}
	total := 0
	// Scan daily as the payout approaches: day-2 and day-1 reminders fire
	// once each, then the due-today notification.
	for day := 0; day <= 2; day++ {
		now := created.AddDate(0, 0, day)
		total += len(Generate([]*core.Xitique{x}, existing, now))
	}
	if total != 3 {
		t.Fatalf("got %d notifications across the window, want 3", total)
	}
}

func TestGenerateIndividualWeeklyReminder(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	goal := &core.Xitique{
		ID:           "g1",
		Name:         "Poupança moto",
		Kind:         core.KindIndividual,
		Status:       core.StatusActive,
		TargetAmount: core.Money{Cents: 500000},
		CreatedAt:    created,
	}

	existing := map[string]struct{}{}
	// One deposit per day for seven days; only day 7 yields a reminder.
	for day := 1; day <= 7; day++ {
		now := created.AddDate(0, 0, day)
		goal.Transactions = append(goal.Transactions, core.Transaction{
			Type: core.Deposit, Amount: core.Money{Cents: 10000}, CreatedAt: now,
		})
		got := Generate([]*core.Xitique{goal}, existing, now)
		if day < 7 && len(got) != 0 {
			t.Fatalf("day %d: got %d notifications, want 0", day, len(got))
		}
		if day == 7 {
			if len(got) != 1 {
				t.Fatalf("day 7: got %d notifications, want 1", len(got))
			}
			if got[0].ID != "ind-reminder-g1-7" {
				t.Fatalf("id = %s, want ind-reminder-g1-7", got[0].ID)
			}
		}
	}
}

func TestGenerateIndividualStopsAtTarget(t *testing.T) {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	goal := &core.Xitique{
		ID:           "g2",
		Name:         "Fundo emergência",
		Kind:         core.KindIndividual,
		Status:       core.StatusActive,
		TargetAmount: core.Money{Cents: 5000},
		CreatedAt:    created,
		Transactions: []core.Transaction{
			{Type: core.Deposit, Amount: core.Money{Cents: 5000}},
		},
	}
	now := created.AddDate(0, 0, 7)
	if got := Generate([]*core.Xitique{goal}, map[string]struct{}{}, now); len(got) != 0 {
		t.Fatal("reached target must not generate encouragement")
	}
}
