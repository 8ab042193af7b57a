// Package notify derives reminder notifications from payout schedules.
//
// Generation is idempotent: every notification carries a deterministic id
// built from the entity, participant and day offset, and the generator never
// emits an id the caller has already seen. Persisting generated notifications
// (so read state survives) is the caller's responsibility.
package notify

import (
	"fmt"
	"time"

	"xitique/internal/core"
)

// upcomingWindowDays is how many days before a payout the reminder fires.
const upcomingWindowDays = 2

// overdueWindowDays bounds how long after the payout date the overdue
// warning can still be generated.
const overdueWindowDays = 30

// Generate scans circles and goals and returns the notifications that are
// due now and not yet known. existingIDs is mutated as ids are claimed, which
// also deduplicates within a single call.
func Generate(xitiques []*core.Xitique, existingIDs map[string]struct{}, now time.Time) []core.Notification {
	var out []core.Notification
	emit := func(n core.Notification) {
		if _, seen := existingIDs[n.ID]; seen {
			return
		}
		existingIDs[n.ID] = struct{}{}
		out = append(out, n)
	}

	today := midnight(now)
	for _, x := range xitiques {
		switch x.Status {
		case core.StatusActive, core.StatusPlanning, core.StatusRisk:
		default:
			continue
		}
		if x.Kind == core.KindIndividual {
			generateIndividual(x, today, emit)
			continue
		}
		for _, p := range x.Participants {
			if p.Received || p.PayoutDate.IsZero() {
				continue
			}
			generateForParticipant(x, p, today, emit)
		}
	}
	return out
}

func generateForParticipant(x *core.Xitique, p core.Participant, today time.Time, emit func(core.Notification)) {
	days := wholeDays(p.PayoutDate.Midnight().Sub(today))
	date := core.Date{Time: today}

	switch {
	case days > 0 && days <= upcomingWindowDays:
		// Distinct id per remaining day, so the reminder fires once per day.
		emit(core.Notification{
			ID:        fmt.Sprintf("contrib-%s-%s-%d", x.ID, p.ID, days),
			XitiqueID: x.ID,
			Title:     "Upcoming payout",
			Message:   fmt.Sprintf("%s receives the pot of %s in %d day(s) in %q", p.Name, core.CyclePot(x.BaseAmount, x.Participants), days, x.Name),
			Date:      date,
			Severity:  core.SeverityInfo,
		})
	case days == 0:
		emit(core.Notification{
			ID:        fmt.Sprintf("payout-%s-%s", x.ID, p.ID),
			XitiqueID: x.ID,
			Title:     "Payout due today",
			Message:   fmt.Sprintf("Today is %s's turn to receive %s in %q", p.Name, core.CyclePot(x.BaseAmount, x.Participants), x.Name),
			Date:      date,
			Severity:  core.SeveritySuccess,
		})
	case days < 0 && days > -overdueWindowDays:
		// Fires once, ever: the id carries no day count.
		emit(core.Notification{
			ID:        fmt.Sprintf("overdue-%s-%s", x.ID, p.ID),
			XitiqueID: x.ID,
			Title:     "Payout overdue",
			Message:   fmt.Sprintf("%s's payout in %q is %d day(s) overdue", p.Name, x.Name, -days),
			Date:      date,
			Severity:  core.SeverityWarning,
		})
	}
}

// generateIndividual emits a weekly encouragement for a savings goal that has
// not reached its target: every 7th day since creation, keyed by the day
// count so each week fires exactly once.
func generateIndividual(x *core.Xitique, today time.Time, emit func(core.Notification)) {
	if x.TargetAmount.Cents <= 0 {
		return
	}
	days := wholeDays(today.Sub(midnight(x.CreatedAt)))
	if days <= 0 || days%7 != 0 {
		return
	}
	balance := core.CalculateBalance(x.Transactions)
	if balance.Cents >= x.TargetAmount.Cents {
		return
	}
	emit(core.Notification{
		ID:        fmt.Sprintf("ind-reminder-%s-%d", x.ID, days),
		XitiqueID: x.ID,
		Title:     "Keep saving",
		Message:   fmt.Sprintf("%q is at %s of the %s target", x.Name, balance, x.TargetAmount),
		Date:      core.Date{Time: today},
		Severity:  core.SeverityInfo,
	})
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}
