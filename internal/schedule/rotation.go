// Package schedule implements the rotation scheduler for group xitiques:
// payout-date computation per frequency, participant reordering with position
// locking, and the add/remove/bulk-edit write paths.
//
// Each frequency has its own date stepper, mirroring the strategy registry
// used for recurrence checks elsewhere in this codebase's lineage.
package schedule

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"xitique/internal/core"
)

var (
	ErrPositionLocked      = errors.New("locked position")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidPosition     = errors.New("invalid target position")
)

// DateStepper advances a start date by n frequency steps.
type DateStepper interface {
	Step(start core.Date, n int) core.Date
}

type dailyStepper struct{}

func (dailyStepper) Step(start core.Date, n int) core.Date {
	return core.Date{Time: start.AddDate(0, 0, n)}
}

type weeklyStepper struct{}

func (weeklyStepper) Step(start core.Date, n int) core.Date {
	return core.Date{Time: start.AddDate(0, 0, 7*n)}
}

type monthlyStepper struct{}

func (monthlyStepper) Step(start core.Date, n int) core.Date {
	return core.Date{Time: start.AddDate(0, n, 0)}
}

var steppers = map[core.Frequency]DateStepper{
	core.Daily:   dailyStepper{},
	core.Weekly:  weeklyStepper{},
	core.Monthly: monthlyStepper{},
}

// StepperFor returns the date stepper for a frequency.
func StepperFor(freq core.Frequency) (DateStepper, error) {
	s, ok := steppers[freq]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", freq)
	}
	return s, nil
}

// PayoutDate computes the scheduled payout date for a position:
// startDate + step * (position - 1).
func PayoutDate(start core.Date, freq core.Frequency, position int) (core.Date, error) {
	s, err := StepperFor(freq)
	if err != nil {
		return core.Date{}, err
	}
	return s.Step(start, position-1), nil
}

// LockedSet is the set of participant ids whose positions are pinned during a
// reorder. It is consulted before any move and never stored on the
// participant record.
type LockedSet map[string]struct{}

// Contains reports whether the participant id is locked.
func (l LockedSet) Contains(id string) bool {
	_, ok := l[id]
	return ok
}

// Reorder moves a participant to targetPos (1-based), renumbers every
// position densely and recomputes payout dates from the new order.
//
// A locked participant can neither be moved nor displaced from its target
// slot; that case returns ErrPositionLocked and leaves the circle untouched.
// Manually overridden payout dates on unmoved participants are preserved; the
// moved participant's own override is cleared because its turn changed.
func Reorder(x *core.Xitique, movedID string, targetPos int, locked LockedSet) error {
	idx := indexOf(x.Participants, movedID)
	if idx < 0 {
		return ErrParticipantNotFound
	}
	if targetPos < 1 || targetPos > len(x.Participants) {
		return ErrInvalidPosition
	}
	if locked.Contains(movedID) {
		return ErrPositionLocked
	}
	for _, p := range x.Participants {
		if p.Position == targetPos && p.ID != movedID && locked.Contains(p.ID) {
			return ErrPositionLocked
		}
	}

	ordered := byPosition(x.Participants)
	from := -1
	for i, p := range ordered {
		if p.ID == movedID {
			from = i
			break
		}
	}
	moved := ordered[from]
	moved.DateOverridden = false
	ordered = append(ordered[:from], ordered[from+1:]...)
	to := targetPos - 1
	ordered = append(ordered[:to], append([]core.Participant{moved}, ordered[to:]...)...)

	return renumber(x, ordered)
}

// AddParticipant appends a participant at position N+1, computes its payout
// date from the circle start date, and pins the circle's current base amount
// as its contribution default.
func AddParticipant(x *core.Xitique, name string) (*core.Participant, error) {
	pos := len(x.Participants) + 1
	date, err := PayoutDate(x.StartDate, x.Frequency, pos)
	if err != nil {
		return nil, err
	}
	base := x.BaseAmount
	p := core.Participant{
		ID:           uuid.New().String(),
		Name:         name,
		Position:     pos,
		PayoutDate:   date,
		CustomAmount: &base,
	}
	x.Participants = append(x.Participants, p)
	return &x.Participants[len(x.Participants)-1], nil
}

// RemoveParticipant deletes a participant, renumbers the remainder densely
// and recomputes payout dates exactly like the reorder path.
func RemoveParticipant(x *core.Xitique, id string) error {
	idx := indexOf(x.Participants, id)
	if idx < 0 {
		return ErrParticipantNotFound
	}
	ordered := byPosition(x.Participants)
	for i, p := range ordered {
		if p.ID == id {
			ordered = append(ordered[:i], ordered[i+1:]...)
			break
		}
	}
	return renumber(x, ordered)
}

// BulkEdit is the "edit group" write path: zero-value fields are left alone.
type BulkEdit struct {
	Name       string
	BaseAmount *core.Money
	StartDate  *core.Date
	Frequency  core.Frequency
}

// ApplyBulkEdit applies a group-level edit. A start-date (or frequency)
// change recomputes every participant's payout date from the new schedule,
// clearing manual overrides; a base-amount change is recorded for the caller
// to re-derive status from.
func ApplyBulkEdit(x *core.Xitique, edit BulkEdit) error {
	if edit.Name != "" {
		x.Name = edit.Name
	}
	if edit.BaseAmount != nil {
		if err := edit.BaseAmount.Validate(); err != nil {
			return err
		}
		x.BaseAmount = *edit.BaseAmount
	}
	scheduleChanged := false
	if edit.StartDate != nil {
		if err := edit.StartDate.Validate(); err != nil {
			return err
		}
		x.StartDate = *edit.StartDate
		scheduleChanged = true
	}
	if edit.Frequency != "" {
		if err := edit.Frequency.Validate(); err != nil {
			return err
		}
		x.Frequency = edit.Frequency
		scheduleChanged = true
	}
	if scheduleChanged {
		for i := range x.Participants {
			x.Participants[i].DateOverridden = false
		}
		return renumber(x, byPosition(x.Participants))
	}
	return nil
}

// SetManualPayoutDate records an explicit per-participant payout date. The
// override survives reorders of other participants but is cleared when this
// participant moves or the circle schedule changes.
func SetManualPayoutDate(x *core.Xitique, id string, date core.Date) error {
	idx := indexOf(x.Participants, id)
	if idx < 0 {
		return ErrParticipantNotFound
	}
	if err := date.Validate(); err != nil {
		return err
	}
	x.Participants[idx].PayoutDate = date
	x.Participants[idx].DateOverridden = true
	return nil
}

// renumber assigns dense positions 1..N in the given order and recomputes
// payout dates for every participant without a manual override.
func renumber(x *core.Xitique, ordered []core.Participant) error {
	for i := range ordered {
		ordered[i].Position = i + 1
		if ordered[i].DateOverridden {
			continue
		}
		date, err := PayoutDate(x.StartDate, x.Frequency, i+1)
		if err != nil {
			return err
		}
		ordered[i].PayoutDate = date
	}
	x.Participants = ordered
	return nil
}

func byPosition(participants []core.Participant) []core.Participant {
	ordered := append([]core.Participant(nil), participants...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}

func indexOf(participants []core.Participant, id string) int {
	for i, p := range participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}
