package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

const (
	Deposit        TransactionType = "deposit"
	Withdrawal     TransactionType = "withdrawal"
	Payout         TransactionType = "payout"
	PayoutReversal TransactionType = "payout_reversal"
)

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusRisk      Status = "risk"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

const (
	KindGroup      Kind = "group"
	KindIndividual Kind = "individual"
)

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

type (
	Frequency       string
	TransactionType string
	Status          string
	Kind            string
	Severity        string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one immutable entry in a xitique's ledger. Once appended it
	// is never edited or removed; corrections are new payout_reversal entries
	// referencing the original.
	Transaction struct {
		ID          string
		Type        TransactionType
		Amount      Money
		CreatedAt   time.Time
		Description string
		// ReferenceID points at the reversed transaction for payout_reversal.
		ReferenceID string
		// ParticipantID identifies the payout recipient on payout and
		// payout_reversal entries; empty for deposits and withdrawals.
		ParticipantID string
	}

	// Participant belongs to exactly one group xitique. Position is dense 1..N
	// and unique within the circle.
	Participant struct {
		ID         string
		Name       string
		Position   int
		PayoutDate Date
		// DateOverridden marks a manually set payout date. Rotation recomputes
		// skip it unless this participant itself moves or the circle start
		// date changes.
		DateOverridden bool
		Received       bool
		// CustomAmount overrides the circle base contribution when non-nil.
		CustomAmount *Money
	}

	// Xitique is a rotating savings circle (group) or a standalone savings
	// goal (individual).
	Xitique struct {
		ID           string
		Name         string
		Kind         Kind
		BaseAmount   Money
		Frequency    Frequency
		StartDate    Date
		Status       Status
		Participants []Participant
		// TargetAmount applies to individual goals only.
		TargetAmount Money
		Transactions []Transaction
		Archived     bool
		CreatedAt    time.Time
	}

	// Notification is a derived reminder. The ID is deterministic so a
	// generated notification is never emitted twice.
	Notification struct {
		ID        string
		XitiqueID string
		Title     string
		Message   string
		Date      Date
		Read      bool
		Severity  Severity
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrAmountNotPositive  = errors.New("amount must be positive")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrInvalidKind        = errors.New("invalid kind")
	ErrInvalidTransaction = errors.New("invalid transaction type")
	ErrXitiqueCompleted   = errors.New("xitique is completed")
	ErrXitiqueArchived    = errors.New("xitique is archived")
)

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Midnight truncates the date to midnight in UTC, the reference point for
// whole-day arithmetic.
func (d Date) Midnight() time.Time {
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the sum of two amounts.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns the difference of two amounts.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly:
		return nil
	}
	return ErrInvalidFrequency
}

func (t TransactionType) Validate() error {
	switch t {
	case Deposit, Withdrawal, Payout, PayoutReversal:
		return nil
	}
	return ErrInvalidTransaction
}

func (t Transaction) Validate() error {
	if t.ID == "" {
		return ErrInvalidTransaction
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.Amount.Cents <= 0 {
		return ErrAmountNotPositive
	}
	return nil
}

// EffectiveContribution is what this participant pays per cycle: the custom
// amount when set, otherwise the circle base amount.
func (p Participant) EffectiveContribution(base Money) Money {
	if p.CustomAmount != nil {
		return *p.CustomAmount
	}
	return base
}

func (x Xitique) Validate() error {
	if len(strings.TrimSpace(x.Name)) == 0 {
		return ErrEmptyName
	}
	if len(x.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	switch x.Kind {
	case KindGroup, KindIndividual:
	default:
		return ErrInvalidKind
	}
	if err := x.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if err := x.Frequency.Validate(); err != nil {
		return err
	}
	if err := x.BaseAmount.Validate(); err != nil {
		return err
	}
	if x.Kind == KindIndividual && x.TargetAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// CheckInvariants verifies structural invariants that correct callers can
// never break: positions must be a dense permutation of 1..N and reversal
// references must resolve. A non-nil error is a programming defect, not a
// user-correctable condition.
func (x Xitique) CheckInvariants() error {
	seen := make(map[int]bool, len(x.Participants))
	for _, p := range x.Participants {
		if p.Position < 1 || p.Position > len(x.Participants) {
			return errors.New("participant position out of range: " + p.Name)
		}
		if seen[p.Position] {
			return errors.New("duplicate participant position: " + p.Name)
		}
		seen[p.Position] = true
	}
	ids := make(map[string]bool, len(x.Transactions))
	for _, t := range x.Transactions {
		ids[t.ID] = true
	}
	for _, t := range x.Transactions {
		if t.Type == PayoutReversal && t.ReferenceID != "" && !ids[t.ReferenceID] {
			return errors.New("reversal references unknown transaction: " + t.ID)
		}
	}
	return nil
}
