package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"xitique/internal/core"
	"xitique/internal/schedule"
	"xitique/internal/storage"
)

// ErrEditModeActive rejects payout toggles while a bulk edit is in progress.
var ErrEditModeActive = errors.New("cannot toggle payout while edit mode is active")

// LedgerPublisher emits a sync event after a ledger append. *amqp.Client
// satisfies it; a nil publisher disables export.
type LedgerPublisher interface {
	PublishLedgerSync(ctx context.Context, xitiqueID, transactionID string) error
}

// XitiqueService orchestrates circle operations across storage and AMQP.
// Every write is a whole-entity read-modify-write; a failed save surfaces the
// error and leaves nothing half-applied.
type XitiqueService struct {
	store     storage.Store
	publisher LedgerPublisher
}

func NewXitiqueService(store storage.Store, publisher LedgerPublisher) *XitiqueService {
	return &XitiqueService{
		store:     store,
		publisher: publisher,
	}
}

// saveXitique persists the entity only after its structural invariants hold.
// A violation here is a programming defect, not user input; the write is
// refused and the stored entity stays as it was.
func (s *XitiqueService) saveXitique(ctx context.Context, x *core.Xitique) error {
	if err := x.CheckInvariants(); err != nil {
		slog.ErrorContext(ctx, "Refusing write, invariant violated",
			"xitique_id", x.ID,
			"error", err)
		return fmt.Errorf("invariant violated: %w", err)
	}
	if err := s.store.SaveXitique(ctx, x); err != nil {
		return fmt.Errorf("save xitique: %w", err)
	}
	return nil
}

// Create validates and persists a new circle. Participants may be provided by
// name; they get positions and payout dates from the rotation schedule.
func (s *XitiqueService) Create(ctx context.Context, x *core.Xitique, participantNames []string) (*core.Xitique, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}
	for _, name := range participantNames {
		if _, err := schedule.AddParticipant(x, name); err != nil {
			return nil, fmt.Errorf("add participant %q: %w", name, err)
		}
	}
	x.Status = core.StatusPlanning
	if err := s.store.CreateXitique(ctx, x); err != nil {
		return nil, fmt.Errorf("save xitique: %w", err)
	}

	slog.InfoContext(ctx, "Created xitique",
		"id", x.ID,
		"name", x.Name,
		"kind", x.Kind,
		"participants", len(x.Participants))
	return x, nil
}

func (s *XitiqueService) Get(ctx context.Context, id string) (*core.Xitique, error) {
	return s.store.GetXitique(ctx, id)
}

func (s *XitiqueService) List(ctx context.Context, includeArchived bool) ([]*core.Xitique, error) {
	return s.store.ListXitiques(ctx, includeArchived)
}

// Balance folds the circle's transaction log; nothing stores a running total.
func (s *XitiqueService) Balance(ctx context.Context, id string) (core.Money, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return core.Money{}, err
	}
	return core.CalculateBalance(x.Transactions), nil
}

// Archive soft-deletes a circle. The ledger and participants stay intact.
func (s *XitiqueService) Archive(ctx context.Context, id string) error {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return err
	}
	if x.Archived {
		return core.ErrXitiqueArchived
	}
	x.Archived = true
	x.Status = core.DeriveStatus(x)
	if err := s.saveXitique(ctx, x); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Archived xitique", "id", id)
	return nil
}

// RecordDeposit appends a deposit to the ledger and publishes a sync event.
func (s *XitiqueService) RecordDeposit(ctx context.Context, id string, amount core.Money, description string) (core.Transaction, error) {
	return s.appendTransaction(ctx, id, core.Deposit, amount, description, "")
}

// RecordWithdrawal appends a withdrawal. Withdrawing the exact balance is
// allowed; anything beyond it fails with ErrInsufficientFunds.
func (s *XitiqueService) RecordWithdrawal(ctx context.Context, id string, amount core.Money, description string) (core.Transaction, error) {
	return s.appendTransaction(ctx, id, core.Withdrawal, amount, description, "")
}

func (s *XitiqueService) appendTransaction(ctx context.Context, id string, typ core.TransactionType, amount core.Money, description, referenceID string) (core.Transaction, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if x.Archived {
		return core.Transaction{}, core.ErrXitiqueArchived
	}
	if err := core.ValidateTransaction(x, typ, amount); err != nil {
		return core.Transaction{}, err
	}
	tx, err := core.NewTransaction(typ, amount, description, referenceID)
	if err != nil {
		return core.Transaction{}, err
	}
	x.Transactions = append(x.Transactions, tx)
	if err := s.saveXitique(ctx, x); err != nil {
		return core.Transaction{}, err
	}

	s.publishSyncMessage(ctx, x.ID, tx.ID)
	return tx, nil
}

// TogglePayout flips a group participant's received flag and appends the
// matching ledger entry: a payout of the dynamic pot when marking received, a
// payout_reversal referencing that payout when unmarking.
//
// The toggle is blocked while edit mode is active and rejected outright on
// completed circles.
func (s *XitiqueService) TogglePayout(ctx context.Context, id, participantID string, editMode bool) (*core.Xitique, error) {
	if editMode {
		return nil, ErrEditModeActive
	}
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return nil, err
	}
	if x.Archived {
		return nil, core.ErrXitiqueArchived
	}
	if core.DeriveStatus(x) == core.StatusCompleted {
		return nil, core.ErrXitiqueCompleted
	}

	idx := -1
	for i, p := range x.Participants {
		if p.ID == participantID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, schedule.ErrParticipantNotFound
	}
	participant := &x.Participants[idx]

	var tx core.Transaction
	if !participant.Received {
		pot := core.DynamicPot(x, *participant)
		tx, err = core.NewTransaction(core.Payout, pot, "payout to "+participant.Name, "")
		if err != nil {
			return nil, err
		}
		tx.ParticipantID = participant.ID
		participant.Received = true
	} else {
		original, found := lastUnreversedPayout(x, participant.ID)
		if !found {
			return nil, fmt.Errorf("no payout on record for participant %s", participant.ID)
		}
		tx, err = core.NewTransaction(core.PayoutReversal, original.Amount, "payout reversal for "+participant.Name, original.ID)
		if err != nil {
			return nil, err
		}
		tx.ParticipantID = participant.ID
		participant.Received = false
	}

	x.Transactions = append(x.Transactions, tx)
	x.Status = core.DeriveStatus(x)
	if err := s.saveXitique(ctx, x); err != nil {
		return nil, err
	}

	s.publishSyncMessage(ctx, x.ID, tx.ID)
	slog.InfoContext(ctx, "Toggled payout",
		"xitique_id", x.ID,
		"participant_id", participantID,
		"received", participant.Received,
		"status", x.Status)
	return x, nil
}

// lastUnreversedPayout finds the newest payout for a participant that no
// payout_reversal references yet.
func lastUnreversedPayout(x *core.Xitique, participantID string) (core.Transaction, bool) {
	reversed := make(map[string]bool)
	for _, t := range x.Transactions {
		if t.Type == core.PayoutReversal && t.ReferenceID != "" {
			reversed[t.ReferenceID] = true
		}
	}
	for i := len(x.Transactions) - 1; i >= 0; i-- {
		t := x.Transactions[i]
		if t.Type == core.Payout && t.ParticipantID == participantID && !reversed[t.ID] {
			return t, true
		}
	}
	return core.Transaction{}, false
}

// BulkEdit applies a group-level edit and re-derives status, since a base
// amount change can move the circle in or out of risk.
func (s *XitiqueService) BulkEdit(ctx context.Context, id string, edit schedule.BulkEdit) (*core.Xitique, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return nil, err
	}
	if x.Archived {
		return nil, core.ErrXitiqueArchived
	}
	if err := schedule.ApplyBulkEdit(x, edit); err != nil {
		return nil, err
	}
	x.Status = core.DeriveStatus(x)
	if err := s.saveXitique(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

// AddParticipant appends a participant at the end of the rotation.
func (s *XitiqueService) AddParticipant(ctx context.Context, id, name string) (*core.Xitique, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return nil, err
	}
	if x.Archived {
		return nil, core.ErrXitiqueArchived
	}
	if _, err := schedule.AddParticipant(x, name); err != nil {
		return nil, err
	}
	x.Status = core.DeriveStatus(x)
	if err := s.saveXitique(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

// RemoveParticipant removes a participant and renumbers the rotation.
func (s *XitiqueService) RemoveParticipant(ctx context.Context, id, participantID string) (*core.Xitique, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return nil, err
	}
	if x.Archived {
		return nil, core.ErrXitiqueArchived
	}
	if err := schedule.RemoveParticipant(x, participantID); err != nil {
		return nil, err
	}
	x.Status = core.DeriveStatus(x)
	if err := s.saveXitique(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

// MoveParticipant reorders the rotation, honoring locked positions.
func (s *XitiqueService) MoveParticipant(ctx context.Context, id, participantID string, targetPos int, locked schedule.LockedSet) (*core.Xitique, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return nil, err
	}
	if x.Archived {
		return nil, core.ErrXitiqueArchived
	}
	if err := schedule.Reorder(x, participantID, targetPos, locked); err != nil {
		return nil, err
	}
	if err := s.saveXitique(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

// SetManualPayoutDate pins an explicit payout date on one participant.
func (s *XitiqueService) SetManualPayoutDate(ctx context.Context, id, participantID string, date core.Date) (*core.Xitique, error) {
	x, err := s.store.GetXitique(ctx, id)
	if err != nil {
		return nil, err
	}
	if x.Archived {
		return nil, core.ErrXitiqueArchived
	}
	if err := schedule.SetManualPayoutDate(x, participantID, date); err != nil {
		return nil, err
	}
	if err := s.saveXitique(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

func (s *XitiqueService) publishSyncMessage(ctx context.Context, xitiqueID, transactionID string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping sync message")
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, xitiqueID, transactionID); err != nil {
		// The ledger row is saved; export will catch up via backlog scan.
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"xitique_id", xitiqueID,
			"transaction_id", transactionID,
			"error", err)
	}
}

// Close closes the storage connection.
func (s *XitiqueService) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
