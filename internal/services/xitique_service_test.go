package services

import (
	"context"
	"errors"
	"testing"

	"xitique/internal/core"
	"xitique/internal/schedule"
	"xitique/internal/storage/memory"
)

type fakePublisher struct {
	published [][2]string
	err       error
}

func (f *fakePublisher) PublishLedgerSync(_ context.Context, xitiqueID, transactionID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, [2]string{xitiqueID, transactionID})
	return nil
}

func newService(t *testing.T) (*XitiqueService, *memory.Store, *fakePublisher) {
	t.Helper()
	store := memory.New()
	pub := &fakePublisher{}
	return NewXitiqueService(store, pub), store, pub
}

func createGroup(t *testing.T, s *XitiqueService, names ...string) *core.Xitique {
	t.Helper()
	x := &core.Xitique{
		Name:       "Bairro",
		Kind:       core.KindGroup,
		BaseAmount: core.Money{Cents: 5000},
		Frequency:  core.Monthly,
		StartDate:  core.NewDate(2026, 3, 1),
	}
	created, err := s.Create(context.Background(), x, names)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestCreate(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto", "Celia")

	if x.Status != core.StatusPlanning {
		t.Errorf("Status = %v, want planning", x.Status)
	}
	if len(x.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(x.Participants))
	}
	for i, p := range x.Participants {
		if p.Position != i+1 {
			t.Errorf("participant %d position = %d, want %d", i, p.Position, i+1)
		}
	}
	if got := x.Participants[2].PayoutDate.Format("2006-01-02"); got != "2026-05-01" {
		t.Errorf("third payout date = %s, want 2026-05-01", got)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s, _, _ := newService(t)
	x := &core.Xitique{
		Name:       "",
		Kind:       core.KindGroup,
		BaseAmount: core.Money{Cents: 5000},
		Frequency:  core.Monthly,
		StartDate:  core.NewDate(2026, 3, 1),
	}
	if _, err := s.Create(context.Background(), x, nil); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("Create error = %v, want ErrEmptyName", err)
	}
}

func TestRecordDepositAndBalance(t *testing.T) {
	s, _, pub := newService(t)
	x := createGroup(t, s, "Ana")
	ctx := context.Background()

	if _, err := s.RecordDeposit(ctx, x.ID, core.Money{Cents: 5000}, "march"); err != nil {
		t.Fatalf("RecordDeposit: %v", err)
	}
	if _, err := s.RecordDeposit(ctx, x.ID, core.Money{Cents: 2500}, "extra"); err != nil {
		t.Fatalf("RecordDeposit: %v", err)
	}

	balance, err := s.Balance(ctx, x.ID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Cents != 7500 {
		t.Errorf("balance = %d, want 7500", balance.Cents)
	}
	if len(pub.published) != 2 {
		t.Errorf("published %d sync messages, want 2", len(pub.published))
	}
}

func TestRecordWithdrawal(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana")
	ctx := context.Background()

	if _, err := s.RecordDeposit(ctx, x.ID, core.Money{Cents: 1000}, ""); err != nil {
		t.Fatalf("RecordDeposit: %v", err)
	}

	// Exactly the balance is allowed.
	if _, err := s.RecordWithdrawal(ctx, x.ID, core.Money{Cents: 1000}, ""); err != nil {
		t.Fatalf("RecordWithdrawal of full balance: %v", err)
	}
	if _, err := s.RecordWithdrawal(ctx, x.ID, core.Money{Cents: 1}, ""); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Errorf("overdraw error = %v, want ErrInsufficientFunds", err)
	}
}

func TestRecordDepositRejectsNonPositive(t *testing.T) {
	s, _, pub := newService(t)
	x := createGroup(t, s, "Ana")

	if _, err := s.RecordDeposit(context.Background(), x.ID, core.Money{Cents: 0}, ""); !errors.Is(err, core.ErrAmountNotPositive) {
		t.Errorf("error = %v, want ErrAmountNotPositive", err)
	}
	if len(pub.published) != 0 {
		t.Error("no sync message should be published for a rejected deposit")
	}
}

func TestTogglePayout(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto")
	ctx := context.Background()
	pid := x.Participants[0].ID

	updated, err := s.TogglePayout(ctx, x.ID, pid, false)
	if err != nil {
		t.Fatalf("TogglePayout: %v", err)
	}
	if !updated.Participants[0].Received {
		t.Error("participant should be marked received")
	}

	// Pot is base times participant count.
	var payout *core.Transaction
	for i := range updated.Transactions {
		if updated.Transactions[i].Type == core.Payout {
			payout = &updated.Transactions[i]
		}
	}
	if payout == nil {
		t.Fatal("expected a payout transaction")
	}
	if payout.Amount.Cents != 10000 {
		t.Errorf("payout amount = %d, want 10000", payout.Amount.Cents)
	}
	if payout.ParticipantID != pid {
		t.Errorf("payout participant = %q, want %q", payout.ParticipantID, pid)
	}
	if payout.ReferenceID != "" {
		t.Errorf("payout reference = %q, want empty", payout.ReferenceID)
	}

	balance, _ := s.Balance(ctx, x.ID)
	if balance.Cents != -10000 {
		t.Errorf("balance after payout = %d, want -10000", balance.Cents)
	}
}

func TestTogglePayoutReversalRoundTrip(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto")
	ctx := context.Background()
	pid := x.Participants[0].ID

	if _, err := s.TogglePayout(ctx, x.ID, pid, false); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	updated, err := s.TogglePayout(ctx, x.ID, pid, false)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}

	if updated.Participants[0].Received {
		t.Error("participant should no longer be received")
	}

	var payoutID string
	var reversal *core.Transaction
	for i := range updated.Transactions {
		switch updated.Transactions[i].Type {
		case core.Payout:
			payoutID = updated.Transactions[i].ID
		case core.PayoutReversal:
			reversal = &updated.Transactions[i]
		}
	}
	if reversal == nil {
		t.Fatal("expected a payout_reversal transaction")
	}
	if reversal.ReferenceID != payoutID {
		t.Errorf("reversal reference = %q, want payout id %q", reversal.ReferenceID, payoutID)
	}
	if reversal.ParticipantID != pid {
		t.Errorf("reversal participant = %q, want %q", reversal.ParticipantID, pid)
	}

	balance, _ := s.Balance(ctx, x.ID)
	if balance.Cents != 0 {
		t.Errorf("balance after round trip = %d, want 0", balance.Cents)
	}
	if err := updated.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestTogglePayoutBlockedInEditMode(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana")

	if _, err := s.TogglePayout(context.Background(), x.ID, x.Participants[0].ID, true); !errors.Is(err, ErrEditModeActive) {
		t.Errorf("error = %v, want ErrEditModeActive", err)
	}
}

func TestTogglePayoutRejectedOnCompleted(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto")
	ctx := context.Background()

	for _, p := range x.Participants {
		if _, err := s.TogglePayout(ctx, x.ID, p.ID, false); err != nil {
			t.Fatalf("TogglePayout %s: %v", p.Name, err)
		}
	}

	got, err := s.Get(ctx, x.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != core.StatusCompleted {
		t.Fatalf("status = %v, want completed", got.Status)
	}

	if _, err := s.TogglePayout(ctx, x.ID, x.Participants[0].ID, false); !errors.Is(err, core.ErrXitiqueCompleted) {
		t.Errorf("error = %v, want ErrXitiqueCompleted", err)
	}
}

func TestTogglePayoutFailedSaveLeavesStateUnchanged(t *testing.T) {
	s, store, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto")
	ctx := context.Background()

	store.FailSaves = errors.New("disk full")
	if _, err := s.TogglePayout(ctx, x.ID, x.Participants[0].ID, false); err == nil {
		t.Fatal("expected save failure to surface")
	}
	store.FailSaves = nil

	got, err := s.Get(ctx, x.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Participants[0].Received {
		t.Error("received flag should not survive a failed save")
	}
	if len(got.Transactions) != 0 {
		t.Errorf("ledger has %d entries after failed save, want 0", len(got.Transactions))
	}
}

func TestWriteRefusedOnBrokenInvariants(t *testing.T) {
	s, store, pub := newService(t)
	x := createGroup(t, s, "Ana", "Berto")
	ctx := context.Background()

	// Corrupt the stored entity behind the service's back.
	broken, err := store.GetXitique(ctx, x.ID)
	if err != nil {
		t.Fatalf("GetXitique: %v", err)
	}
	broken.Participants[1].Position = 1
	if err := store.SaveXitique(ctx, broken); err != nil {
		t.Fatalf("SaveXitique: %v", err)
	}

	if _, err := s.RecordDeposit(ctx, x.ID, core.Money{Cents: 100}, ""); err == nil {
		t.Fatal("expected deposit on corrupted entity to be refused")
	}

	got, err := store.GetXitique(ctx, x.ID)
	if err != nil {
		t.Fatalf("GetXitique: %v", err)
	}
	if len(got.Transactions) != 0 {
		t.Errorf("ledger has %d entries after refused write, want 0", len(got.Transactions))
	}
	if len(pub.published) != 0 {
		t.Error("no sync message should be published for a refused write")
	}
}

func TestArchive(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana")
	ctx := context.Background()

	if err := s.Archive(ctx, x.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	got, err := s.Get(ctx, x.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != core.StatusArchived {
		t.Errorf("status = %v, want archived", got.Status)
	}

	active, err := s.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active list has %d circles, want 0", len(active))
	}

	if _, err := s.RecordDeposit(ctx, x.ID, core.Money{Cents: 100}, ""); !errors.Is(err, core.ErrXitiqueArchived) {
		t.Errorf("deposit on archived error = %v, want ErrXitiqueArchived", err)
	}
	if err := s.Archive(ctx, x.ID); !errors.Is(err, core.ErrXitiqueArchived) {
		t.Errorf("double archive error = %v, want ErrXitiqueArchived", err)
	}
}

func TestBulkEditReDerivesStatus(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto")
	ctx := context.Background()

	// New participants are pinned to the creation-time base, so raising the
	// base puts the circle at risk.
	raised := core.Money{Cents: 6000}
	updated, err := s.BulkEdit(ctx, x.ID, schedule.BulkEdit{BaseAmount: &raised})
	if err != nil {
		t.Fatalf("BulkEdit: %v", err)
	}
	if updated.Status != core.StatusRisk {
		t.Errorf("status = %v, want risk", updated.Status)
	}
}

func TestMoveParticipantLocked(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto", "Celia")
	ctx := context.Background()

	locked := schedule.LockedSet{x.Participants[0].ID: {}}
	if _, err := s.MoveParticipant(ctx, x.ID, x.Participants[0].ID, 3, locked); !errors.Is(err, schedule.ErrPositionLocked) {
		t.Errorf("error = %v, want ErrPositionLocked", err)
	}

	// Moving into an unlocked slot persists the new order.
	updated, err := s.MoveParticipant(ctx, x.ID, x.Participants[2].ID, 2, locked)
	if err != nil {
		t.Fatalf("MoveParticipant: %v", err)
	}
	if updated.Participants[indexByName(updated, "Celia")].Position != 2 {
		t.Error("Celia should hold position 2")
	}
	if updated.Participants[indexByName(updated, "Ana")].Position != 1 {
		t.Error("locked participant should keep position 1")
	}
	if err := updated.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestRemoveParticipantPersists(t *testing.T) {
	s, _, _ := newService(t)
	x := createGroup(t, s, "Ana", "Berto", "Celia")
	ctx := context.Background()

	updated, err := s.RemoveParticipant(ctx, x.ID, x.Participants[1].ID)
	if err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(updated.Participants))
	}
	if err := updated.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func indexByName(x *core.Xitique, name string) int {
	for i, p := range x.Participants {
		if p.Name == name {
			return i
		}
	}
	return -1
}
