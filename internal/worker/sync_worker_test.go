package worker

import (
	"context"
	"testing"

	"xitique/internal/amqp"
	"xitique/internal/core"
	sheetsmem "xitique/internal/sheets/memory"
	storagemem "xitique/internal/storage/memory"
)

func seedCircle(t *testing.T, store *storagemem.Store) (*core.Xitique, core.Transaction) {
	t.Helper()
	ctx := context.Background()

	x := &core.Xitique{
		Name:       "Familia",
		Kind:       core.KindGroup,
		BaseAmount: core.Money{Cents: 5000},
		Frequency:  core.Monthly,
		StartDate:  core.NewDate(2026, 1, 1),
		Participants: []core.Participant{
			{ID: "p1", Name: "Ana", Position: 1},
		},
	}
	if err := store.CreateXitique(ctx, x); err != nil {
		t.Fatalf("CreateXitique: %v", err)
	}

	tx, err := core.NewTransaction(core.Deposit, core.Money{Cents: 5000}, "january", "")
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	x.Transactions = append(x.Transactions, tx)
	if err := store.SaveXitique(ctx, x); err != nil {
		t.Fatalf("SaveXitique: %v", err)
	}
	return x, tx
}

func TestHandleSyncMessage(t *testing.T) {
	store := storagemem.New()
	writer := sheetsmem.New()
	w := NewSyncWorker(store, writer)

	x, tx := seedCircle(t, store)

	msg := amqp.NewLedgerSyncMessage(x.ID, tx.ID)
	if err := w.HandleSyncMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	entries := writer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 exported entry, got %d", len(entries))
	}
	if entries[0].XitiqueName != "Familia" {
		t.Errorf("XitiqueName = %q, want Familia", entries[0].XitiqueName)
	}
	if entries[0].Transaction.ID != tx.ID {
		t.Errorf("Transaction.ID = %q, want %q", entries[0].Transaction.ID, tx.ID)
	}
}

func TestHandleSyncMessage_UnknownTransaction(t *testing.T) {
	store := storagemem.New()
	w := NewSyncWorker(store, sheetsmem.New())

	msg := amqp.NewLedgerSyncMessage("x-1", "tx-missing")
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for unknown transaction")
	}
}

func TestHandleSyncMessage_MismatchedXitique(t *testing.T) {
	store := storagemem.New()
	w := NewSyncWorker(store, sheetsmem.New())

	_, tx := seedCircle(t, store)

	msg := amqp.NewLedgerSyncMessage("some-other-circle", tx.ID)
	if err := w.HandleSyncMessage(context.Background(), msg); err == nil {
		t.Fatal("expected error for mismatched xitique id")
	}
}

func TestExportBacklog(t *testing.T) {
	store := storagemem.New()
	writer := sheetsmem.New()
	w := NewSyncWorker(store, writer)

	seedCircle(t, store)
	seedCircle(t, store)

	if err := w.ExportBacklog(context.Background()); err != nil {
		t.Fatalf("ExportBacklog: %v", err)
	}
	if got := len(writer.Entries()); got != 2 {
		t.Errorf("exported %d entries, want 2", got)
	}
}

func TestExportBacklogSkipsFailingEntries(t *testing.T) {
	store := storagemem.New()
	writer := sheetsmem.New()
	w := NewSyncWorker(store, writer)

	ctx := context.Background()
	x, good := seedCircle(t, store)

	// A zero-amount entry the writer refuses; the scan must move past it.
	x.Transactions = append(x.Transactions, core.Transaction{ID: "bad", Type: core.Deposit})
	if err := store.SaveXitique(ctx, x); err != nil {
		t.Fatalf("SaveXitique: %v", err)
	}
	_, other := seedCircle(t, store)

	if err := w.ExportBacklog(ctx); err != nil {
		t.Fatalf("ExportBacklog: %v", err)
	}
	entries := writer.Entries()
	if len(entries) != 2 {
		t.Fatalf("exported %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Transaction.ID != good.ID && e.Transaction.ID != other.ID {
			t.Errorf("unexpected exported transaction %q", e.Transaction.ID)
		}
	}
}
