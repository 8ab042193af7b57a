package worker

import (
	"context"
	"fmt"
	"log/slog"

	"xitique/internal/amqp"
	"xitique/internal/sheets"
	"xitique/internal/storage"
)

// SyncWorker exports appended ledger transactions to the configured sheet.
// It consumes identifiers from AMQP and reloads the row from storage, so a
// requeued message always exports the current state.
type SyncWorker struct {
	store  storage.Store
	writer sheets.LedgerWriter
}

func NewSyncWorker(store storage.Store, writer sheets.LedgerWriter) *SyncWorker {
	return &SyncWorker{
		store:  store,
		writer: writer,
	}
}

// HandleSyncMessage processes a single ledger sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"xitique_id", msg.XitiqueID,
		"transaction_id", msg.TransactionID)

	tx, xitiqueID, err := w.store.GetTransaction(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if xitiqueID != msg.XitiqueID {
		return fmt.Errorf("transaction %s belongs to xitique %s, message says %s",
			msg.TransactionID, xitiqueID, msg.XitiqueID)
	}

	x, err := w.store.GetXitique(ctx, xitiqueID)
	if err != nil {
		return fmt.Errorf("get xitique from storage: %w", err)
	}

	entry := sheets.LedgerEntry{
		XitiqueID:   x.ID,
		XitiqueName: x.Name,
		Transaction: *tx,
	}

	ref, err := w.writer.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Exported ledger transaction",
		"transaction_id", tx.ID,
		"xitique", x.Name,
		"sheets_ref", ref,
		"amount_cents", tx.Amount.Cents)

	return nil
}

// ExportBacklog re-exports every transaction of every circle. Used at startup
// to recover from missed messages; the sheet side tolerates duplicate IDs.
func (w *SyncWorker) ExportBacklog(ctx context.Context) error {
	xitiques, err := w.store.ListXitiques(ctx, true)
	if err != nil {
		return fmt.Errorf("list xitiques: %w", err)
	}

	exported := 0
	for _, x := range xitiques {
		for _, t := range x.Transactions {
			entry := sheets.LedgerEntry{
				XitiqueID:   x.ID,
				XitiqueName: x.Name,
				Transaction: t,
			}
			if _, err := w.writer.Append(ctx, entry); err != nil {
				slog.ErrorContext(ctx, "Failed to export transaction",
					"transaction_id", t.ID,
					"error", err)
				continue
			}
			exported++
		}
	}

	slog.InfoContext(ctx, "Backlog export completed", "exported", exported)
	return nil
}
