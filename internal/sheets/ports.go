package sheets

import (
	"context"

	"xitique/internal/core"
)

// LedgerEntry is one exported ledger row. The xitique name travels with the
// transaction because the export sheet is shared across circles.
type LedgerEntry struct {
	XitiqueID   string
	XitiqueName string
	Transaction core.Transaction
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		Append(ctx context.Context, e LedgerEntry) (rowRef string, err error)
	}
)
