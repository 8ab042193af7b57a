// Package storage provides the persistence port and its SQLite implementation.
package storage

import (
	"context"
	"errors"

	"xitique/internal/core"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence port consumed by the service layer.
//
// Writes follow whole-entity upsert semantics: SaveXitique replaces the
// entity row and its participant collection wholesale in one transaction.
// The ledger is the exception — transactions are insert-only, and no method
// to update or delete one exists anywhere on this interface.
type Store interface {
	// CreateXitique persists a new entity, generating ID and CreatedAt when unset.
	CreateXitique(ctx context.Context, x *core.Xitique) error

	// GetXitique loads the full entity: participants and transaction log included.
	GetXitique(ctx context.Context, id string) (*core.Xitique, error)

	// ListXitiques returns all entities. Archived ones are excluded unless
	// includeArchived is set; they stay queryable for history either way.
	ListXitiques(ctx context.Context, includeArchived bool) ([]*core.Xitique, error)

	// SaveXitique upserts the entity row and participants atomically and
	// appends any transactions not yet present in the log.
	SaveXitique(ctx context.Context, x *core.Xitique) error

	// GetTransaction loads a single ledger entry.
	GetTransaction(ctx context.Context, id string) (*core.Transaction, string, error)

	// SaveNotifications inserts generated notifications, ignoring ids that
	// already exist so generation stays idempotent across processes.
	SaveNotifications(ctx context.Context, ns []core.Notification) error

	// ListNotifications returns notifications, optionally only unread ones.
	ListNotifications(ctx context.Context, unreadOnly bool) ([]core.Notification, error)

	// NotificationIDs returns the set of all known notification ids.
	NotificationIDs(ctx context.Context) (map[string]struct{}, error)

	// MarkNotificationRead flips the read flag.
	MarkNotificationRead(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}
