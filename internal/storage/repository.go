package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"xitique/internal/core"
)

// Ensure SQLiteRepository implements Store
var _ Store = (*SQLiteRepository)(nil)

const dateFormat = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateXitique persists a new entity, generating id and creation time when unset.
func (r *SQLiteRepository) CreateXitique(ctx context.Context, x *core.Xitique) error {
	if x.ID == "" {
		x.ID = uuid.New().String()
	}
	if x.CreatedAt.IsZero() {
		x.CreatedAt = time.Now().UTC()
	}
	if x.Status == "" {
		x.Status = core.StatusPlanning
	}
	if err := r.SaveXitique(ctx, x); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Xitique created",
		"id", x.ID,
		"name", x.Name,
		"kind", x.Kind,
		"base_amount_cents", x.BaseAmount.Cents)
	return nil
}

// SaveXitique upserts the entity and its participants wholesale in one
// transaction and appends unseen ledger entries. Existing transaction rows
// are never touched.
func (r *SQLiteRepository) SaveXitique(ctx context.Context, x *core.Xitique) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO xitiques (id, name, kind, base_amount_cents, frequency, start_date, status, target_amount_cents, archived, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			base_amount_cents = excluded.base_amount_cents,
			frequency = excluded.frequency,
			start_date = excluded.start_date,
			status = excluded.status,
			target_amount_cents = excluded.target_amount_cents,
			archived = excluded.archived`,
		x.ID, x.Name, string(x.Kind), x.BaseAmount.Cents, string(x.Frequency),
		x.StartDate.Format(dateFormat), string(x.Status), x.TargetAmount.Cents,
		boolToInt(x.Archived), x.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert xitique: %w", err)
	}

	// Participants are replaced wholesale on every save.
	if _, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE xitique_id = ?", x.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	for i := range x.Participants {
		p := &x.Participants[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		var custom interface{}
		if p.CustomAmount != nil {
			custom = p.CustomAmount.Cents
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO participants (id, xitique_id, name, position, payout_date, date_overridden, received, custom_amount_cents)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, x.ID, p.Name, p.Position, p.PayoutDate.Format(dateFormat),
			boolToInt(p.DateOverridden), boolToInt(p.Received), custom,
		)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	// Ledger entries: insert-only, already-present ids are left untouched.
	for _, t := range x.Transactions {
		var ref, pid interface{}
		if t.ReferenceID != "" {
			ref = t.ReferenceID
		}
		if t.ParticipantID != "" {
			pid = t.ParticipantID
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (id, xitique_id, type, amount_cents, created_at, description, reference_id, participant_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, x.ID, string(t.Type), t.Amount.Cents, t.CreatedAt, t.Description, ref, pid,
		)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetXitique loads the full entity including participants and the ledger.
func (r *SQLiteRepository) GetXitique(ctx context.Context, id string) (*core.Xitique, error) {
	x := &core.Xitique{}
	var kind, frequency, status, startDate string
	var archived int
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, base_amount_cents, frequency, start_date, status, target_amount_cents, archived, created_at
		FROM xitiques WHERE id = ?`, id,
	).Scan(&x.ID, &x.Name, &kind, &x.BaseAmount.Cents, &frequency, &startDate,
		&status, &x.TargetAmount.Cents, &archived, &x.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get xitique: %w", err)
	}
	x.Kind = core.Kind(kind)
	x.Frequency = core.Frequency(frequency)
	x.Status = core.Status(status)
	x.Archived = archived != 0
	if x.StartDate, err = parseDate(startDate); err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}

	if err := r.loadParticipants(ctx, x); err != nil {
		return nil, err
	}
	if err := r.loadTransactions(ctx, x); err != nil {
		return nil, err
	}
	return x, nil
}

// ListXitiques returns all entities; archived ones only when asked for.
func (r *SQLiteRepository) ListXitiques(ctx context.Context, includeArchived bool) ([]*core.Xitique, error) {
	query := "SELECT id FROM xitiques"
	if !includeArchived {
		query += " WHERE archived = 0"
	}
	query += " ORDER BY created_at"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list xitiques: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan xitique id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate xitiques: %w", err)
	}

	out := make([]*core.Xitique, 0, len(ids))
	for _, id := range ids {
		x, err := r.GetXitique(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func (r *SQLiteRepository) loadParticipants(ctx context.Context, x *core.Xitique) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, position, payout_date, date_overridden, received, custom_amount_cents
		FROM participants WHERE xitique_id = ? ORDER BY position`, x.ID)
	if err != nil {
		return fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.Participant
		var payoutDate string
		var overridden, received int
		var custom sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &p.Position, &payoutDate, &overridden, &received, &custom); err != nil {
			return fmt.Errorf("scan participant: %w", err)
		}
		p.DateOverridden = overridden != 0
		p.Received = received != 0
		if custom.Valid {
			p.CustomAmount = &core.Money{Cents: custom.Int64}
		}
		if p.PayoutDate, err = parseDate(payoutDate); err != nil {
			return fmt.Errorf("parse payout date: %w", err)
		}
		x.Participants = append(x.Participants, p)
	}
	return rows.Err()
}

func (r *SQLiteRepository) loadTransactions(ctx context.Context, x *core.Xitique) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, amount_cents, created_at, description, reference_id, participant_id
		FROM transactions WHERE xitique_id = ? ORDER BY created_at`, x.ID)
	if err != nil {
		return fmt.Errorf("get transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t core.Transaction
		var typ string
		var ref, pid sql.NullString
		if err := rows.Scan(&t.ID, &typ, &t.Amount.Cents, &t.CreatedAt, &t.Description, &ref, &pid); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TransactionType(typ)
		t.ReferenceID = ref.String
		t.ParticipantID = pid.String
		x.Transactions = append(x.Transactions, t)
	}
	return rows.Err()
}

// GetTransaction loads one ledger entry and the id of the entity owning it.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (*core.Transaction, string, error) {
	var t core.Transaction
	var typ, xitiqueID string
	var ref, pid sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, xitique_id, type, amount_cents, created_at, description, reference_id, participant_id
		FROM transactions WHERE id = ?`, id,
	).Scan(&t.ID, &xitiqueID, &typ, &t.Amount.Cents, &t.CreatedAt, &t.Description, &ref, &pid)
	if err == sql.ErrNoRows {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("get transaction: %w", err)
	}
	t.Type = core.TransactionType(typ)
	t.ReferenceID = ref.String
	t.ParticipantID = pid.String
	return &t, xitiqueID, nil
}

// SaveNotifications inserts generated notifications; ids already present are
// skipped so repeated scans stay idempotent.
func (r *SQLiteRepository) SaveNotifications(ctx context.Context, ns []core.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, n := range ns {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO notifications (id, xitique_id, title, message, date, read, severity)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.XitiqueID, n.Title, n.Message, n.Date.Format(dateFormat),
			boolToInt(n.Read), string(n.Severity),
		)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Notifications saved", "count", len(ns))
	return nil
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, unreadOnly bool) ([]core.Notification, error) {
	query := `SELECT id, xitique_id, title, message, date, read, severity FROM notifications`
	if unreadOnly {
		query += " WHERE read = 0"
	}
	query += " ORDER BY date DESC, id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var n core.Notification
		var date, severity string
		var read int
		if err := rows.Scan(&n.ID, &n.XitiqueID, &n.Title, &n.Message, &date, &read, &severity); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Read = read != 0
		n.Severity = core.Severity(severity)
		if n.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse notification date: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) NotificationIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM notifications")
	if err != nil {
		return nil, fmt.Errorf("list notification ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notification id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: t}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
