package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/slotgrid/slotgrid/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// SlotRepository implements domain.SlotRepository and domain.HistoryRecorder
// using SQLite. Conditional updates rely on the driver's rows-affected
// reporting; no other locking is used.
type SlotRepository struct {
	db *sql.DB
}

// Compile-time checks against the domain ports.
var (
	_ domain.SlotRepository  = (*SlotRepository)(nil)
	_ domain.HistoryRecorder = (*SlotRepository)(nil)
)

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*SlotRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and
// returns a ready repository. Use this when the *sql.DB has been
// pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*SlotRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &SlotRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SlotRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (r *SlotRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

const slotColumns = `s.id, s.account_id, a.label, s.position, s.display_name, s.credential, s.state,
	 s.customer_id, s.assigned_by, s.assigned_at, s.activates_at, s.expires_at,
	 s.note, s.plan_tag, s.has_addon, s.created_at, s.updated_at`

const slotJoin = ` FROM slots s JOIN accounts a ON a.id = s.account_id`

func (r *SlotRepository) GetByID(ctx context.Context, id string) (domain.Slot, error) {
	slot, err := r.scanSlot(r.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+slotJoin+` WHERE s.id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Slot{}, domain.ErrSlotNotFound
		}
		return domain.Slot{}, r.wrap("getting slot", err)
	}
	return slot, nil
}

func (r *SlotRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Slot, error) {
	query := `SELECT ` + slotColumns + slotJoin
	var conditions []string
	var args []any

	if filter.State != nil {
		conditions = append(conditions, `s.state = ?`)
		args = append(args, string(*filter.State))
	}
	if filter.CustomerID != "" {
		conditions = append(conditions, `s.customer_id = ?`)
		args = append(args, filter.CustomerID)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}

	query += ` ORDER BY a.label, s.position`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return r.querySlots(ctx, "listing slots", query, args...)
}

func (r *SlotRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Slot, error) {
	return r.querySlots(ctx, "listing customer slots",
		`SELECT `+slotColumns+slotJoin+` WHERE s.customer_id = ? ORDER BY a.label, s.position`,
		customerID,
	)
}

// FreeSlots returns slots eligible for assignment. The stored order is stable
// but lexicographic on label; the domain layer applies the numeric candidate
// order on top.
func (r *SlotRepository) FreeSlots(ctx context.Context) ([]domain.Slot, error) {
	return r.querySlots(ctx, "listing free slots",
		`SELECT `+slotColumns+slotJoin+
			` WHERE s.state IN (?, ?) AND s.customer_id IS NULL ORDER BY a.label, s.position`,
		string(domain.StateFree), string(domain.StateReclaimed),
	)
}

func (r *SlotRepository) CountFree(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM slots WHERE state IN (?, ?) AND customer_id IS NULL`,
		string(domain.StateFree), string(domain.StateReclaimed),
	).Scan(&count)
	if err != nil {
		return 0, r.wrap("counting free slots", err)
	}
	return count, nil
}

// Reserve is the single correctness-bearing write: it assigns the slot only
// if it is still eligible, in one atomic statement, and reports whether the
// row was taken.
func (r *SlotRepository) Reserve(ctx context.Context, slotID string, a domain.Assignment) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE slots
		 SET state = ?, customer_id = ?, credential = ?, assigned_by = ?, assigned_at = ?,
		     activates_at = ?, expires_at = ?, note = ?, plan_tag = ?, has_addon = ?, updated_at = ?
		 WHERE id = ? AND state IN (?, ?) AND customer_id IS NULL`,
		string(domain.StateAssigned), a.CustomerID, a.Credential,
		nullable(a.AssignedBy), a.AssignedAt.UTC().Format(timeFormat),
		nullable(a.ActivatesAt), nullable(a.ExpiresAt), nullable(a.Note), nullable(a.PlanTag),
		boolToInt(a.HasAddOn), time.Now().UTC().Format(timeFormat),
		slotID, string(domain.StateFree), string(domain.StateReclaimed),
	)
	if err != nil {
		return false, r.wrap("reserving slot", err)
	}
	return oneRowAffected(result)
}

// Release reclaims the slot if the customer still holds it, scrubbing the
// assignment metadata and writing the rotated credential.
func (r *SlotRepository) Release(ctx context.Context, slotID, customerID, credential string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE slots
		 SET state = ?, customer_id = NULL, credential = ?, assigned_by = NULL, assigned_at = NULL,
		     activates_at = NULL, expires_at = NULL, note = NULL, plan_tag = NULL, has_addon = 0,
		     updated_at = ?
		 WHERE id = ? AND customer_id = ?`,
		string(domain.StateReclaimed), credential, time.Now().UTC().Format(timeFormat),
		slotID, customerID,
	)
	if err != nil {
		return false, r.wrap("releasing slot", err)
	}
	return oneRowAffected(result)
}

func (r *SlotRepository) UpdateState(ctx context.Context, slotID string, from, to domain.State) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE slots SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(to), time.Now().UTC().Format(timeFormat), slotID, string(from),
	)
	if err != nil {
		return false, r.wrap("updating slot state", err)
	}
	return oneRowAffected(result)
}

func (r *SlotRepository) AccountLabels(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT label FROM accounts`)
	if err != nil {
		return nil, r.wrap("listing account labels", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scanning account label: %w", err)
		}
		labels = append(labels, label)
	}

	return labels, rows.Err()
}

// CreateAccountBatch inserts the account and its slots in one transaction so
// a partially-created batch can never be observed.
func (r *SlotRepository) CreateAccountBatch(ctx context.Context, account domain.Account, slots []domain.Slot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.wrap("beginning batch transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (id, label, created_at) VALUES (?, ?, ?)`,
		account.ID, account.Label, account.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.LabelConflictError{Label: account.Label}
		}
		return r.wrap("inserting account", err)
	}

	for _, s := range slots {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO slots (id, account_id, position, display_name, credential, state,
			                    has_addon, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			s.ID, account.ID, s.Position, s.DisplayName, s.Credential, string(s.State),
			s.CreatedAt.Format(timeFormat), s.UpdatedAt.Format(timeFormat),
		)
		if err != nil {
			return r.wrap("inserting slot", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return r.wrap("committing batch", err)
	}
	return nil
}

// Append writes one history entry. Callers treat failures as non-fatal.
func (r *SlotRepository) Append(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO slot_history (id, slot_id, action, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.SlotID, string(entry.Action), entry.Metadata,
		entry.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return r.wrap("appending history", err)
	}
	return nil
}

// HistoryForSlot returns the audit log of a slot, oldest first. Console use
// only; the allocator never reads history.
func (r *SlotRepository) HistoryForSlot(ctx context.Context, slotID string) ([]domain.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slot_id, action, metadata, created_at
		 FROM slot_history WHERE slot_id = ? ORDER BY created_at, id`, slotID,
	)
	if err != nil {
		return nil, r.wrap("listing slot history", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var action, createdAt string
		if err := rows.Scan(&e.ID, &e.SlotID, &action, &e.Metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		e.Action = domain.Action(action)
		e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *SlotRepository) querySlots(ctx context.Context, op, query string, args ...any) ([]domain.Slot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.wrap(op, err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		slots = append(slots, s)
	}

	return slots, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SlotRepository) scanSlot(row rowScanner) (domain.Slot, error) {
	var s domain.Slot
	var state, createdAt, updatedAt string
	var customerID, assignedBy, assignedAt, activatesAt, expiresAt, note, planTag sql.NullString
	var hasAddOn int

	err := row.Scan(
		&s.ID, &s.AccountID, &s.AccountLabel, &s.Position, &s.DisplayName, &s.Credential, &state,
		&customerID, &assignedBy, &assignedAt, &activatesAt, &expiresAt,
		&note, &planTag, &hasAddOn, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Slot{}, err
	}

	s.State = domain.State(state)
	s.CustomerID = customerID.String
	s.AssignedBy = assignedBy.String
	if assignedAt.Valid {
		s.AssignedAt, _ = time.Parse(timeFormat, assignedAt.String)
	}
	s.ActivatesAt = activatesAt.String
	s.ExpiresAt = expiresAt.String
	s.Note = note.String
	s.PlanTag = planTag.String
	s.HasAddOn = hasAddOn != 0
	s.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	s.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return s, nil
}

// wrap maps store errors to domain conditions: a missing table means the pool
// schema is absent, which callers must distinguish from an empty pool.
func (r *SlotRepository) wrap(op string, err error) error {
	if isMissingSchema(err) {
		return fmt.Errorf("%s: %w", op, domain.ErrPoolUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func oneRowAffected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows == 1, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isMissingSchema checks if a SQLite error means the table does not exist.
func isMissingSchema(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
