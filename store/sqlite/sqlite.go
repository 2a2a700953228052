/*
Package sqlite provides a SQLite-backed implementation of finance.Store.

PURPOSE:
  Persists the deal read model, installment schedules, commission
  records, and deal-closure markers. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  deals:         Read model mirrored from the CRM
  deal_closures: One row per closed deal; the primary key makes
                 closure edge-triggered at the database level
  installments:  The generated payment schedule rows
  commissions:   Commission records with their status lifecycle

AMOUNT STORAGE:
  Monetary columns are TEXT holding decimal strings. Parsing back
  through shopspring/decimal keeps the sum-equals-deal-value invariant
  exact; REAL columns would reintroduce float drift.

CHECK-THEN-SET:
  SwapCommission issues UPDATE ... WHERE id = ? AND status = ? and
  inspects RowsAffected. Zero rows with an existing id means a
  concurrent transition won; the caller gets ErrInvalidState and the
  record is unchanged.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/finance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - finance/store.go: Interface definitions
  - finance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expocrm/finance-engine/finance"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Store implements finance.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Compile-time check.
var _ finance.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Deal read model (mirrored from the CRM)
	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		value TEXT NOT NULL,
		stage TEXT NOT NULL,
		client_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One row per closed deal. The PRIMARY KEY makes a second closure
	-- of the same deal a constraint violation (edge-triggering).
	CREATE TABLE IF NOT EXISTS deal_closures (
		deal_id TEXT PRIMARY KEY,
		closed_at TEXT NOT NULL
	);

	-- Installment schedule rows
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_date TEXT,
		kind TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		total INTEGER NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		payment_reference TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		amount_paid TEXT NOT NULL DEFAULT '0',
		commission_triggered BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE(deal_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_installments_deal
		ON installments(deal_id);
	CREATE INDEX IF NOT EXISTS idx_installments_status
		ON installments(status);
	CREATE INDEX IF NOT EXISTS idx_installments_due_date
		ON installments(due_date);

	-- Commission records
	CREATE TABLE IF NOT EXISTS commissions (
		id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL,
		beneficiary_id TEXT NOT NULL,
		beneficiary_name TEXT NOT NULL,
		role TEXT NOT NULL,
		percent TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		trigger_event TEXT NOT NULL,
		created_at TEXT NOT NULL,
		approved_at TEXT,
		paid_at TEXT,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_commissions_deal
		ON commissions(deal_id);
	CREATE INDEX IF NOT EXISTS idx_commissions_status
		ON commissions(status);
	CREATE INDEX IF NOT EXISTS idx_commissions_trigger
		ON commissions(trigger_event);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DEALS
// =============================================================================

// execer covers both *sql.DB and *sql.Tx so the deal upsert can run
// standalone or inside the closure transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) SaveDeal(ctx context.Context, deal finance.Deal) error {
	return upsertDeal(ctx, s.db, deal)
}

func upsertDeal(ctx context.Context, db execer, deal finance.Deal) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO deals (id, title, value, stage, client_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			value = excluded.value,
			stage = excluded.stage,
			client_id = excluded.client_id,
			updated_at = excluded.updated_at`,
		string(deal.ID), deal.Title, deal.Value.String(), string(deal.Stage),
		string(deal.ClientID), deal.CreatedAt.UTC().Format(time.RFC3339),
		deal.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save deal %s: %w", deal.ID, err)
	}
	return nil
}

func (s *Store) GetDeal(ctx context.Context, id finance.DealID) (*finance.Deal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, value, stage, client_id, created_at, updated_at
		FROM deals WHERE id = ?`, string(id))

	var (
		deal                 finance.Deal
		value                string
		createdAt, updatedAt string
	)
	err := row.Scan(&deal.ID, &deal.Title, &value, &deal.Stage, &deal.ClientID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deal %s: %w", id, finance.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get deal %s: %w", id, err)
	}

	deal.Value, err = parseMoney(value)
	if err != nil {
		return nil, fmt.Errorf("deal %s value: %w", id, err)
	}
	deal.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	deal.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &deal, nil
}

func (s *Store) IsDealClosed(ctx context.Context, id finance.DealID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM deal_closures WHERE deal_id = ?`, string(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check closure %s: %w", id, err)
	}
	return n > 0, nil
}

// SaveClosure writes the deal, the closure marker, and both batches in one
// database transaction. The deal_closures primary key rejects a replay
// before any row lands.
func (s *Store) SaveClosure(ctx context.Context, deal finance.Deal, installments []finance.PaymentInstallment, commissions []finance.CommissionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin closure tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO deal_closures (deal_id, closed_at) VALUES (?, ?)`,
		string(deal.ID), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("deal %s: %w", deal.ID, finance.ErrAlreadyClosed)
		}
		return fmt.Errorf("record closure %s: %w", deal.ID, err)
	}

	if err := upsertDeal(ctx, tx, deal); err != nil {
		return err
	}

	for _, ins := range installments {
		if err := insertInstallment(ctx, tx, ins); err != nil {
			return err
		}
	}
	for _, c := range commissions {
		if err := insertCommission(ctx, tx, c); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// INSTALLMENTS
// =============================================================================

func insertInstallment(ctx context.Context, tx *sql.Tx, ins finance.PaymentInstallment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO installments
			(id, deal_id, client_id, amount, due_date, status, paid_date, kind,
			 sequence, total, payment_method, payment_reference, notes,
			 amount_paid, commission_triggered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ins.ID), string(ins.DealID), string(ins.ClientID),
		ins.Amount.String(), ins.DueDate.String(), string(ins.Status),
		nullableDate(ins.PaidDate), string(ins.Kind), ins.Sequence, ins.Total,
		ins.PaymentMethod, ins.PaymentReference, ins.Notes,
		ins.AmountPaid.String(), ins.CommissionTriggered,
	)
	if err != nil {
		return fmt.Errorf("insert installment %s: %w", ins.ID, err)
	}
	return nil
}

const installmentColumns = `
	id, deal_id, client_id, amount, due_date, status, paid_date, kind,
	sequence, total, payment_method, payment_reference, notes,
	amount_paid, commission_triggered`

func (s *Store) GetInstallment(ctx context.Context, id finance.InstallmentID) (*finance.PaymentInstallment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE id = ?`, string(id))
	ins, err := scanInstallment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("installment %s: %w", id, finance.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return ins, nil
}

func (s *Store) ListInstallments(ctx context.Context, filter finance.InstallmentFilter) ([]finance.PaymentInstallment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments`
	var (
		clauses []string
		args    []any
	)
	if filter.DealID != nil {
		clauses = append(clauses, "deal_id = ?")
		args = append(args, string(*filter.DealID))
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY deal_id, sequence"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var result []finance.PaymentInstallment
	for rows.Next() {
		ins, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ins)
	}
	return result, rows.Err()
}

func (s *Store) UpdateInstallment(ctx context.Context, ins finance.PaymentInstallment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE installments SET
			status = ?, paid_date = ?, payment_method = ?,
			payment_reference = ?, notes = ?, amount_paid = ?
		WHERE id = ?`,
		string(ins.Status), nullableDate(ins.PaidDate), ins.PaymentMethod,
		ins.PaymentReference, ins.Notes, ins.AmountPaid.String(), string(ins.ID),
	)
	if err != nil {
		return fmt.Errorf("update installment %s: %w", ins.ID, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("installment %s: %w", ins.ID, finance.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstallment(row rowScanner) (*finance.PaymentInstallment, error) {
	var (
		ins             finance.PaymentInstallment
		amount, paidAmt string
		dueDate         string
		paidDate        sql.NullString
	)
	err := row.Scan(&ins.ID, &ins.DealID, &ins.ClientID, &amount, &dueDate,
		&ins.Status, &paidDate, &ins.Kind, &ins.Sequence, &ins.Total,
		&ins.PaymentMethod, &ins.PaymentReference, &ins.Notes,
		&paidAmt, &ins.CommissionTriggered)
	if err != nil {
		return nil, err
	}

	if ins.Amount, err = parseMoney(amount); err != nil {
		return nil, fmt.Errorf("installment %s amount: %w", ins.ID, err)
	}
	if ins.AmountPaid, err = parseMoney(paidAmt); err != nil {
		return nil, fmt.Errorf("installment %s amount_paid: %w", ins.ID, err)
	}
	if ins.DueDate, err = finance.ParseDate(dueDate); err != nil {
		return nil, err
	}
	if paidDate.Valid {
		d, err := finance.ParseDate(paidDate.String)
		if err != nil {
			return nil, err
		}
		ins.PaidDate = &d
	}
	return &ins, nil
}

// =============================================================================
// COMMISSIONS
// =============================================================================

func insertCommission(ctx context.Context, tx *sql.Tx, c finance.CommissionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO commissions
			(id, deal_id, beneficiary_id, beneficiary_name, role, percent,
			 amount, status, trigger_event, created_at, approved_at, paid_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), string(c.DealID), string(c.BeneficiaryID),
		c.BeneficiaryName, c.Role, c.Percent.String(), c.Amount.String(),
		string(c.Status), string(c.Trigger),
		c.CreatedAt.UTC().Format(time.RFC3339),
		nullableTime(c.ApprovedAt), nullableTime(c.PaidAt), c.Notes,
	)
	if err != nil {
		return fmt.Errorf("insert commission %s: %w", c.ID, err)
	}
	return nil
}

const commissionColumns = `
	id, deal_id, beneficiary_id, beneficiary_name, role, percent,
	amount, status, trigger_event, created_at, approved_at, paid_at, notes`

func (s *Store) GetCommission(ctx context.Context, id finance.CommissionID) (*finance.CommissionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+commissionColumns+` FROM commissions WHERE id = ?`, string(id))
	c, err := scanCommission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("commission %s: %w", id, finance.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCommissions(ctx context.Context, filter finance.CommissionFilter) ([]finance.CommissionRecord, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions`
	var (
		clauses []string
		args    []any
	)
	if filter.DealID != nil {
		clauses = append(clauses, "deal_id = ?")
		args = append(args, string(*filter.DealID))
	}
	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Trigger != nil {
		clauses = append(clauses, "trigger_event = ?")
		args = append(args, string(*filter.Trigger))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	var result []finance.CommissionRecord
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

// SwapCommission performs the optimistic check-then-set: the UPDATE is
// guarded by the expected status, and zero affected rows on an existing id
// means a concurrent transition got there first.
func (s *Store) SwapCommission(ctx context.Context, expect finance.CommissionStatus, c finance.CommissionRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE commissions SET
			status = ?, approved_at = ?, paid_at = ?, notes = ?
		WHERE id = ? AND status = ?`,
		string(c.Status), nullableTime(c.ApprovedAt), nullableTime(c.PaidAt),
		c.Notes, string(c.ID), string(expect),
	)
	if err != nil {
		return fmt.Errorf("swap commission %s: %w", c.ID, err)
	}

	affected, _ := res.RowsAffected()
	if affected == 1 {
		return nil
	}

	// Distinguish "gone" from "raced".
	current, err := s.GetCommission(ctx, c.ID)
	if err != nil {
		return err
	}
	return &finance.InvalidTransitionError{CommissionID: c.ID, From: current.Status, To: c.Status}
}

func scanCommission(row rowScanner) (*finance.CommissionRecord, error) {
	var (
		c                  finance.CommissionRecord
		percent, amount    string
		createdAt          string
		approvedAt, paidAt sql.NullString
	)
	err := row.Scan(&c.ID, &c.DealID, &c.BeneficiaryID, &c.BeneficiaryName,
		&c.Role, &percent, &amount, &c.Status, &c.Trigger, &createdAt,
		&approvedAt, &paidAt, &c.Notes)
	if err != nil {
		return nil, err
	}

	if c.Percent, err = decimal.NewFromString(percent); err != nil {
		return nil, fmt.Errorf("commission %s percent: %w", c.ID, err)
	}
	if c.Amount, err = parseMoney(amount); err != nil {
		return nil, fmt.Errorf("commission %s amount: %w", c.ID, err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if approvedAt.Valid {
		t, _ := time.Parse(time.RFC3339, approvedAt.String)
		c.ApprovedAt = &t
	}
	if paidAt.Valid {
		t, _ := time.Parse(time.RFC3339, paidAt.String)
		c.PaidAt = &t
	}
	return &c, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseMoney(s string) (finance.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return finance.ZeroMoney(), err
	}
	return finance.Money{Value: d}, nil
}

func nullableDate(d *finance.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
