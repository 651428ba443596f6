package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"obligations/internal/core"
)

// SQLiteRepository is the SQLite persistence gateway.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ Store     = (*SQLiteRepository)(nil)
	_ Directory = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dataSourceName(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

// dataSourceName enables foreign keys, waits on locks instead of failing with
// SQLITE_BUSY and takes the write lock when a transaction begins.
func dataSourceName(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Templates() TemplateRepository     { return sqlTx{q: r.queries} }
func (r *SQLiteRepository) Occurrences() OccurrenceRepository { return sqlTx{q: r.queries} }
func (r *SQLiteRepository) Ledger() LedgerRepository          { return sqlTx{q: r.queries} }

// WithinTx runs fn in one SQL transaction and commits when it returns nil.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, sqlTx{q: r.queries.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetCategory implements Directory
func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	name, err := r.queries.getNamed(ctx, "categories", id)
	if err != nil {
		return core.Category{}, notFoundOr(err, "directory.category", "category", id)
	}
	return core.Category{ID: id, Name: name}, nil
}

// GetProject implements Directory
func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	name, err := r.queries.getNamed(ctx, "projects", id)
	if err != nil {
		return core.Project{}, notFoundOr(err, "directory.project", "project", id)
	}
	return core.Project{ID: id, Name: name}, nil
}

// GetSupplier implements Directory
func (r *SQLiteRepository) GetSupplier(ctx context.Context, id string) (core.Supplier, error) {
	name, err := r.queries.getNamed(ctx, "suppliers", id)
	if err != nil {
		return core.Supplier{}, notFoundOr(err, "directory.supplier", "supplier", id)
	}
	return core.Supplier{ID: id, Name: name}, nil
}

// SaveCategory, SaveProject and SaveSupplier seed the directory tables. The
// directory itself is owned by the hosting application.
func (r *SQLiteRepository) SaveCategory(ctx context.Context, c core.Category) error {
	return r.queries.upsertNamed(ctx, "categories", c.ID, c.Name)
}

func (r *SQLiteRepository) SaveProject(ctx context.Context, p core.Project) error {
	return r.queries.upsertNamed(ctx, "projects", p.ID, p.Name)
}

func (r *SQLiteRepository) SaveSupplier(ctx context.Context, s core.Supplier) error {
	return r.queries.upsertNamed(ctx, "suppliers", s.ID, s.Name)
}

// CountAttachments implements attachments.Counter over the ledger_attachments table.
func (r *SQLiteRepository) CountAttachments(ctx context.Context, ledgerEntryID string) (int, error) {
	n, err := r.queries.CountAttachments(ctx, ledgerEntryID)
	if err != nil {
		return 0, fmt.Errorf("count attachments: %w", err)
	}
	return int(n), nil
}

// AddAttachment records the metadata of a document stored by the hosting
// application at the given time.
func (r *SQLiteRepository) AddAttachment(ctx context.Context, ledgerEntryID, fileName string, at time.Time) (string, error) {
	id := uuid.NewString()
	if err := r.queries.InsertAttachment(ctx, id, ledgerEntryID, fileName, formatTime(at)); err != nil {
		return "", fmt.Errorf("insert attachment: %w", err)
	}
	slog.InfoContext(ctx, "Attachment recorded", "attachment_id", id, "ledger_entry_id", ledgerEntryID)
	return id, nil
}

// RemoveAttachment deletes a document of the given ledger entry. An id that
// belongs to another entry is reported as not found.
func (r *SQLiteRepository) RemoveAttachment(ctx context.Context, ledgerEntryID, id string) error {
	n, err := r.queries.DeleteAttachment(ctx, id, ledgerEntryID)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	if n == 0 {
		return core.NotFound("attachment.remove", "attachment", id)
	}
	return nil
}

// sqlTx binds the repository methods to either the pool or a transaction.
type sqlTx struct {
	q *Queries
}

func (t sqlTx) Templates() TemplateRepository     { return t }
func (t sqlTx) Occurrences() OccurrenceRepository { return t }
func (t sqlTx) Ledger() LedgerRepository          { return t }

func (t sqlTx) CreateTemplate(ctx context.Context, tpl core.Template) (core.Template, error) {
	if err := t.q.CreateTemplate(ctx, templateToRow(tpl)); err != nil {
		return core.Template{}, fmt.Errorf("create template: %w", err)
	}
	slog.InfoContext(ctx, "Template saved to SQLite",
		"template_id", tpl.ID,
		"description", tpl.Description,
		"day_of_month", tpl.DayOfMonth)
	return tpl, nil
}

func (t sqlTx) GetTemplate(ctx context.Context, id string) (core.Template, error) {
	row, err := t.q.GetTemplate(ctx, id)
	if err != nil {
		return core.Template{}, notFoundOr(err, "template.get", "template", id)
	}
	return rowToTemplate(row)
}

func (t sqlTx) UpdateTemplate(ctx context.Context, tpl core.Template) (core.Template, error) {
	n, err := t.q.UpdateTemplate(ctx, templateToRow(tpl))
	if err != nil {
		return core.Template{}, fmt.Errorf("update template: %w", err)
	}
	if n == 0 {
		return core.Template{}, core.NotFound("template.update", "template", tpl.ID)
	}
	return tpl, nil
}

func (t sqlTx) DeleteTemplate(ctx context.Context, id string) error {
	n, err := t.q.DeleteTemplate(ctx, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if n == 0 {
		return core.NotFound("template.delete", "template", id)
	}
	return nil
}

func (t sqlTx) ListTemplates(ctx context.Context, f core.TemplateFilter) ([]core.Template, error) {
	rows, err := t.q.ListTemplates(ctx, f.ActiveOnly, nullString(f.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]core.Template, 0, len(rows))
	for _, row := range rows {
		tpl, err := rowToTemplate(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

func (t sqlTx) InsertOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, error) {
	if err := t.q.InsertOccurrence(ctx, occurrenceToRow(o)); err != nil {
		if isUniqueViolation(err) {
			return core.Occurrence{}, core.Duplicate("occurrence.insert", o.TemplateID, o.Month)
		}
		return core.Occurrence{}, fmt.Errorf("insert occurrence: %w", err)
	}
	return o, nil
}

func (t sqlTx) GetOccurrence(ctx context.Context, id string) (core.Occurrence, error) {
	row, err := t.q.GetOccurrence(ctx, id)
	if err != nil {
		return core.Occurrence{}, notFoundOr(err, "occurrence.get", "occurrence", id)
	}
	return rowToOccurrence(row)
}

func (t sqlTx) FindOccurrence(ctx context.Context, templateID string, m core.Month) (core.Occurrence, bool, error) {
	row, err := t.q.FindOccurrence(ctx, templateID, m.Key())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Occurrence{}, false, nil
	}
	if err != nil {
		return core.Occurrence{}, false, fmt.Errorf("find occurrence: %w", err)
	}
	o, err := rowToOccurrence(row)
	return o, err == nil, err
}

func (t sqlTx) ListOccurrences(ctx context.Context, f OccurrenceFilter) ([]core.Occurrence, error) {
	rows, err := t.q.ListOccurrences(ctx, f.TemplateID, string(f.Status), f.OnlyLinked)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	out := make([]core.Occurrence, 0, len(rows))
	for _, row := range rows {
		o, err := rowToOccurrence(row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (t sqlTx) UpdateOccurrence(ctx context.Context, o core.Occurrence) (core.Occurrence, error) {
	n, err := t.q.UpdateOccurrence(ctx, occurrenceToRow(o))
	if err != nil {
		return core.Occurrence{}, fmt.Errorf("update occurrence: %w", err)
	}
	if n == 0 {
		return core.Occurrence{}, core.NotFound("occurrence.update", "occurrence", o.ID)
	}
	return o, nil
}

func (t sqlTx) InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if err := t.q.InsertLedgerEntry(ctx, ledgerToRow(e)); err != nil {
		if isUniqueViolation(err) {
			return core.LedgerEntry{}, ErrLedgerEntryExists
		}
		return core.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return e, nil
}

func (t sqlTx) GetLedgerEntry(ctx context.Context, id string) (core.LedgerEntry, error) {
	row, err := t.q.GetLedgerEntry(ctx, id)
	if err != nil {
		return core.LedgerEntry{}, notFoundOr(err, "ledger.get", "ledger entry", id)
	}
	return rowToLedger(row)
}

func (t sqlTx) FindLedgerEntryByOccurrence(ctx context.Context, occurrenceID string) (core.LedgerEntry, bool, error) {
	row, err := t.q.GetLedgerEntryByOccurrence(ctx, occurrenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, false, nil
	}
	if err != nil {
		return core.LedgerEntry{}, false, fmt.Errorf("find ledger entry: %w", err)
	}
	e, err := rowToLedger(row)
	return e, err == nil, err
}

func (t sqlTx) UpdateLedgerEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	n, err := t.q.UpdateLedgerEntry(ctx, ledgerToRow(e))
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("update ledger entry: %w", err)
	}
	if n == 0 {
		return core.LedgerEntry{}, core.NotFound("ledger.update", "ledger entry", e.ID)
	}
	return e, nil
}

func (t sqlTx) UpdateAttachmentCount(ctx context.Context, ledgerEntryID string, count int, updatedAt time.Time) error {
	n, err := t.q.UpdateAttachmentCount(ctx, ledgerEntryID, int64(count), formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("update attachment count: %w", err)
	}
	if n == 0 {
		return core.NotFound("ledger.update", "ledger entry", ledgerEntryID)
	}
	return nil
}

// isUniqueViolation reports a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}

func notFoundOr(err error, op, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(op, what, id)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func templateToRow(t core.Template) templateRow {
	return templateRow{
		ID:           t.ID,
		Description:  t.Description,
		Amount:       t.Amount.String(),
		Currency:     t.Currency,
		CategoryID:   t.CategoryID,
		ProjectID:    nullString(t.ProjectID),
		SupplierID:   nullString(t.SupplierID),
		DayOfMonth:   int64(t.DayOfMonth),
		IsActive:     t.IsActive,
		AutoGenerate: t.AutoGenerate,
		Notes:        t.Notes,
		CreatedAt:    formatTime(t.CreatedAt),
		UpdatedAt:    formatTime(t.UpdatedAt),
	}
}

func rowToTemplate(r templateRow) (core.Template, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.Template{}, core.Inconsistent("template.decode", "template %s has invalid amount %q", r.ID, r.Amount)
	}
	return core.Template{
		ID:           r.ID,
		Description:  r.Description,
		Amount:       amount,
		Currency:     r.Currency,
		CategoryID:   r.CategoryID,
		ProjectID:    stringPtr(r.ProjectID),
		SupplierID:   stringPtr(r.SupplierID),
		DayOfMonth:   int(r.DayOfMonth),
		IsActive:     r.IsActive,
		AutoGenerate: r.AutoGenerate,
		Notes:        r.Notes,
		CreatedAt:    parseTime(r.CreatedAt),
		UpdatedAt:    parseTime(r.UpdatedAt),
	}, nil
}

func occurrenceToRow(o core.Occurrence) occurrenceRow {
	row := occurrenceRow{
		ID:             o.ID,
		TemplateID:     o.TemplateID,
		Month:          o.Month.Key(),
		DueDate:        o.DueDate.String(),
		AmountExpected: o.AmountExpected.String(),
		Currency:       o.Currency,
		Status:         string(o.Status),
		LedgerEntryID:  nullString(o.LedgerEntryID),
		CreatedAt:      formatTime(o.CreatedAt),
		UpdatedAt:      formatTime(o.UpdatedAt),
	}
	if o.AmountActual != nil {
		row.AmountActual = sql.NullString{String: o.AmountActual.String(), Valid: true}
	}
	if o.PaidAt != nil {
		row.PaidAt = sql.NullString{String: formatTime(*o.PaidAt), Valid: true}
	}
	return row
}

func rowToOccurrence(r occurrenceRow) (core.Occurrence, error) {
	month, err := core.ParseMonth(r.Month)
	if err != nil {
		return core.Occurrence{}, core.Inconsistent("occurrence.decode", "occurrence %s has invalid month %q", r.ID, r.Month)
	}
	due, err := core.ParseDate(r.DueDate)
	if err != nil {
		return core.Occurrence{}, core.Inconsistent("occurrence.decode", "occurrence %s has invalid due date %q", r.ID, r.DueDate)
	}
	expected, err := decimal.NewFromString(r.AmountExpected)
	if err != nil {
		return core.Occurrence{}, core.Inconsistent("occurrence.decode", "occurrence %s has invalid amount %q", r.ID, r.AmountExpected)
	}
	o := core.Occurrence{
		ID:             r.ID,
		TemplateID:     r.TemplateID,
		Month:          month,
		DueDate:        due,
		AmountExpected: expected,
		Currency:       r.Currency,
		Status:         core.Status(r.Status),
		LedgerEntryID:  stringPtr(r.LedgerEntryID),
		CreatedAt:      parseTime(r.CreatedAt),
		UpdatedAt:      parseTime(r.UpdatedAt),
	}
	if r.AmountActual.Valid {
		actual, err := decimal.NewFromString(r.AmountActual.String)
		if err != nil {
			return core.Occurrence{}, core.Inconsistent("occurrence.decode", "occurrence %s has invalid actual amount %q", r.ID, r.AmountActual.String)
		}
		o.AmountActual = &actual
	}
	if r.PaidAt.Valid {
		paidAt := parseTime(r.PaidAt.String)
		o.PaidAt = &paidAt
	}
	return o, nil
}

func ledgerToRow(e core.LedgerEntry) ledgerRow {
	row := ledgerRow{
		ID:              e.ID,
		OccurrenceID:    e.OccurrenceID,
		Amount:          e.Amount.String(),
		Currency:        e.Currency,
		CategoryID:      e.CategoryID,
		ProjectID:       nullString(e.ProjectID),
		SupplierID:      nullString(e.SupplierID),
		Description:     e.Description,
		PaymentStatus:   string(e.PaymentStatus),
		AttachmentCount: int64(e.AttachmentCount),
		CreatedAt:       formatTime(e.CreatedAt),
		UpdatedAt:       formatTime(e.UpdatedAt),
	}
	if e.PaymentDate != nil {
		row.PaymentDate = sql.NullString{String: formatTime(*e.PaymentDate), Valid: true}
	}
	return row
}

func rowToLedger(r ledgerRow) (core.LedgerEntry, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return core.LedgerEntry{}, core.Inconsistent("ledger.decode", "ledger entry %s has invalid amount %q", r.ID, r.Amount)
	}
	e := core.LedgerEntry{
		ID:              r.ID,
		OccurrenceID:    r.OccurrenceID,
		Amount:          amount,
		Currency:        r.Currency,
		CategoryID:      r.CategoryID,
		ProjectID:       stringPtr(r.ProjectID),
		SupplierID:      stringPtr(r.SupplierID),
		Description:     r.Description,
		PaymentStatus:   core.PaymentStatus(r.PaymentStatus),
		AttachmentCount: int(r.AttachmentCount),
		CreatedAt:       parseTime(r.CreatedAt),
		UpdatedAt:       parseTime(r.UpdatedAt),
	}
	if r.PaymentDate.Valid {
		d := parseTime(r.PaymentDate.String)
		e.PaymentDate = &d
	}
	return e, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
