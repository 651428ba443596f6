package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type templateRow struct {
	ID           string
	Description  string
	Amount       string
	Currency     string
	CategoryID   string
	ProjectID    sql.NullString
	SupplierID   sql.NullString
	DayOfMonth   int64
	IsActive     bool
	AutoGenerate bool
	Notes        string
	CreatedAt    string
	UpdatedAt    string
}

type occurrenceRow struct {
	ID             string
	TemplateID     string
	Month          string
	DueDate        string
	AmountExpected string
	AmountActual   sql.NullString
	Currency       string
	Status         string
	LedgerEntryID  sql.NullString
	PaidAt         sql.NullString
	CreatedAt      string
	UpdatedAt      string
}

type ledgerRow struct {
	ID              string
	OccurrenceID    string
	Amount          string
	Currency        string
	CategoryID      string
	ProjectID       sql.NullString
	SupplierID      sql.NullString
	Description     string
	PaymentStatus   string
	PaymentDate     sql.NullString
	AttachmentCount int64
	CreatedAt       string
	UpdatedAt       string
}

const templateColumns = `id, description, amount, currency, category_id, project_id, supplier_id,
	day_of_month, is_active, auto_generate, notes, created_at, updated_at`

const createTemplate = `INSERT INTO recurring_templates (` + templateColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTemplate(ctx context.Context, r templateRow) error {
	_, err := q.db.ExecContext(ctx, createTemplate,
		r.ID, r.Description, r.Amount, r.Currency, r.CategoryID, r.ProjectID, r.SupplierID,
		r.DayOfMonth, r.IsActive, r.AutoGenerate, r.Notes, r.CreatedAt, r.UpdatedAt)
	return err
}

const getTemplate = `SELECT ` + templateColumns + ` FROM recurring_templates WHERE id = ?`

func (q *Queries) GetTemplate(ctx context.Context, id string) (templateRow, error) {
	return scanTemplate(q.db.QueryRowContext(ctx, getTemplate, id))
}

const updateTemplate = `UPDATE recurring_templates
SET description = ?, amount = ?, currency = ?, category_id = ?, project_id = ?, supplier_id = ?,
	day_of_month = ?, is_active = ?, auto_generate = ?, notes = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateTemplate(ctx context.Context, r templateRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTemplate,
		r.Description, r.Amount, r.Currency, r.CategoryID, r.ProjectID, r.SupplierID,
		r.DayOfMonth, r.IsActive, r.AutoGenerate, r.Notes, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTemplate = `DELETE FROM recurring_templates WHERE id = ?`

func (q *Queries) DeleteTemplate(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTemplate, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listTemplates = `SELECT ` + templateColumns + ` FROM recurring_templates
WHERE (? = 0 OR is_active = 1)
  AND (? IS NULL OR project_id = ?)
ORDER BY day_of_month, description`

func (q *Queries) ListTemplates(ctx context.Context, activeOnly bool, projectID sql.NullString) ([]templateRow, error) {
	rows, err := q.db.QueryContext(ctx, listTemplates, activeOnly, projectID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []templateRow
	for rows.Next() {
		r, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const occurrenceColumns = `id, template_id, month, due_date, amount_expected, amount_actual, currency,
	status, ledger_entry_id, paid_at, created_at, updated_at`

const insertOccurrence = `INSERT INTO recurring_occurrences (` + occurrenceColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertOccurrence(ctx context.Context, r occurrenceRow) error {
	_, err := q.db.ExecContext(ctx, insertOccurrence,
		r.ID, r.TemplateID, r.Month, r.DueDate, r.AmountExpected, r.AmountActual, r.Currency,
		r.Status, r.LedgerEntryID, r.PaidAt, r.CreatedAt, r.UpdatedAt)
	return err
}

const getOccurrence = `SELECT ` + occurrenceColumns + ` FROM recurring_occurrences WHERE id = ?`

func (q *Queries) GetOccurrence(ctx context.Context, id string) (occurrenceRow, error) {
	return scanOccurrence(q.db.QueryRowContext(ctx, getOccurrence, id))
}

const findOccurrence = `SELECT ` + occurrenceColumns + ` FROM recurring_occurrences
WHERE template_id = ? AND month = ?`

func (q *Queries) FindOccurrence(ctx context.Context, templateID, month string) (occurrenceRow, error) {
	return scanOccurrence(q.db.QueryRowContext(ctx, findOccurrence, templateID, month))
}

const listOccurrences = `SELECT ` + occurrenceColumns + ` FROM recurring_occurrences
WHERE (? = '' OR template_id = ?)
  AND (? = '' OR status = ?)
  AND (? = 0 OR ledger_entry_id IS NOT NULL)
ORDER BY month DESC, due_date, id`

func (q *Queries) ListOccurrences(ctx context.Context, templateID, status string, onlyLinked bool) ([]occurrenceRow, error) {
	rows, err := q.db.QueryContext(ctx, listOccurrences, templateID, templateID, status, status, onlyLinked)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []occurrenceRow
	for rows.Next() {
		r, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateOccurrence = `UPDATE recurring_occurrences
SET amount_actual = ?, status = ?, ledger_entry_id = ?, paid_at = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateOccurrence(ctx context.Context, r occurrenceRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateOccurrence,
		r.AmountActual, r.Status, r.LedgerEntryID, r.PaidAt, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const ledgerColumns = `id, occurrence_id, amount, currency, category_id, project_id, supplier_id,
	description, payment_status, payment_date, attachment_count, created_at, updated_at`

const insertLedgerEntry = `INSERT INTO ledger_entries (` + ledgerColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertLedgerEntry(ctx context.Context, r ledgerRow) error {
	_, err := q.db.ExecContext(ctx, insertLedgerEntry,
		r.ID, r.OccurrenceID, r.Amount, r.Currency, r.CategoryID, r.ProjectID, r.SupplierID,
		r.Description, r.PaymentStatus, r.PaymentDate, r.AttachmentCount, r.CreatedAt, r.UpdatedAt)
	return err
}

const getLedgerEntry = `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = ?`

func (q *Queries) GetLedgerEntry(ctx context.Context, id string) (ledgerRow, error) {
	return scanLedger(q.db.QueryRowContext(ctx, getLedgerEntry, id))
}

const getLedgerEntryByOccurrence = `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE occurrence_id = ?`

func (q *Queries) GetLedgerEntryByOccurrence(ctx context.Context, occurrenceID string) (ledgerRow, error) {
	return scanLedger(q.db.QueryRowContext(ctx, getLedgerEntryByOccurrence, occurrenceID))
}

const updateLedgerEntry = `UPDATE ledger_entries
SET amount = ?, payment_status = ?, payment_date = ?, attachment_count = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateLedgerEntry(ctx context.Context, r ledgerRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateLedgerEntry,
		r.Amount, r.PaymentStatus, r.PaymentDate, r.AttachmentCount, r.UpdatedAt, r.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateAttachmentCount = `UPDATE ledger_entries SET attachment_count = ?, updated_at = ? WHERE id = ?`

func (q *Queries) UpdateAttachmentCount(ctx context.Context, id string, count int64, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateAttachmentCount, count, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countAttachments = `SELECT COUNT(*) FROM ledger_attachments WHERE ledger_entry_id = ?`

func (q *Queries) CountAttachments(ctx context.Context, ledgerEntryID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAttachments, ledgerEntryID).Scan(&n)
	return n, err
}

const insertAttachment = `INSERT INTO ledger_attachments (id, ledger_entry_id, file_name, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertAttachment(ctx context.Context, id, ledgerEntryID, fileName, createdAt string) error {
	_, err := q.db.ExecContext(ctx, insertAttachment, id, ledgerEntryID, fileName, createdAt)
	return err
}

const deleteAttachment = `DELETE FROM ledger_attachments WHERE id = ? AND ledger_entry_id = ?`

func (q *Queries) DeleteAttachment(ctx context.Context, id, ledgerEntryID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAttachment, id, ledgerEntryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) getNamed(ctx context.Context, table, id string) (string, error) {
	var name string
	err := q.db.QueryRowContext(ctx, `SELECT name FROM `+table+` WHERE id = ?`, id).Scan(&name)
	return name, err
}

func (q *Queries) upsertNamed(ctx context.Context, table, id, name string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, name) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET name = excluded.name`, id, name)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(s rowScanner) (templateRow, error) {
	var r templateRow
	err := s.Scan(&r.ID, &r.Description, &r.Amount, &r.Currency, &r.CategoryID, &r.ProjectID, &r.SupplierID,
		&r.DayOfMonth, &r.IsActive, &r.AutoGenerate, &r.Notes, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanOccurrence(s rowScanner) (occurrenceRow, error) {
	var r occurrenceRow
	err := s.Scan(&r.ID, &r.TemplateID, &r.Month, &r.DueDate, &r.AmountExpected, &r.AmountActual, &r.Currency,
		&r.Status, &r.LedgerEntryID, &r.PaidAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func scanLedger(s rowScanner) (ledgerRow, error) {
	var r ledgerRow
	err := s.Scan(&r.ID, &r.OccurrenceID, &r.Amount, &r.Currency, &r.CategoryID, &r.ProjectID, &r.SupplierID,
		&r.Description, &r.PaymentStatus, &r.PaymentDate, &r.AttachmentCount, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
