// Package memory is an in-process persistence backend. It enforces the same
// constraints as the SQLite schema and is used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"obligations/internal/core"
	"obligations/internal/storage"
)

type Store struct {
	mu sync.Mutex
	st *state
}

var (
	_ storage.Store     = (*Store)(nil)
	_ storage.Directory = (*Store)(nil)
)

func New() *Store {
	return &Store{st: newState()}
}

type state struct {
	templates   map[string]core.Template
	occurrences map[string]core.Occurrence
	byMonth     map[monthKey]string // unique (template, month) index
	ledger      map[string]core.LedgerEntry
	byOcc       map[string]string // unique occurrence -> ledger entry index
	attachments map[string]map[string]string
	categories  map[string]core.Category
	projects    map[string]core.Project
	suppliers   map[string]core.Supplier
}

type monthKey struct {
	templateID string
	month      string
}

func newState() *state {
	return &state{
		templates:   map[string]core.Template{},
		occurrences: map[string]core.Occurrence{},
		byMonth:     map[monthKey]string{},
		ledger:      map[string]core.LedgerEntry{},
		byOcc:       map[string]string{},
		attachments: map[string]map[string]string{},
		categories:  map[string]core.Category{},
		projects:    map[string]core.Project{},
		suppliers:   map[string]core.Supplier{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.occurrences {
		c.occurrences[k] = v
	}
	for k, v := range s.byMonth {
		c.byMonth[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	for k, v := range s.byOcc {
		c.byOcc[k] = v
	}
	for k, files := range s.attachments {
		cp := make(map[string]string, len(files))
		for id, name := range files {
			cp[id] = name
		}
		c.attachments[k] = cp
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	return c
}

func (s *Store) Close() error { return nil }

func (s *Store) Templates() storage.TemplateRepository     { return locked{s} }
func (s *Store) Occurrences() storage.OccurrenceRepository { return locked{s} }
func (s *Store) Ledger() storage.LedgerRepository          { return locked{s} }

// WithinTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds. Transactions are serialised.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(ctx, txView{work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.categories[id]
	if !ok {
		return core.Category{}, core.NotFound("directory.category", "category", id)
	}
	return c, nil
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.projects[id]
	if !ok {
		return core.Project{}, core.NotFound("directory.project", "project", id)
	}
	return p, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (core.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.suppliers[id]
	if !ok {
		return core.Supplier{}, core.NotFound("directory.supplier", "supplier", id)
	}
	return v, nil
}

func (s *Store) SaveCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.categories[c.ID] = c
	return nil
}

func (s *Store) SaveProject(_ context.Context, p core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.projects[p.ID] = p
	return nil
}

func (s *Store) SaveSupplier(_ context.Context, v core.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.suppliers[v.ID] = v
	return nil
}

// CountAttachments implements attachments.Counter
func (s *Store) CountAttachments(_ context.Context, ledgerEntryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.attachments[ledgerEntryID]), nil
}

// AddAttachment records a document against a ledger entry. The memory
// backend keeps only file names, so at is not stored.
func (s *Store) AddAttachment(_ context.Context, ledgerEntryID, fileName string, _ time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.ledger[ledgerEntryID]; !ok {
		return "", core.NotFound("attachment.add", "ledger entry", ledgerEntryID)
	}
	id := uuid.NewString()
	if s.st.attachments[ledgerEntryID] == nil {
		s.st.attachments[ledgerEntryID] = map[string]string{}
	}
	s.st.attachments[ledgerEntryID][id] = fileName
	return id, nil
}

func (s *Store) RemoveAttachment(_ context.Context, ledgerEntryID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	files := s.st.attachments[ledgerEntryID]
	if _, ok := files[id]; !ok {
		return core.NotFound("attachment.remove", "attachment", id)
	}
	delete(files, id)
	return nil
}

// locked serialises single calls made outside a transaction.
type locked struct {
	s *Store
}

func (l locked) do(fn func(v txView)) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	fn(txView{l.s.st})
}

func (l locked) CreateTemplate(ctx context.Context, t core.Template) (out core.Template, err error) {
	l.do(func(v txView) { out, err = v.CreateTemplate(ctx, t) })
	return
}

func (l locked) GetTemplate(ctx context.Context, id string) (out core.Template, err error) {
	l.do(func(v txView) { out, err = v.GetTemplate(ctx, id) })
	return
}

func (l locked) UpdateTemplate(ctx context.Context, t core.Template) (out core.Template, err error) {
	l.do(func(v txView) { out, err = v.UpdateTemplate(ctx, t) })
	return
}

func (l locked) DeleteTemplate(ctx context.Context, id string) (err error) {
	l.do(func(v txView) { err = v.DeleteTemplate(ctx, id) })
	return
}

func (l locked) ListTemplates(ctx context.Context, f core.TemplateFilter) (out []core.Template, err error) {
	l.do(func(v txView) { out, err = v.ListTemplates(ctx, f) })
	return
}

func (l locked) InsertOccurrence(ctx context.Context, o core.Occurrence) (out core.Occurrence, err error) {
	l.do(func(v txView) { out, err = v.InsertOccurrence(ctx, o) })
	return
}

func (l locked) GetOccurrence(ctx context.Context, id string) (out core.Occurrence, err error) {
	l.do(func(v txView) { out, err = v.GetOccurrence(ctx, id) })
	return
}

func (l locked) FindOccurrence(ctx context.Context, templateID string, m core.Month) (out core.Occurrence, ok bool, err error) {
	l.do(func(v txView) { out, ok, err = v.FindOccurrence(ctx, templateID, m) })
	return
}

func (l locked) ListOccurrences(ctx context.Context, f storage.OccurrenceFilter) (out []core.Occurrence, err error) {
	l.do(func(v txView) { out, err = v.ListOccurrences(ctx, f) })
	return
}

func (l locked) UpdateOccurrence(ctx context.Context, o core.Occurrence) (out core.Occurrence, err error) {
	l.do(func(v txView) { out, err = v.UpdateOccurrence(ctx, o) })
	return
}

func (l locked) InsertLedgerEntry(ctx context.Context, e core.LedgerEntry) (out core.LedgerEntry, err error) {
	l.do(func(v txView) { out, err = v.InsertLedgerEntry(ctx, e) })
	return
}

func (l locked) GetLedgerEntry(ctx context.Context, id string) (out core.LedgerEntry, err error) {
	l.do(func(v txView) { out, err = v.GetLedgerEntry(ctx, id) })
	return
}

func (l locked) FindLedgerEntryByOccurrence(ctx context.Context, occurrenceID string) (out core.LedgerEntry, ok bool, err error) {
	l.do(func(v txView) { out, ok, err = v.FindLedgerEntryByOccurrence(ctx, occurrenceID) })
	return
}

func (l locked) UpdateLedgerEntry(ctx context.Context, e core.LedgerEntry) (out core.LedgerEntry, err error) {
	l.do(func(v txView) { out, err = v.UpdateLedgerEntry(ctx, e) })
	return
}

func (l locked) UpdateAttachmentCount(ctx context.Context, ledgerEntryID string, count int, updatedAt time.Time) (err error) {
	l.do(func(v txView) { err = v.UpdateAttachmentCount(ctx, ledgerEntryID, count, updatedAt) })
	return
}

// txView operates on a state the caller already owns.
type txView struct {
	st *state
}

func (v txView) Templates() storage.TemplateRepository     { return v }
func (v txView) Occurrences() storage.OccurrenceRepository { return v }
func (v txView) Ledger() storage.LedgerRepository          { return v }

func (v txView) CreateTemplate(_ context.Context, t core.Template) (core.Template, error) {
	v.st.templates[t.ID] = t
	return t, nil
}

func (v txView) GetTemplate(_ context.Context, id string) (core.Template, error) {
	t, ok := v.st.templates[id]
	if !ok {
		return core.Template{}, core.NotFound("template.get", "template", id)
	}
	return t, nil
}

func (v txView) UpdateTemplate(_ context.Context, t core.Template) (core.Template, error) {
	if _, ok := v.st.templates[t.ID]; !ok {
		return core.Template{}, core.NotFound("template.update", "template", t.ID)
	}
	v.st.templates[t.ID] = t
	return t, nil
}

func (v txView) DeleteTemplate(_ context.Context, id string) error {
	if _, ok := v.st.templates[id]; !ok {
		return core.NotFound("template.delete", "template", id)
	}
	delete(v.st.templates, id)
	return nil
}

func (v txView) ListTemplates(_ context.Context, f core.TemplateFilter) ([]core.Template, error) {
	out := make([]core.Template, 0, len(v.st.templates))
	for _, t := range v.st.templates {
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		if f.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *f.ProjectID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfMonth != out[j].DayOfMonth {
			return out[i].DayOfMonth < out[j].DayOfMonth
		}
		return out[i].Description < out[j].Description
	})
	return out, nil
}

func (v txView) InsertOccurrence(_ context.Context, o core.Occurrence) (core.Occurrence, error) {
	key := monthKey{o.TemplateID, o.Month.Key()}
	if _, exists := v.st.byMonth[key]; exists {
		return core.Occurrence{}, core.Duplicate("occurrence.insert", o.TemplateID, o.Month)
	}
	v.st.occurrences[o.ID] = o
	v.st.byMonth[key] = o.ID
	return o, nil
}

func (v txView) GetOccurrence(_ context.Context, id string) (core.Occurrence, error) {
	o, ok := v.st.occurrences[id]
	if !ok {
		return core.Occurrence{}, core.NotFound("occurrence.get", "occurrence", id)
	}
	return o, nil
}

func (v txView) FindOccurrence(_ context.Context, templateID string, m core.Month) (core.Occurrence, bool, error) {
	id, ok := v.st.byMonth[monthKey{templateID, m.Key()}]
	if !ok {
		return core.Occurrence{}, false, nil
	}
	return v.st.occurrences[id], true, nil
}

func (v txView) ListOccurrences(_ context.Context, f storage.OccurrenceFilter) ([]core.Occurrence, error) {
	out := make([]core.Occurrence, 0)
	for _, o := range v.st.occurrences {
		if f.TemplateID != "" && o.TemplateID != f.TemplateID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.OnlyLinked && !o.HasLedgerEntry() {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month.Time) {
			return out[i].Month.After(out[j].Month.Time)
		}
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Before(out[j].DueDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v txView) UpdateOccurrence(_ context.Context, o core.Occurrence) (core.Occurrence, error) {
	cur, ok := v.st.occurrences[o.ID]
	if !ok {
		return core.Occurrence{}, core.NotFound("occurrence.update", "occurrence", o.ID)
	}
	if o.Status == core.StatusPaid && (o.PaidAt == nil || o.AmountActual == nil) {
		return core.Occurrence{}, core.Inconsistent("occurrence.update", "occurrence %s cannot be paid without paidAt and amountActual", o.ID)
	}
	// Natural key and generated fields are immutable.
	o.TemplateID, o.Month, o.DueDate, o.AmountExpected, o.Currency, o.CreatedAt =
		cur.TemplateID, cur.Month, cur.DueDate, cur.AmountExpected, cur.Currency, cur.CreatedAt
	v.st.occurrences[o.ID] = o
	return o, nil
}

func (v txView) InsertLedgerEntry(_ context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if _, exists := v.st.byOcc[e.OccurrenceID]; exists {
		return core.LedgerEntry{}, storage.ErrLedgerEntryExists
	}
	v.st.ledger[e.ID] = e
	v.st.byOcc[e.OccurrenceID] = e.ID
	return e, nil
}

func (v txView) GetLedgerEntry(_ context.Context, id string) (core.LedgerEntry, error) {
	e, ok := v.st.ledger[id]
	if !ok {
		return core.LedgerEntry{}, core.NotFound("ledger.get", "ledger entry", id)
	}
	return e, nil
}

func (v txView) FindLedgerEntryByOccurrence(_ context.Context, occurrenceID string) (core.LedgerEntry, bool, error) {
	id, ok := v.st.byOcc[occurrenceID]
	if !ok {
		return core.LedgerEntry{}, false, nil
	}
	return v.st.ledger[id], true, nil
}

func (v txView) UpdateLedgerEntry(_ context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	cur, ok := v.st.ledger[e.ID]
	if !ok {
		return core.LedgerEntry{}, core.NotFound("ledger.update", "ledger entry", e.ID)
	}
	e.OccurrenceID, e.CategoryID, e.ProjectID, e.SupplierID, e.Description, e.Currency, e.CreatedAt =
		cur.OccurrenceID, cur.CategoryID, cur.ProjectID, cur.SupplierID, cur.Description, cur.Currency, cur.CreatedAt
	v.st.ledger[e.ID] = e
	return e, nil
}

func (v txView) UpdateAttachmentCount(_ context.Context, ledgerEntryID string, count int, updatedAt time.Time) error {
	e, ok := v.st.ledger[ledgerEntryID]
	if !ok {
		return core.NotFound("ledger.update", "ledger entry", ledgerEntryID)
	}
	e.AttachmentCount = count
	e.UpdatedAt = updatedAt
	v.st.ledger[ledgerEntryID] = e
	return nil
}
