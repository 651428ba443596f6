package log

import (
	"errors"

	"obligations/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldErrorKind     = "error_kind"
	FieldOperation     = "operation"
	FieldTemplateID    = "template_id"
	FieldOccurrenceID  = "occurrence_id"
	FieldLedgerEntryID = "ledger_entry_id"
	FieldMonth         = "month"
	FieldStatus        = "status"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldAttachments   = "attachments"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentTemplate  = "template"
	ComponentGenerator = "generator"
	ComponentLedger    = "ledger"
	ComponentState     = "state_machine"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpGenerate  = "generate"
	OpDocument  = "begin_documentation"
	OpRefresh   = "refresh_attachments"
	OpMarkPaid  = "mark_paid"
	OpReconcile = "reconcile"
	OpExport    = "export"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text and, when known, its engine kind.
func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	f[FieldError] = err.Error()
	if kind := core.KindOf(err); kind != nil {
		f[FieldErrorKind] = ErrorKind(err)
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithTemplate(t core.Template) LogFields {
	f[FieldTemplateID] = t.ID
	f[FieldAmount] = t.Amount.String()
	f[FieldCurrency] = t.Currency
	return f
}

// WithOccurrence adds the identifying fields of an occurrence.
func (f LogFields) WithOccurrence(o core.Occurrence) LogFields {
	f[FieldOccurrenceID] = o.ID
	f[FieldTemplateID] = o.TemplateID
	f[FieldMonth] = o.Month.String()
	f[FieldStatus] = string(o.Status)
	if o.LedgerEntryID != nil {
		f[FieldLedgerEntryID] = *o.LedgerEntryID
	}
	return f
}

func (f LogFields) WithLedgerEntry(e core.LedgerEntry) LogFields {
	f[FieldLedgerEntryID] = e.ID
	f[FieldOccurrenceID] = e.OccurrenceID
	f[FieldAmount] = e.Amount.String()
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

// ErrorKind names the engine error kind of err for log aggregation.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrDuplicateOccurrence):
		return "duplicate_occurrence"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrInconsistentState):
		return "inconsistent_state"
	case errors.Is(err, core.ErrDependencyFailure):
		return "dependency_failure"
	default:
		return "internal"
	}
}
