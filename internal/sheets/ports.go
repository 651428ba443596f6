package sheets

import (
	"context"

	"obligations/internal/core"
	"obligations/internal/services"
)

// Ports for the monthly report.
type (
	// Source is the read side of the engine the report is built from.
	Source interface {
		ListOccurrences(ctx context.Context, q services.OccurrenceQuery) ([]core.Occurrence, error)
		ListTemplates(ctx context.Context, f core.TemplateFilter) ([]core.Template, error)
		ComputeSummary(ctx context.Context, q services.OccurrenceQuery) (core.Summary, error)
	}

	// Reporter publishes rendered report rows under a sheet name.
	Reporter interface {
		WriteSheet(ctx context.Context, sheet string, rows [][]any) error
	}
)
