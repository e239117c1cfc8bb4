package schedule

import (
	"context"

	"github.com/google/uuid"
)

// Store is the work-schedule side of a doctor profile. The booking engine
// only reads templates; writes come from the doctor's schedule editor.
type Store interface {
	TemplateForDoctor(ctx context.Context, doctorID uuid.UUID) (WeeklyTemplate, error)
	ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, template WeeklyTemplate) error
}
