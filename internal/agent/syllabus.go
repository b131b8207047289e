package agent

import (
	"context"
	"text/template"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/llm"
)

var syllabusPrompt = template.Must(template.New("syllabus").Parse(`You are an academic planning assistant. Parse the syllabus text below into structured units.

Syllabus text:
{{.Context}}

Respond with a single JSON object, no prose:
- "subject": the course subject
- "course_code": the course code if present, else ""
- "credits": the credit count if present, else 0
- "units": array of objects, one per syllabus unit, in document order:
  - "number": the unit number as written
  - "name": the unit title
  - "topics": array of topic strings
  - "hours": teaching hours for the unit if stated, else 0
  - "learning_outcomes": array of outcome strings if present, else []

Preserve the unit numbering from the document. Do not invent units or topics that are not in the text.
`))

// SyllabusAgent parses retrieved syllabus text into a structured
// Syllabus.
type SyllabusAgent struct {
	base
	// ExpectedHours is the calendar's teaching-hour total. A parsed
	// syllabus whose declared hours diverge is logged, not rejected;
	// syllabi frequently omit or round hours.
	ExpectedHours int
}

// NewSyllabusAgent creates a SyllabusAgent.
func NewSyllabusAgent(client llm.Client, logger *zap.Logger, expectedHours int) *SyllabusAgent {
	return &SyllabusAgent{base: newBase(client, logger), ExpectedHours: expectedHours}
}

// Run parses the syllabus context. Unit numbers must be unique and
// strictly increasing; a violation is a schema error because it means
// the model misread the document structure.
func (a *SyllabusAgent) Run(ctx context.Context, syllabusContext string) (academic.Syllabus, error) {
	var syllabus academic.Syllabus
	if err := a.complete(ctx, syllabusPrompt, map[string]string{"Context": syllabusContext}, &syllabus); err != nil {
		return academic.Syllabus{}, err
	}

	if len(syllabus.Units) == 0 {
		return academic.Syllabus{}, &SchemaError{Field: "units", Reason: "no units parsed"}
	}
	if err := syllabus.ValidateUnits(); err != nil {
		return academic.Syllabus{}, &SchemaError{Field: "units", Reason: err.Error()}
	}
	for _, u := range syllabus.Units {
		if len(u.Topics) == 0 {
			return academic.Syllabus{}, &SchemaError{Field: "units", Reason: "unit without topics"}
		}
	}

	if total := syllabus.TotalHours(); a.ExpectedHours > 0 && total > 0 && total != a.ExpectedHours {
		a.logger.Warn("syllabus hours diverge from academic calendar",
			zap.Int("declared_hours", total),
			zap.Int("expected_hours", a.ExpectedHours))
	}

	return syllabus, nil
}
