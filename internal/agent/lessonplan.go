package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/llm"
)

var lessonPlanPrompt = template.Must(template.New("lesson_plan").Parse(`You are an academic planning assistant. Build a weekly lesson plan for the course below.

Syllabus (JSON):
{{.Syllabus}}

Schedule constraints:
- Exactly {{.Weeks}} weeks, numbered 1 through {{.Weeks}} with no gaps.
- {{.HoursPerWeek}} teaching hours per week.
- Every topic scheduled must come from the syllabus above. Cover as many syllabus topics as the calendar allows, in unit order.
{{if .Hints}}
{{.Hints}}{{end}}
Respond with a single JSON object, no prose:
- "subject": the course subject
- "total_weeks": {{.Weeks}}
- "weeks": array of objects, one per week:
  - "week_number": 1-based week number
  - "unit": the syllabus unit the week draws from
  - "topics": array of topic strings taken verbatim from the syllabus
  - "hours": teaching hours for the week
  - "objectives": array of learning objective strings
  - "methods": array of teaching method strings
`))

// LessonPlanAgent generates weekly teaching schedules from a parsed
// syllabus.
type LessonPlanAgent struct {
	base
}

// NewLessonPlanAgent creates a LessonPlanAgent.
func NewLessonPlanAgent(client llm.Client, logger *zap.Logger) *LessonPlanAgent {
	return &LessonPlanAgent{base: newBase(client, logger)}
}

// Run generates a lesson plan. Weeks must be numbered 1..weeks with no
// gaps or duplicates; whether the plan covers enough of the syllabus is
// judged downstream, not here.
func (a *LessonPlanAgent) Run(ctx context.Context, syllabus academic.Syllabus, weeks, hoursPerWeek int, hints []string) (academic.LessonPlan, error) {
	syllabusJSON, err := json.Marshal(syllabus)
	if err != nil {
		return academic.LessonPlan{}, fmt.Errorf("marshaling syllabus: %w", err)
	}

	data := map[string]any{
		"Syllabus":     string(syllabusJSON),
		"Weeks":        weeks,
		"HoursPerWeek": hoursPerWeek,
		"Hints":        hintBlock(hints),
	}

	var plan academic.LessonPlan
	if err := a.complete(ctx, lessonPlanPrompt, data, &plan); err != nil {
		return academic.LessonPlan{}, err
	}

	if len(plan.Weeks) != weeks {
		return academic.LessonPlan{}, &SchemaError{
			Field:  "weeks",
			Reason: fmt.Sprintf("expected %d weeks, got %d", weeks, len(plan.Weeks)),
		}
	}
	for i, w := range plan.Weeks {
		if w.WeekNumber != i+1 {
			return academic.LessonPlan{}, &SchemaError{
				Field:  "weeks",
				Reason: fmt.Sprintf("week %d out of sequence at position %d", w.WeekNumber, i+1),
			}
		}
	}
	plan.TotalWeeks = weeks

	a.logger.Debug("lesson plan generated",
		zap.String("subject", plan.Subject),
		zap.Int("weeks", len(plan.Weeks)),
		zap.Int("scheduled_topics", len(plan.ScheduledTopics())))
	return plan, nil
}
