package agent

import (
	"context"
	"text/template"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/llm"
)

var intentPrompt = template.Must(template.New("intent").Parse(`You are an academic planning assistant. Classify the instructor's request below into a structured intent.

Request:
{{.Request}}

Respond with a single JSON object, no prose, with these fields:
- "tasks": array of task names, each one of "lesson_plan", "assessment", "evaluation"
- "subject": the course subject if stated, else ""
- "units": array of unit numbers the request targets, else []
- "weeks": number of weeks if stated, else 0
- "bloom_levels": array of Bloom taxonomy levels to emphasize ("Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create"), else []
- "exam_type": one of "quiz", "assignment", "mid", "end" if an exam is requested, else ""
- "summary": one sentence restating the request
`))

// rawIntent is the loosely typed wire form the model emits. Task and
// level names are normalized after decoding.
type rawIntent struct {
	Tasks       []string `json:"tasks"`
	Subject     string   `json:"subject"`
	Units       []int    `json:"units"`
	Weeks       int      `json:"weeks"`
	BloomLevels []string `json:"bloom_levels"`
	ExamType    string   `json:"exam_type"`
	Summary     string   `json:"summary"`
}

// IntentAgent turns free-form instructor requests into structured intents.
type IntentAgent struct {
	base
}

// NewIntentAgent creates an IntentAgent.
func NewIntentAgent(client llm.Client, logger *zap.Logger) *IntentAgent {
	return &IntentAgent{base: newBase(client, logger)}
}

// Run classifies the request. At least one recognizable task is
// required; unknown task or level names are schema errors.
func (a *IntentAgent) Run(ctx context.Context, request string) (academic.Intent, error) {
	var raw rawIntent
	if err := a.complete(ctx, intentPrompt, map[string]string{"Request": request}, &raw); err != nil {
		return academic.Intent{}, err
	}

	if len(raw.Tasks) == 0 {
		return academic.Intent{}, &SchemaError{Field: "tasks", Reason: "no tasks identified"}
	}

	intent := academic.Intent{
		Subject: raw.Subject,
		Units:   raw.Units,
		Weeks:   raw.Weeks,
		Summary: raw.Summary,
	}

	seen := make(map[academic.TaskKind]bool)
	for _, name := range raw.Tasks {
		kind, err := academic.ParseTaskKind(name)
		if err != nil {
			return academic.Intent{}, &SchemaError{Field: "tasks", Reason: err.Error()}
		}
		if !seen[kind] {
			seen[kind] = true
			intent.Tasks = append(intent.Tasks, kind)
		}
	}

	for _, name := range raw.BloomLevels {
		level, err := academic.ParseBloomLevel(name)
		if err != nil {
			return academic.Intent{}, &SchemaError{Field: "bloom_levels", Reason: err.Error()}
		}
		intent.BloomLevels = append(intent.BloomLevels, level)
	}

	if raw.ExamType != "" {
		examType := academic.ExamType(raw.ExamType)
		if !examType.Valid() {
			return academic.Intent{}, &SchemaError{Field: "exam_type", Reason: "unknown exam type " + raw.ExamType}
		}
		intent.ExamType = examType
	}

	a.logger.Debug("intent classified",
		zap.Any("tasks", intent.Tasks),
		zap.String("subject", intent.Subject),
		zap.String("exam_type", string(intent.ExamType)))
	return intent, nil
}
