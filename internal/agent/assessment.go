package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/llm"
	"github.com/veldtlabs/curriculumd/internal/rules"
)

var assessmentPrompt = template.Must(template.New("assessment").Parse(`You are an academic assessment designer. Generate a question paper for the course below.

Syllabus (JSON):
{{.Syllabus}}

Reference material:
{{.Context}}

Exam type: {{.ExamType}}
Structure, to be followed exactly:
{{range .Sections}}- {{.Name}}: {{.QuestionCount}} questions worth {{.MarksEach}} marks each
{{end}}
Bloom level distribution across all questions:
{{range .Distribution}}- {{.Level}}: {{.Count}} questions (use verbs such as {{.Verbs}})
{{end}}
Every question must target a topic from the syllabus. Spread questions across units; avoid asking two questions on the same topic at the same Bloom level.
{{if .Hints}}
{{.Hints}}{{end}}
Respond with a single JSON object, no prose:
- "exam_type": "{{.ExamType}}"
- "questions": array of objects, numbered sequentially:
  - "number": 1-based question number
  - "text": the question text
  - "bloom_level": one of "Remember", "Understand", "Apply", "Analyze", "Evaluate", "Create"
  - "marks": marks for the question, matching the section structure
  - "unit": the syllabus unit number the question draws from
  - "topic": the syllabus topic the question targets, verbatim
`))

// distributionLine is one Bloom level row in the assessment prompt.
type distributionLine struct {
	Level academic.BloomLevel
	Count int
	Verbs string
}

// AssessmentAgent generates question sets shaped by an exam pattern and
// a Bloom distribution.
type AssessmentAgent struct {
	base
	tables *rules.Tables
}

// NewAssessmentAgent creates an AssessmentAgent backed by the given
// rule tables.
func NewAssessmentAgent(client llm.Client, logger *zap.Logger, tables *rules.Tables) *AssessmentAgent {
	return &AssessmentAgent{base: newBase(client, logger), tables: tables}
}

// Run generates a question set for the exam type. A non-empty focus
// replaces the default Bloom distribution with the caller's requested
// emphasis. Question Bloom levels must parse; structural conformance to
// the pattern is judged by the compliance gate, not here. Duplicate
// (topic, level) pairs are dropped when the set has questions to spare.
func (a *AssessmentAgent) Run(ctx context.Context, syllabus academic.Syllabus, examType academic.ExamType, focus []academic.BloomLevel, retrievedContext string, hints []string) (academic.QuestionSet, error) {
	if !examType.Valid() {
		return academic.QuestionSet{}, fmt.Errorf("unsupported exam type %q", examType)
	}

	syllabusJSON, err := json.Marshal(syllabus)
	if err != nil {
		return academic.QuestionSet{}, fmt.Errorf("marshaling syllabus: %w", err)
	}

	pattern, _ := a.tables.Pattern(examType)
	distribution := a.tables.RequestedDistribution(examType, focus)

	var lines []distributionLine
	for _, level := range academic.BloomLevels() {
		if count := distribution[level]; count > 0 {
			lines = append(lines, distributionLine{
				Level: level,
				Count: count,
				Verbs: strings.Join(a.tables.VerbsFor(level), ", "),
			})
		}
	}

	data := map[string]any{
		"Syllabus":     string(syllabusJSON),
		"Context":      retrievedContext,
		"ExamType":     examType,
		"Sections":     pattern.Sections,
		"Distribution": lines,
		"Hints":        hintBlock(hints),
	}

	var set academic.QuestionSet
	if err := a.complete(ctx, assessmentPrompt, data, &set); err != nil {
		return academic.QuestionSet{}, err
	}

	if len(set.Questions) == 0 {
		return academic.QuestionSet{}, &SchemaError{Field: "questions", Reason: "no questions generated"}
	}
	for _, q := range set.Questions {
		if !q.BloomLevel.Valid() {
			return academic.QuestionSet{}, &SchemaError{
				Field:  "questions",
				Reason: fmt.Sprintf("question %d has unknown bloom level %q", q.Number, q.BloomLevel),
			}
		}
		if strings.TrimSpace(q.Text) == "" {
			return academic.QuestionSet{}, &SchemaError{
				Field:  "questions",
				Reason: fmt.Sprintf("question %d has empty text", q.Number),
			}
		}
	}
	set.ExamType = examType

	set.Questions = a.dedupe(set.Questions, pattern.QuestionCount())
	for i := range set.Questions {
		set.Questions[i].Number = i + 1
	}

	a.logger.Debug("assessment generated",
		zap.String("exam_type", string(examType)),
		zap.Int("questions", len(set.Questions)),
		zap.Int("total_marks", set.TotalMarks()))
	return set, nil
}

// dedupe drops repeated (topic, bloom level) pairs, but never below the
// pattern's question count. When the model produced no spare questions
// the duplicates stay and the compliance gate decides.
func (a *AssessmentAgent) dedupe(questions []academic.Question, minCount int) []academic.Question {
	seen := make(map[string]bool, len(questions))
	kept := make([]academic.Question, 0, len(questions))
	spare := len(questions) - minCount
	for _, q := range questions {
		key := academic.NormalizeTopic(q.Topic) + "|" + string(q.BloomLevel)
		if seen[key] && spare > 0 {
			spare--
			continue
		}
		seen[key] = true
		kept = append(kept, q)
	}
	return kept
}
