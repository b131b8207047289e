package agent

import (
	"context"
	"fmt"
	"math"
	"text/template"

	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/llm"
	"github.com/veldtlabs/curriculumd/internal/rules"
)

var evaluationPrompt = template.Must(template.New("evaluation").Parse(`You are an academic grader. Grade the student answer below against the rubric.

Question ({{.MaxScore}} marks):
{{.Question}}

Student answer:
{{.Answer}}

Rubric, weights sum to 1:
{{range .Rubric}}- {{.Name}} (weight {{.Weight}}): {{.Description}}
{{end}}
Score each criterion out of its weighted share of {{.MaxScore}} marks. Be specific in comments: quote what the answer got right or wrong.

Respond with a single JSON object, no prose:
- "criteria": array of objects, one per rubric criterion in order:
  - "criterion": the criterion name
  - "score": the awarded score
  - "max_score": the criterion's share of the total marks
  - "comment": one or two sentences justifying the score
- "feedback": a short paragraph of overall feedback for the student
`))

// EvaluationAgent grades student answers against a rubric.
type EvaluationAgent struct {
	base
	tables *rules.Tables
}

// NewEvaluationAgent creates an EvaluationAgent backed by the given
// rule tables.
func NewEvaluationAgent(client llm.Client, logger *zap.Logger, tables *rules.Tables) *EvaluationAgent {
	return &EvaluationAgent{base: newBase(client, logger), tables: tables}
}

// Run grades an answer. Criterion scores must stay within their
// maximums; the total is recomputed from the criteria rather than
// trusted from the model.
func (a *EvaluationAgent) Run(ctx context.Context, question, answer string, maxScore float64) (academic.Evaluation, error) {
	if maxScore <= 0 {
		return academic.Evaluation{}, fmt.Errorf("max score must be positive, got %v", maxScore)
	}

	data := map[string]any{
		"Question": question,
		"Answer":   answer,
		"MaxScore": maxScore,
		"Rubric":   a.tables.Rubric,
	}

	var eval academic.Evaluation
	if err := a.complete(ctx, evaluationPrompt, data, &eval); err != nil {
		return academic.Evaluation{}, err
	}

	if len(eval.Criteria) == 0 {
		return academic.Evaluation{}, &SchemaError{Field: "criteria", Reason: "no criterion scores"}
	}

	total := 0.0
	for _, c := range eval.Criteria {
		if c.MaxScore <= 0 {
			return academic.Evaluation{}, &SchemaError{
				Field:  "criteria",
				Reason: fmt.Sprintf("criterion %q has non-positive max score", c.Criterion),
			}
		}
		if c.Score < 0 || c.Score > c.MaxScore {
			return academic.Evaluation{}, &SchemaError{
				Field:  "criteria",
				Reason: fmt.Sprintf("criterion %q score %v outside [0, %v]", c.Criterion, c.Score, c.MaxScore),
			}
		}
		total += c.Score
	}

	eval.TotalScore = math.Round(total*100) / 100
	eval.MaxScore = maxScore

	a.logger.Debug("answer evaluated",
		zap.Float64("score", eval.TotalScore),
		zap.Float64("max_score", eval.MaxScore))
	return eval, nil
}
