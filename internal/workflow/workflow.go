// Package workflow orchestrates one planning request end to end:
// intent classification, syllabus resolution, artifact generation, the
// compliance gate with its bounded regeneration loop, and metric
// computation. The orchestrator is the only component holding
// cross-stage state; agents receive explicit inputs and return
// explicit outputs, and nothing escapes a request except its final
// result envelope.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/agent"
	"github.com/veldtlabs/curriculumd/internal/compliance"
	"github.com/veldtlabs/curriculumd/internal/ingest"
	"github.com/veldtlabs/curriculumd/internal/llm"
	"github.com/veldtlabs/curriculumd/internal/metrics"
	"github.com/veldtlabs/curriculumd/internal/retriever"
	"github.com/veldtlabs/curriculumd/internal/rules"
	"github.com/veldtlabs/curriculumd/internal/vectorstore"
)

// Status is a terminal workflow state.
type Status string

const (
	StatusDone     Status = "DONE"
	StatusDegraded Status = "DEGRADED_DONE"
	StatusAborted  Status = "ABORTED"
)

// FailureKind tags the error taxonomy bucket an aborted request fell
// into.
type FailureKind string

const (
	FailureProvider   FailureKind = "provider_error"
	FailureSchema     FailureKind = "schema_error"
	FailureSourceRead FailureKind = "source_read_error"
	FailureIndexState FailureKind = "index_state_error"
	FailureInternal   FailureKind = "internal_error"
)

// Failure describes why a request aborted.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ArtifactResult pairs a generated artifact with its gate verdict and,
// on the pass path, its metric scores.
type ArtifactResult struct {
	Artifact   academic.Artifact `json:"artifact"`
	Compliance compliance.Result `json:"compliance"`
	Metrics    *metrics.Metrics  `json:"metrics,omitempty"`
}

// ResultEnvelope is the immutable outcome of one request, the only
// value that escapes request scope.
type ResultEnvelope struct {
	RequestID     uuid.UUID         `json:"request_id"`
	Status        Status            `json:"status"`
	Intent        *academic.Intent  `json:"intent,omitempty"`
	Artifacts     []ArtifactResult  `json:"artifacts,omitempty"`
	Compliance    compliance.Status `json:"compliance,omitempty"`
	Regenerations int               `json:"regenerations"`
	Failure       *Failure          `json:"failure,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Request is one caller request.
type Request struct {
	// Text is the raw instructor request.
	Text string
	// SyllabusSource optionally points at a syllabus document to parse
	// directly instead of retrieving from the index.
	SyllabusSource string
	// Question and Answer feed the evaluation task when requested.
	Question string
	Answer   string
	// MaxScore is the mark total for evaluation. Zero uses the default.
	MaxScore float64
}

const defaultEvaluationMarks = 10

// Agent interfaces, satisfied by the internal/agent implementations
// and by mocks in tests.
type (
	// IntentRunner classifies raw request text.
	IntentRunner interface {
		Run(ctx context.Context, request string) (academic.Intent, error)
	}
	// SyllabusRunner parses syllabus context into structured units.
	SyllabusRunner interface {
		Run(ctx context.Context, syllabusContext string) (academic.Syllabus, error)
	}
	// PlanRunner generates weekly lesson plans.
	PlanRunner interface {
		Run(ctx context.Context, syllabus academic.Syllabus, weeks, hoursPerWeek int, hints []string) (academic.LessonPlan, error)
	}
	// AssessmentRunner generates question sets.
	AssessmentRunner interface {
		Run(ctx context.Context, syllabus academic.Syllabus, examType academic.ExamType, focus []academic.BloomLevel, retrievedContext string, hints []string) (academic.QuestionSet, error)
	}
	// EvaluationRunner grades student answers.
	EvaluationRunner interface {
		Run(ctx context.Context, question, answer string, maxScore float64) (academic.Evaluation, error)
	}
	// Retriever resolves queries to indexed syllabus chunks.
	Retriever interface {
		Retrieve(ctx context.Context, query string, topK int, filter retriever.Filter) ([]vectorstore.Result, error)
	}
)

// Config tunes orchestration.
type Config struct {
	// RegenBudget is the number of regeneration rounds allowed per
	// request, shared across all compliance failures.
	RegenBudget   int
	AcademicWeeks int
	HoursPerWeek  int
	TopK          int
	Gate          compliance.Options
	// ResultsLog is the JSONL file envelopes are appended to. Empty
	// disables logging.
	ResultsLog string
}

// Orchestrator drives the request state machine.
type Orchestrator struct {
	intent     IntentRunner
	syllabus   SyllabusRunner
	plan       PlanRunner
	assessment AssessmentRunner
	evaluation EvaluationRunner
	retriever  Retriever
	tables     *rules.Tables
	config     Config
	logger     *zap.Logger
}

// New creates an Orchestrator.
func New(intent IntentRunner, syllabus SyllabusRunner, plan PlanRunner, assessment AssessmentRunner, evaluation EvaluationRunner, ret Retriever, tables *rules.Tables, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &Orchestrator{
		intent:     intent,
		syllabus:   syllabus,
		plan:       plan,
		assessment: assessment,
		evaluation: evaluation,
		retriever:  ret,
		tables:     tables,
		config:     cfg,
		logger:     logger,
	}
}

// ExecuteWorkflow runs one request through the state machine and
// returns its envelope. Compliance failures drive the regeneration
// loop; provider and schema errors abort. The envelope is appended to
// the results log before returning; log failures are logged, never
// fatal.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, req Request) ResultEnvelope {
	envelope := ResultEnvelope{
		RequestID: uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	logger := o.logger.With(zap.String("request_id", envelope.RequestID.String()))

	envelope = o.execute(ctx, req, envelope, logger)

	o.appendResult(envelope, logger)
	return envelope
}

func (o *Orchestrator) execute(ctx context.Context, req Request, envelope ResultEnvelope, logger *zap.Logger) ResultEnvelope {
	// INTENT
	intent, err := o.intent.Run(ctx, req.Text)
	if err != nil {
		return o.abort(envelope, err, logger)
	}
	envelope.Intent = &intent

	// Evaluation-only requests need no syllabus.
	needSyllabus := false
	for _, task := range intent.Tasks {
		if task != academic.TaskEvaluation {
			needSyllabus = true
		}
	}

	// SYLLABUS
	var syllabus academic.Syllabus
	if needSyllabus {
		syllabusContext, err := o.syllabusContext(ctx, req, intent)
		if err != nil {
			return o.abort(envelope, err, logger)
		}
		syllabus, err = o.syllabus.Run(ctx, syllabusContext)
		if err != nil {
			return o.abort(envelope, err, logger)
		}
	}

	// The gate holds question sets to the caller's Bloom emphasis when
	// one was stated, and the Bloom check is advisory unless the exam
	// type itself was requested.
	gate := o.config.Gate
	gate.ExamRequested = intent.ExamType != ""
	gate.RequestedLevels = intent.BloomLevels

	// GENERATE / VALIDATE / REGEN loop. The hint accumulator carries
	// every rejected artifact's issues into the next attempt.
	budget := o.config.RegenBudget
	var hints []string
	artifacts := make([]academic.Artifact, len(intent.Tasks))
	results := make([]compliance.Result, len(intent.Tasks))
	generated := make([]bool, len(intent.Tasks))

	for {
		for i, task := range intent.Tasks {
			if generated[i] && results[i].Status == compliance.StatusPass {
				continue
			}
			artifact, err := o.generate(ctx, task, req, intent, syllabus, hints)
			if err != nil {
				return o.abort(envelope, err, logger)
			}
			artifacts[i] = artifact
			generated[i] = true
		}

		overall := compliance.StatusPass
		for i := range artifacts {
			results[i] = compliance.Validate(artifacts[i], syllabus, o.tables, gate)
			if results[i].Status == compliance.StatusFail {
				overall = compliance.StatusFail
			}
		}
		envelope.Compliance = overall

		if overall == compliance.StatusPass {
			break
		}
		if budget <= 0 {
			logger.Warn("regeneration budget exhausted, returning degraded result",
				zap.Int("regenerations", envelope.Regenerations))
			envelope.Status = StatusDegraded
			envelope.Artifacts = assemble(artifacts, results, nil)
			return envelope
		}

		budget--
		envelope.Regenerations++
		// Advisory issues on passing artifacts are not regeneration
		// feedback; only failing artifacts get retried.
		for _, result := range results {
			if result.Status != compliance.StatusFail {
				continue
			}
			for _, issue := range result.Issues {
				hints = append(hints, issue.Detail)
			}
		}
		logger.Info("compliance failed, regenerating",
			zap.Int("attempt", envelope.Regenerations),
			zap.Int("hints", len(hints)))
	}

	// METRICS
	scores := make([]*metrics.Metrics, len(artifacts))
	for i, artifact := range artifacts {
		m := metrics.Compute(artifact, syllabus, o.tables)
		scores[i] = &m
	}

	envelope.Status = StatusDone
	envelope.Artifacts = assemble(artifacts, results, scores)
	logger.Info("workflow complete",
		zap.Int("artifacts", len(artifacts)),
		zap.Int("regenerations", envelope.Regenerations))
	return envelope
}

// syllabusContext resolves the text the syllabus agent parses: the
// provided source document when given, otherwise retrieved index
// content scoped by the intent.
func (o *Orchestrator) syllabusContext(ctx context.Context, req Request, intent academic.Intent) (string, error) {
	if req.SyllabusSource != "" {
		return ingest.ExtractText(req.SyllabusSource)
	}

	query := intent.Subject
	if query == "" {
		query = req.Text
	}

	if len(intent.Units) == 0 {
		results, err := o.retriever.Retrieve(ctx, query, o.config.TopK, retriever.Filter{})
		if err != nil {
			return "", err
		}
		if len(results) == 0 {
			return "", fmt.Errorf("%w: no indexed syllabus content", ingest.ErrSourceRead)
		}
		return retriever.Context(results), nil
	}

	var parts []string
	for _, unit := range intent.Units {
		results, err := o.retriever.Retrieve(ctx, query, o.config.TopK, retriever.Filter{Unit: unit})
		if err != nil {
			return "", err
		}
		if text := retriever.Context(results); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no indexed syllabus content", ingest.ErrSourceRead)
	}
	return strings.Join(parts, "\n\n"), nil
}

// generate produces one artifact for one task.
func (o *Orchestrator) generate(ctx context.Context, task academic.TaskKind, req Request, intent academic.Intent, syllabus academic.Syllabus, hints []string) (academic.Artifact, error) {
	switch task {
	case academic.TaskLessonPlan:
		weeks := o.config.AcademicWeeks
		if intent.Weeks > 0 {
			weeks = intent.Weeks
		}
		plan, err := o.plan.Run(ctx, syllabus, weeks, o.config.HoursPerWeek, hints)
		if err != nil {
			return academic.Artifact{}, err
		}
		return academic.Artifact{Kind: academic.ArtifactLessonPlan, LessonPlan: &plan}, nil

	case academic.TaskAssessment:
		examType := intent.ExamType
		if examType == "" {
			examType = academic.ExamMid
		}
		retrieved, err := o.assessmentContext(ctx, intent, syllabus)
		if err != nil {
			return academic.Artifact{}, err
		}
		set, err := o.assessment.Run(ctx, syllabus, examType, intent.BloomLevels, retrieved, hints)
		if err != nil {
			return academic.Artifact{}, err
		}
		return academic.Artifact{Kind: academic.ArtifactQuestionSet, QuestionSet: &set}, nil

	case academic.TaskEvaluation:
		question := req.Question
		if question == "" {
			question = intent.Summary
		}
		answer := req.Answer
		if answer == "" {
			answer = req.Text
		}
		maxScore := req.MaxScore
		if maxScore <= 0 {
			maxScore = defaultEvaluationMarks
		}
		eval, err := o.evaluation.Run(ctx, question, answer, maxScore)
		if err != nil {
			return academic.Artifact{}, err
		}
		return academic.Artifact{Kind: academic.ArtifactEvaluation, Evaluation: &eval}, nil

	default:
		return academic.Artifact{}, fmt.Errorf("unsupported task %q", task)
	}
}

// assessmentContext retrieves reference material scoped to the units
// the intent targets. Retrieval problems degrade to an empty context;
// the syllabus itself is already in the prompt.
func (o *Orchestrator) assessmentContext(ctx context.Context, intent academic.Intent, syllabus academic.Syllabus) (string, error) {
	query := intent.Subject
	if query == "" {
		query = syllabus.Subject
	}
	if query == "" {
		return "", nil
	}

	units := intent.Units
	if len(units) == 0 {
		results, err := o.retriever.Retrieve(ctx, query, o.config.TopK, retriever.Filter{})
		if err != nil {
			return "", err
		}
		return retriever.Context(results), nil
	}

	var parts []string
	for _, unit := range units {
		results, err := o.retriever.Retrieve(ctx, query, o.config.TopK, retriever.Filter{Unit: unit})
		if err != nil {
			return "", err
		}
		if text := retriever.Context(results); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// abort finalizes the envelope with a tagged failure.
func (o *Orchestrator) abort(envelope ResultEnvelope, err error, logger *zap.Logger) ResultEnvelope {
	kind := classify(err)
	logger.Error("workflow aborted",
		zap.String("kind", string(kind)),
		zap.Error(err))
	envelope.Status = StatusAborted
	envelope.Failure = &Failure{Kind: kind, Message: err.Error()}
	return envelope
}

// classify maps an error to its taxonomy bucket.
func classify(err error) FailureKind {
	switch {
	case agent.IsSchemaError(err):
		return FailureSchema
	case isProviderError(err):
		return FailureProvider
	case errors.Is(err, ingest.ErrSourceRead):
		return FailureSourceRead
	case errors.Is(err, vectorstore.ErrIndexState):
		return FailureIndexState
	default:
		return FailureInternal
	}
}

func isProviderError(err error) bool {
	var pe *llm.ProviderError
	return errors.As(err, &pe)
}

func assemble(artifacts []academic.Artifact, results []compliance.Result, scores []*metrics.Metrics) []ArtifactResult {
	out := make([]ArtifactResult, len(artifacts))
	for i := range artifacts {
		out[i] = ArtifactResult{Artifact: artifacts[i], Compliance: results[i]}
		if scores != nil {
			out[i].Metrics = scores[i]
		}
	}
	return out
}
