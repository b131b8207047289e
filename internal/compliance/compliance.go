// Package compliance implements the deterministic gate generated
// artifacts must pass before they leave the system. Checks are pure
// functions over the artifact, the parsed syllabus, and the rule
// tables: no model calls, no I/O, and the same inputs always produce
// the same verdict. A required check failing fails the artifact; soft
// checks only annotate it.
package compliance

import (
	"fmt"
	"sort"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/rules"
)

// Status is the gate verdict for an artifact.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// IssueKind identifies which check raised an issue.
type IssueKind string

const (
	IssueOutOfSyllabus    IssueKind = "OUT_OF_SYLLABUS"
	IssueBloomImbalance   IssueKind = "BLOOM_IMBALANCE"
	IssuePatternViolation IssueKind = "PATTERN_VIOLATION"
	IssueCoverageGap      IssueKind = "COVERAGE_GAP"
)

// Severity distinguishes failing issues from advisory ones.
type Severity string

const (
	SeverityRequired Severity = "REQUIRED"
	SeveritySoft     Severity = "SOFT"
)

// Issue is one finding raised by a check.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Detail   string    `json:"detail"`
}

// Result is the gate verdict plus every issue found. Issues are
// ordered deterministically so repeated validation of the same
// artifact produces identical results.
type Result struct {
	Status Status  `json:"status"`
	Issues []Issue `json:"issues,omitempty"`
}

// Options tunes the gate thresholds.
type Options struct {
	// BloomTolerance is the allowed absolute deviation per level
	// between the expected and empirical Bloom distributions,
	// expressed as a fraction of the question count.
	BloomTolerance float64
	// CoverageThreshold is the minimum fraction of syllabus topics a
	// lesson plan must schedule before a coverage gap is raised.
	CoverageThreshold float64
	// ExamRequested reports whether the caller explicitly asked for
	// this exam type. A Bloom imbalance fails the artifact only then;
	// otherwise it is advisory.
	ExamRequested bool
	// RequestedLevels is the Bloom emphasis the caller asked for, if
	// any. Empty holds the set to the exam type's default distribution.
	RequestedLevels []academic.BloomLevel
}

// DefaultOptions returns the standard gate thresholds.
func DefaultOptions() Options {
	return Options{BloomTolerance: 0.15, CoverageThreshold: 0.7, ExamRequested: true}
}

// Validate runs every applicable check against the artifact and
// returns the verdict. The result is FAIL iff a required issue was
// raised.
func Validate(artifact academic.Artifact, syllabus academic.Syllabus, tables *rules.Tables, opts Options) Result {
	var issues []Issue

	switch artifact.Kind {
	case academic.ArtifactLessonPlan:
		if artifact.LessonPlan != nil {
			issues = append(issues, checkPlanBoundary(artifact.LessonPlan, syllabus)...)
			issues = append(issues, checkCoverage(artifact.LessonPlan, syllabus, opts)...)
		}
	case academic.ArtifactQuestionSet:
		if artifact.QuestionSet != nil {
			issues = append(issues, checkQuestionBoundary(artifact.QuestionSet, syllabus)...)
			issues = append(issues, checkBloomDistribution(artifact.QuestionSet, tables, opts)...)
			issues = append(issues, checkExamPattern(artifact.QuestionSet, tables)...)
		}
	case academic.ArtifactEvaluation:
		// Evaluations are free text over a rubric; nothing to gate.
	}

	sortIssues(issues)

	status := StatusPass
	for _, issue := range issues {
		if issue.Severity == SeverityRequired {
			status = StatusFail
			break
		}
	}
	return Result{Status: status, Issues: issues}
}

// ValidateBatch validates each artifact and aggregates: the batch
// fails if any item fails.
func ValidateBatch(artifacts []academic.Artifact, syllabus academic.Syllabus, tables *rules.Tables, opts Options) (Status, []Result) {
	results := make([]Result, len(artifacts))
	overall := StatusPass
	for i, artifact := range artifacts {
		results[i] = Validate(artifact, syllabus, tables, opts)
		if results[i].Status == StatusFail {
			overall = StatusFail
		}
	}
	return overall, results
}

// checkPlanBoundary verifies every scheduled topic and unit reference
// resolves against the syllabus.
func checkPlanBoundary(plan *academic.LessonPlan, syllabus academic.Syllabus) []Issue {
	var issues []Issue
	topics := syllabus.TopicSet()
	for _, week := range plan.Weeks {
		if week.Unit != 0 {
			if _, ok := syllabus.UnitByNumber(week.Unit); !ok {
				issues = append(issues, Issue{
					Kind:     IssueOutOfSyllabus,
					Severity: SeverityRequired,
					Detail:   fmt.Sprintf("week %d references unit %d, which is not in the syllabus", week.WeekNumber, week.Unit),
				})
			}
		}
		for _, topic := range week.Topics {
			if !topics[academic.NormalizeTopic(topic)] {
				issues = append(issues, Issue{
					Kind:     IssueOutOfSyllabus,
					Severity: SeverityRequired,
					Detail:   fmt.Sprintf("week %d schedules topic %q, which is not in the syllabus", week.WeekNumber, topic),
				})
			}
		}
	}
	return issues
}

// checkQuestionBoundary verifies every question targets a syllabus
// topic and unit.
func checkQuestionBoundary(set *academic.QuestionSet, syllabus academic.Syllabus) []Issue {
	var issues []Issue
	topics := syllabus.TopicSet()
	for _, q := range set.Questions {
		if q.Unit != 0 {
			if _, ok := syllabus.UnitByNumber(q.Unit); !ok {
				issues = append(issues, Issue{
					Kind:     IssueOutOfSyllabus,
					Severity: SeverityRequired,
					Detail:   fmt.Sprintf("question %d references unit %d, which is not in the syllabus", q.Number, q.Unit),
				})
			}
		}
		if !topics[academic.NormalizeTopic(q.Topic)] {
			issues = append(issues, Issue{
				Kind:     IssueOutOfSyllabus,
				Severity: SeverityRequired,
				Detail:   fmt.Sprintf("question %d targets topic %q, which is not in the syllabus", q.Number, q.Topic),
			})
		}
	}
	return issues
}

// checkBloomDistribution compares the question set's empirical Bloom
// distribution against the requested or default one for its exam type,
// allowing BloomTolerance deviation per level as a fraction of the
// question count. An imbalance is required only when the exam type was
// explicitly requested.
func checkBloomDistribution(set *academic.QuestionSet, tables *rules.Tables, opts Options) []Issue {
	expected := tables.RequestedDistribution(set.ExamType, opts.RequestedLevels)
	if len(expected) == 0 || len(set.Questions) == 0 {
		return nil
	}

	expectedTotal := 0
	for _, count := range expected {
		expectedTotal += count
	}
	if expectedTotal == 0 {
		return nil
	}

	hist := set.BloomHistogram()
	actualTotal := len(set.Questions)
	severity := SeverityRequired
	if !opts.ExamRequested {
		severity = SeveritySoft
	}

	var issues []Issue
	for _, level := range academic.BloomLevels() {
		wantFrac := float64(expected[level]) / float64(expectedTotal)
		gotFrac := float64(hist[level]) / float64(actualTotal)
		deviation := wantFrac - gotFrac
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > opts.BloomTolerance {
			issues = append(issues, Issue{
				Kind:     IssueBloomImbalance,
				Severity: severity,
				Detail: fmt.Sprintf("%s: expected %.0f%% of questions, got %.0f%%",
					level, wantFrac*100, gotFrac*100),
			})
		}
	}
	return issues
}

// checkExamPattern verifies the question set matches the configured
// structure for its exam type: question count, total marks, and
// per-section mark values.
func checkExamPattern(set *academic.QuestionSet, tables *rules.Tables) []Issue {
	pattern, ok := tables.Pattern(set.ExamType)
	if !ok {
		return nil
	}

	var issues []Issue
	if got, want := len(set.Questions), pattern.QuestionCount(); got != want {
		issues = append(issues, Issue{
			Kind:     IssuePatternViolation,
			Severity: SeverityRequired,
			Detail:   fmt.Sprintf("expected %d questions, got %d", want, got),
		})
	}
	if got, want := set.TotalMarks(), pattern.TotalMarks(); got != want {
		issues = append(issues, Issue{
			Kind:     IssuePatternViolation,
			Severity: SeverityRequired,
			Detail:   fmt.Sprintf("expected %d total marks, got %d", want, got),
		})
	}

	// Mark multiset check: the questions' mark values must be some
	// arrangement of the pattern's sections.
	wantMarks := make(map[int]int)
	for _, s := range pattern.Sections {
		wantMarks[s.MarksEach] += s.QuestionCount
	}
	gotMarks := make(map[int]int)
	for _, q := range set.Questions {
		gotMarks[q.Marks]++
	}
	if len(issues) == 0 && !equalCounts(wantMarks, gotMarks) {
		issues = append(issues, Issue{
			Kind:     IssuePatternViolation,
			Severity: SeverityRequired,
			Detail:   "question mark values do not match the exam pattern sections",
		})
	}
	return issues
}

// checkCoverage measures how much of the syllabus the lesson plan
// schedules. A shortfall is advisory: the calendar may simply be too
// short for the syllabus.
func checkCoverage(plan *academic.LessonPlan, syllabus academic.Syllabus, opts Options) []Issue {
	topics := syllabus.TopicSet()
	if len(topics) == 0 {
		return nil
	}

	scheduled := make(map[string]bool)
	for _, t := range plan.ScheduledTopics() {
		scheduled[academic.NormalizeTopic(t)] = true
	}

	covered := 0
	for topic := range topics {
		if scheduled[topic] {
			covered++
		}
	}

	fraction := float64(covered) / float64(len(topics))
	if fraction < opts.CoverageThreshold {
		return []Issue{{
			Kind:     IssueCoverageGap,
			Severity: SeveritySoft,
			Detail: fmt.Sprintf("plan covers %d of %d syllabus topics (%.0f%%), below the %.0f%% threshold",
				covered, len(topics), fraction*100, opts.CoverageThreshold*100),
		}}
	}
	return nil
}

func equalCounts(a, b map[int]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// sortIssues orders issues by kind then detail for stable output.
func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Kind != issues[j].Kind {
			return issues[i].Kind < issues[j].Kind
		}
		return issues[i].Detail < issues[j].Detail
	})
}
