package compliance

import (
	"reflect"
	"testing"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/rules"
)

func testSyllabus() academic.Syllabus {
	return academic.Syllabus{
		Subject: "Data Structures",
		Units: []academic.Unit{
			{Number: 1, Name: "Linear Structures", Topics: []string{"Arrays", "Linked Lists", "Stacks", "Queues"}},
			{Number: 2, Name: "Trees", Topics: []string{"Binary Trees", "BST", "Heaps"}},
		},
	}
}

// compliantQuiz matches the default quiz pattern (6 questions, 1 mark
// each) and its Bloom distribution (3 Remember, 2 Understand, 1 Apply).
func compliantQuiz() *academic.QuestionSet {
	return &academic.QuestionSet{
		ExamType: academic.ExamQuiz,
		Questions: []academic.Question{
			{Number: 1, Text: "Define an array.", BloomLevel: academic.BloomRemember, Marks: 1, Unit: 1, Topic: "Arrays"},
			{Number: 2, Text: "List stack operations.", BloomLevel: academic.BloomRemember, Marks: 1, Unit: 1, Topic: "Stacks"},
			{Number: 3, Text: "State the heap property.", BloomLevel: academic.BloomRemember, Marks: 1, Unit: 2, Topic: "Heaps"},
			{Number: 4, Text: "Explain queue ordering.", BloomLevel: academic.BloomUnderstand, Marks: 1, Unit: 1, Topic: "Queues"},
			{Number: 5, Text: "Describe BST search.", BloomLevel: academic.BloomUnderstand, Marks: 1, Unit: 2, Topic: "BST"},
			{Number: 6, Text: "Implement list insertion.", BloomLevel: academic.BloomApply, Marks: 1, Unit: 1, Topic: "Linked Lists"},
		},
	}
}

func questionArtifact(set *academic.QuestionSet) academic.Artifact {
	return academic.Artifact{Kind: academic.ArtifactQuestionSet, QuestionSet: set}
}

func planArtifact(plan *academic.LessonPlan) academic.Artifact {
	return academic.Artifact{Kind: academic.ArtifactLessonPlan, LessonPlan: plan}
}

func TestValidateCompliantQuiz(t *testing.T) {
	result := Validate(questionArtifact(compliantQuiz()), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusPass {
		t.Fatalf("Status = %v, want PASS; issues: %+v", result.Status, result.Issues)
	}
	if len(result.Issues) != 0 {
		t.Errorf("Issues = %+v, want none", result.Issues)
	}
}

func TestValidateOutOfSyllabusTopic(t *testing.T) {
	set := compliantQuiz()
	set.Questions[2].Topic = "Graph Coloring"
	set.Questions[2].Unit = 7

	result := Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusFail {
		t.Fatalf("Status = %v, want FAIL", result.Status)
	}

	kinds := make(map[IssueKind]int)
	for _, issue := range result.Issues {
		kinds[issue.Kind]++
		if issue.Kind == IssueOutOfSyllabus && issue.Severity != SeverityRequired {
			t.Errorf("out-of-syllabus severity = %v, want REQUIRED", issue.Severity)
		}
	}
	// One for the unknown topic, one for the unknown unit.
	if kinds[IssueOutOfSyllabus] != 2 {
		t.Errorf("OUT_OF_SYLLABUS count = %d, want 2", kinds[IssueOutOfSyllabus])
	}
}

func TestValidateBloomImbalance(t *testing.T) {
	set := compliantQuiz()
	// All six questions at Remember skews the distribution far past
	// tolerance while keeping the pattern intact.
	for i := range set.Questions {
		set.Questions[i].BloomLevel = academic.BloomRemember
	}

	result := Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusFail {
		t.Fatalf("Status = %v, want FAIL", result.Status)
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Kind == IssueBloomImbalance {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a BLOOM_IMBALANCE issue, got %+v", result.Issues)
	}
}

func TestValidateBloomImbalanceAdvisoryWithoutExamRequest(t *testing.T) {
	set := compliantQuiz()
	for i := range set.Questions {
		set.Questions[i].BloomLevel = academic.BloomRemember
	}

	opts := DefaultOptions()
	opts.ExamRequested = false

	result := Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), opts)
	if result.Status != StatusPass {
		t.Fatalf("Status = %v, want PASS when no exam type was requested", result.Status)
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Kind == IssueBloomImbalance {
			found = true
			if issue.Severity != SeveritySoft {
				t.Errorf("severity = %v, want SOFT", issue.Severity)
			}
		}
	}
	if !found {
		t.Errorf("expected an advisory BLOOM_IMBALANCE issue, got %+v", result.Issues)
	}
}

func TestValidateAgainstRequestedLevels(t *testing.T) {
	// All six questions at Apply matches a requested Apply emphasis but
	// not the default quiz distribution.
	set := compliantQuiz()
	for i := range set.Questions {
		set.Questions[i].BloomLevel = academic.BloomApply
	}

	opts := DefaultOptions()
	opts.RequestedLevels = []academic.BloomLevel{academic.BloomApply}

	result := Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), opts)
	if result.Status != StatusPass {
		t.Fatalf("Status = %v, want PASS against the requested emphasis; issues: %+v",
			result.Status, result.Issues)
	}

	result = Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusFail {
		t.Fatalf("Status = %v, want FAIL against the default distribution", result.Status)
	}
}

func TestValidatePatternViolation(t *testing.T) {
	set := compliantQuiz()
	set.Questions = set.Questions[:5]

	result := Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusFail {
		t.Fatalf("Status = %v, want FAIL", result.Status)
	}
	found := false
	for _, issue := range result.Issues {
		if issue.Kind == IssuePatternViolation {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a PATTERN_VIOLATION issue, got %+v", result.Issues)
	}
}

func TestValidateMarkMultisetMismatch(t *testing.T) {
	// Right count and total, wrong arrangement: mid expects 5x2 + 5x8,
	// this paper is 10 questions of 5 marks.
	set := &academic.QuestionSet{ExamType: academic.ExamMid}
	levels := []academic.BloomLevel{
		academic.BloomRemember, academic.BloomRemember,
		academic.BloomUnderstand, academic.BloomUnderstand, academic.BloomUnderstand,
		academic.BloomApply, academic.BloomApply, academic.BloomApply,
		academic.BloomAnalyze, academic.BloomAnalyze,
	}
	topics := []string{"Arrays", "Linked Lists", "Stacks", "Queues", "Binary Trees", "BST", "Heaps", "Arrays", "Stacks", "BST"}
	for i := 0; i < 10; i++ {
		set.Questions = append(set.Questions, academic.Question{
			Number: i + 1, Text: "Q", BloomLevel: levels[i], Marks: 5, Unit: 1, Topic: topics[i],
		})
	}

	result := Validate(questionArtifact(set), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusFail {
		t.Fatalf("Status = %v, want FAIL; issues: %+v", result.Status, result.Issues)
	}
}

func TestValidateCoverageGapIsSoft(t *testing.T) {
	plan := &academic.LessonPlan{
		Subject:    "Data Structures",
		TotalWeeks: 2,
		Weeks: []academic.WeekPlan{
			{WeekNumber: 1, Unit: 1, Topics: []string{"Arrays"}, Hours: 3},
			{WeekNumber: 2, Unit: 1, Topics: []string{"Stacks"}, Hours: 3},
		},
	}

	result := Validate(planArtifact(plan), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusPass {
		t.Fatalf("Status = %v, want PASS (coverage gaps are advisory)", result.Status)
	}
	if len(result.Issues) != 1 || result.Issues[0].Kind != IssueCoverageGap {
		t.Fatalf("Issues = %+v, want exactly one COVERAGE_GAP", result.Issues)
	}
	if result.Issues[0].Severity != SeveritySoft {
		t.Errorf("coverage severity = %v, want SOFT", result.Issues[0].Severity)
	}
}

func TestValidateFullCoveragePlan(t *testing.T) {
	plan := &academic.LessonPlan{
		Subject:    "Data Structures",
		TotalWeeks: 3,
		Weeks: []academic.WeekPlan{
			{WeekNumber: 1, Unit: 1, Topics: []string{"Arrays", "Linked Lists"}, Hours: 3},
			{WeekNumber: 2, Unit: 1, Topics: []string{"Stacks", "Queues"}, Hours: 3},
			{WeekNumber: 3, Unit: 2, Topics: []string{"Binary Trees", "BST", "Heaps"}, Hours: 3},
		},
	}

	result := Validate(planArtifact(plan), testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusPass || len(result.Issues) != 0 {
		t.Errorf("result = %+v, want clean PASS", result)
	}
}

func TestValidateIdempotent(t *testing.T) {
	artifact := questionArtifact(compliantQuiz())
	artifact.QuestionSet.Questions[0].Topic = "Graph Coloring"

	first := Validate(artifact, testSyllabus(), rules.Defaults(), DefaultOptions())
	second := Validate(artifact, testSyllabus(), rules.Defaults(), DefaultOptions())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated validation differs:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestValidateEvaluationAlwaysPasses(t *testing.T) {
	artifact := academic.Artifact{
		Kind: academic.ArtifactEvaluation,
		Evaluation: &academic.Evaluation{
			TotalScore: 8, MaxScore: 10,
			Criteria: []academic.CriterionScore{{Criterion: "correctness", Score: 8, MaxScore: 10}},
			Feedback: "solid",
		},
	}
	result := Validate(artifact, testSyllabus(), rules.Defaults(), DefaultOptions())
	if result.Status != StatusPass || len(result.Issues) != 0 {
		t.Errorf("result = %+v, want clean PASS", result)
	}
}

func TestValidateBatch(t *testing.T) {
	good := questionArtifact(compliantQuiz())
	bad := questionArtifact(compliantQuiz())
	bad.QuestionSet = &academic.QuestionSet{ExamType: academic.ExamQuiz, Questions: compliantQuiz().Questions[:3]}

	overall, results := ValidateBatch([]academic.Artifact{good, bad}, testSyllabus(), rules.Defaults(), DefaultOptions())
	if overall != StatusFail {
		t.Errorf("overall = %v, want FAIL", overall)
	}
	if results[0].Status != StatusPass || results[1].Status != StatusFail {
		t.Errorf("per-item statuses = %v, %v; want PASS, FAIL", results[0].Status, results[1].Status)
	}
}
