package academic

import (
	"errors"
	"fmt"
	"strings"
)

// BloomLevel is one of the six cognitive-complexity categories from
// Bloom's revised taxonomy, ordered from lower- to higher-order thinking.
type BloomLevel string

const (
	BloomRemember   BloomLevel = "Remember"
	BloomUnderstand BloomLevel = "Understand"
	BloomApply      BloomLevel = "Apply"
	BloomAnalyze    BloomLevel = "Analyze"
	BloomEvaluate   BloomLevel = "Evaluate"
	BloomCreate     BloomLevel = "Create"
)

// BloomLevels returns all levels in taxonomy order.
func BloomLevels() []BloomLevel {
	return []BloomLevel{
		BloomRemember, BloomUnderstand, BloomApply,
		BloomAnalyze, BloomEvaluate, BloomCreate,
	}
}

// Ordinal returns the 1-based difficulty ordinal of the level, or 0 for
// an unknown level.
func (b BloomLevel) Ordinal() int {
	for i, level := range BloomLevels() {
		if level == b {
			return i + 1
		}
	}
	return 0
}

// Valid reports whether b is a known taxonomy level.
func (b BloomLevel) Valid() bool {
	return b.Ordinal() != 0
}

// ParseBloomLevel parses a level name case-insensitively.
func ParseBloomLevel(s string) (BloomLevel, error) {
	for _, level := range BloomLevels() {
		if strings.EqualFold(string(level), s) {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown bloom level %q", s)
}

// TaskKind identifies what the user asked the system to produce.
type TaskKind string

const (
	TaskLessonPlan TaskKind = "lesson_plan"
	TaskAssessment TaskKind = "assessment"
	TaskEvaluation TaskKind = "evaluation"
)

// ParseTaskKind normalizes the task aliases the intent model emits
// ("teaching_plan", "questions", "question_paper", ...) to a TaskKind.
func ParseTaskKind(s string) (TaskKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lesson_plan", "teaching_plan", "plan":
		return TaskLessonPlan, nil
	case "assessment", "assignments", "questions", "question_paper":
		return TaskAssessment, nil
	case "evaluation", "grading":
		return TaskEvaluation, nil
	default:
		return "", fmt.Errorf("unknown task kind %q", s)
	}
}

// ExamType selects the exam pattern and default Bloom distribution.
type ExamType string

const (
	ExamMid        ExamType = "mid"
	ExamEnd        ExamType = "end"
	ExamQuiz       ExamType = "quiz"
	ExamAssignment ExamType = "assignment"
)

// ExamTypes returns the supported exam types.
func ExamTypes() []ExamType {
	return []ExamType{ExamMid, ExamEnd, ExamQuiz, ExamAssignment}
}

// Valid reports whether e is a supported exam type.
func (e ExamType) Valid() bool {
	for _, t := range ExamTypes() {
		if t == e {
			return true
		}
	}
	return false
}

// Intent is the structured interpretation of a user request. Produced
// once per request by the intent agent and never mutated afterwards.
type Intent struct {
	Tasks       []TaskKind   `json:"tasks"`
	Subject     string       `json:"subject,omitempty"`
	Units       []int        `json:"units,omitempty"`
	Weeks       int          `json:"weeks,omitempty"`
	BloomLevels []BloomLevel `json:"bloom_levels,omitempty"`
	ExamType    ExamType     `json:"exam_type,omitempty"`
	Summary     string       `json:"summary,omitempty"`
}

// Unit is one syllabus unit.
type Unit struct {
	Number           int      `json:"number"`
	Name             string   `json:"name"`
	Topics           []string `json:"topics"`
	Hours            int      `json:"hours,omitempty"`
	LearningOutcomes []string `json:"learning_outcomes,omitempty"`
}

// Syllabus is the parsed course syllabus, the single source of truth all
// downstream stages validate against.
type Syllabus struct {
	Subject    string `json:"subject"`
	CourseCode string `json:"course_code,omitempty"`
	Credits    int    `json:"credits,omitempty"`
	Units      []Unit `json:"units"`
}

// ErrUnitOrder indicates unit numbers are not unique and strictly increasing.
var ErrUnitOrder = errors.New("unit numbers must be unique and strictly increasing")

// ValidateUnits enforces the unit-number invariant.
func (s *Syllabus) ValidateUnits() error {
	prev := 0
	for _, u := range s.Units {
		if u.Number <= prev {
			return fmt.Errorf("%w: unit %d after unit %d", ErrUnitOrder, u.Number, prev)
		}
		prev = u.Number
	}
	return nil
}

// TotalHours sums the declared unit hours.
func (s *Syllabus) TotalHours() int {
	total := 0
	for _, u := range s.Units {
		total += u.Hours
	}
	return total
}

// TopicSet returns the lowercased set of all syllabus topics.
func (s *Syllabus) TopicSet() map[string]bool {
	set := make(map[string]bool)
	for _, u := range s.Units {
		for _, t := range u.Topics {
			set[NormalizeTopic(t)] = true
		}
	}
	return set
}

// UnitByNumber returns the unit with the given number, if present.
func (s *Syllabus) UnitByNumber(n int) (Unit, bool) {
	for _, u := range s.Units {
		if u.Number == n {
			return u, true
		}
	}
	return Unit{}, false
}

// NormalizeTopic canonicalizes a topic string for set membership tests.
func NormalizeTopic(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// WeekPlan is one week of a lesson plan.
type WeekPlan struct {
	WeekNumber int      `json:"week_number"`
	Unit       int      `json:"unit,omitempty"`
	Topics     []string `json:"topics"`
	Hours      int      `json:"hours"`
	Objectives []string `json:"objectives,omitempty"`
	Methods    []string `json:"methods,omitempty"`
}

// LessonPlan is a weekly teaching schedule derived from a syllabus.
type LessonPlan struct {
	Subject    string     `json:"subject"`
	TotalWeeks int        `json:"total_weeks"`
	Weeks      []WeekPlan `json:"weeks"`
}

// ScheduledTopics returns the union of topics across all weeks, normalized.
func (p *LessonPlan) ScheduledTopics() []string {
	seen := make(map[string]bool)
	var topics []string
	for _, w := range p.Weeks {
		for _, t := range w.Topics {
			key := NormalizeTopic(t)
			if !seen[key] {
				seen[key] = true
				topics = append(topics, t)
			}
		}
	}
	return topics
}

// Question is one generated exam question.
type Question struct {
	Number     int        `json:"number"`
	Text       string     `json:"text"`
	BloomLevel BloomLevel `json:"bloom_level"`
	Marks      int        `json:"marks"`
	Unit       int        `json:"unit"`
	Topic      string     `json:"topic"`
}

// QuestionSet is a generated exam or assignment.
type QuestionSet struct {
	ExamType  ExamType   `json:"exam_type"`
	Questions []Question `json:"questions"`
}

// TotalMarks sums marks across all questions.
func (q *QuestionSet) TotalMarks() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Marks
	}
	return total
}

// BloomHistogram counts questions per Bloom level.
func (q *QuestionSet) BloomHistogram() map[BloomLevel]int {
	hist := make(map[BloomLevel]int)
	for _, question := range q.Questions {
		hist[question.BloomLevel]++
	}
	return hist
}

// CriterionScore is one rubric criterion's score within an evaluation.
type CriterionScore struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Comment   string  `json:"comment,omitempty"`
}

// Evaluation is the graded result of a student answer against a rubric.
type Evaluation struct {
	TotalScore float64          `json:"total_score"`
	MaxScore   float64          `json:"max_score"`
	Criteria   []CriterionScore `json:"criteria"`
	Feedback   string           `json:"feedback"`
}

// ArtifactKind discriminates Artifact variants.
type ArtifactKind string

const (
	ArtifactLessonPlan  ArtifactKind = "lesson_plan"
	ArtifactQuestionSet ArtifactKind = "question_set"
	ArtifactEvaluation  ArtifactKind = "evaluation"
)

// Artifact is the polymorphic envelope for generated content. Exactly one
// variant matching Kind is non-nil.
type Artifact struct {
	Kind        ArtifactKind `json:"kind"`
	LessonPlan  *LessonPlan  `json:"lesson_plan,omitempty"`
	QuestionSet *QuestionSet `json:"question_set,omitempty"`
	Evaluation  *Evaluation  `json:"evaluation,omitempty"`
}
