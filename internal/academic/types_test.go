package academic

import (
	"errors"
	"testing"
)

func TestBloomLevelOrdinal(t *testing.T) {
	tests := []struct {
		level BloomLevel
		want  int
	}{
		{BloomRemember, 1},
		{BloomUnderstand, 2},
		{BloomApply, 3},
		{BloomAnalyze, 4},
		{BloomEvaluate, 5},
		{BloomCreate, 6},
		{BloomLevel("Memorize"), 0},
	}

	for _, tt := range tests {
		if got := tt.level.Ordinal(); got != tt.want {
			t.Errorf("Ordinal(%q) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestParseBloomLevel(t *testing.T) {
	level, err := ParseBloomLevel("analyze")
	if err != nil || level != BloomAnalyze {
		t.Errorf("ParseBloomLevel(analyze) = %v, %v", level, err)
	}
	if _, err := ParseBloomLevel("memorize"); err == nil {
		t.Error("ParseBloomLevel(memorize) should fail")
	}
}

func TestParseTaskKind(t *testing.T) {
	tests := []struct {
		in      string
		want    TaskKind
		wantErr bool
	}{
		{in: "lesson_plan", want: TaskLessonPlan},
		{in: "teaching_plan", want: TaskLessonPlan},
		{in: " Plan ", want: TaskLessonPlan},
		{in: "question_paper", want: TaskAssessment},
		{in: "questions", want: TaskAssessment},
		{in: "grading", want: TaskEvaluation},
		{in: "homework", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTaskKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTaskKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseTaskKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateUnits(t *testing.T) {
	valid := Syllabus{Units: []Unit{{Number: 1}, {Number: 2}, {Number: 5}}}
	if err := valid.ValidateUnits(); err != nil {
		t.Errorf("ValidateUnits() = %v for increasing units", err)
	}

	duplicate := Syllabus{Units: []Unit{{Number: 1}, {Number: 1}}}
	if err := duplicate.ValidateUnits(); !errors.Is(err, ErrUnitOrder) {
		t.Errorf("ValidateUnits() = %v for duplicate units, want ErrUnitOrder", err)
	}

	descending := Syllabus{Units: []Unit{{Number: 2}, {Number: 1}}}
	if err := descending.ValidateUnits(); !errors.Is(err, ErrUnitOrder) {
		t.Errorf("ValidateUnits() = %v for descending units, want ErrUnitOrder", err)
	}
}

func TestTopicSet(t *testing.T) {
	s := Syllabus{Units: []Unit{
		{Number: 1, Topics: []string{"Arrays", " linked lists "}},
		{Number: 2, Topics: []string{"Trees"}},
	}}
	set := s.TopicSet()
	for _, topic := range []string{"arrays", "linked lists", "trees"} {
		if !set[topic] {
			t.Errorf("TopicSet() missing %q", topic)
		}
	}
	if set["stacks"] {
		t.Error("TopicSet() contains topic not in syllabus")
	}
}

func TestScheduledTopicsDeduplicates(t *testing.T) {
	plan := LessonPlan{Weeks: []WeekPlan{
		{WeekNumber: 1, Topics: []string{"Arrays", "Stacks"}},
		{WeekNumber: 2, Topics: []string{"arrays", "Queues"}},
	}}
	topics := plan.ScheduledTopics()
	if len(topics) != 3 {
		t.Errorf("ScheduledTopics() = %v, want 3 unique topics", topics)
	}
}

func TestQuestionSetAggregates(t *testing.T) {
	set := QuestionSet{Questions: []Question{
		{BloomLevel: BloomRemember, Marks: 2},
		{BloomLevel: BloomRemember, Marks: 2},
		{BloomLevel: BloomApply, Marks: 8},
	}}
	if got := set.TotalMarks(); got != 12 {
		t.Errorf("TotalMarks() = %d, want 12", got)
	}
	hist := set.BloomHistogram()
	if hist[BloomRemember] != 2 || hist[BloomApply] != 1 {
		t.Errorf("BloomHistogram() = %v", hist)
	}
}
