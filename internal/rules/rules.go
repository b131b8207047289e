package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/veldtlabs/curriculumd/internal/academic"
)

// Section is one block of an exam pattern: a number of questions worth a
// fixed number of marks each.
type Section struct {
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
	MarksEach     int    `json:"marks_each"`
}

// ExamPattern describes the structure an exam of a given type must follow.
type ExamPattern struct {
	Sections []Section `json:"sections"`
}

// TotalMarks is the mark total implied by the pattern's sections.
func (p ExamPattern) TotalMarks() int {
	total := 0
	for _, s := range p.Sections {
		total += s.QuestionCount * s.MarksEach
	}
	return total
}

// QuestionCount is the number of questions implied by the pattern.
func (p ExamPattern) QuestionCount() int {
	count := 0
	for _, s := range p.Sections {
		count += s.QuestionCount
	}
	return count
}

// RubricCriterion is one grading criterion with a relative weight.
type RubricCriterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Weight      float64 `json:"weight"`
}

// Tables holds every rule table. Immutable after Load.
type Tables struct {
	// BloomVerbs maps each taxonomy level to its characteristic verbs.
	BloomVerbs map[academic.BloomLevel][]string

	// Patterns maps exam types to their required structure.
	Patterns map[academic.ExamType]ExamPattern

	// Distributions maps exam types to the default question count per
	// Bloom level.
	Distributions map[academic.ExamType]map[academic.BloomLevel]int

	// Rubric lists the grading criteria used by the evaluation agent.
	Rubric []RubricCriterion
}

// Paths points at the optional JSON rule files.
type Paths struct {
	BloomTaxonomy string
	ExamPattern   string
	Rubrics       string
}

// Load reads rule tables from the given paths, falling back to defaults
// for any file that is missing, empty, or unparseable in a recoverable
// way. A present-but-corrupt file is an error; silence would hide a
// misconfigured deployment.
func Load(p Paths) (*Tables, error) {
	t := Defaults()

	if p.BloomTaxonomy != "" {
		verbs, err := loadBloomVerbs(p.BloomTaxonomy)
		if err != nil {
			return nil, fmt.Errorf("loading bloom taxonomy: %w", err)
		}
		if verbs != nil {
			t.BloomVerbs = verbs
		}
	}

	if p.ExamPattern != "" {
		patterns, err := loadJSONTable[map[academic.ExamType]ExamPattern](p.ExamPattern)
		if err != nil {
			return nil, fmt.Errorf("loading exam pattern: %w", err)
		}
		if patterns != nil {
			t.Patterns = *patterns
		}
	}

	if p.Rubrics != "" {
		rubric, err := loadJSONTable[[]RubricCriterion](p.Rubrics)
		if err != nil {
			return nil, fmt.Errorf("loading rubrics: %w", err)
		}
		if rubric != nil {
			t.Rubric = *rubric
		}
	}

	return t, nil
}

// loadJSONTable reads and decodes a JSON file. Missing or empty files
// return nil without error so the caller keeps the defaults.
func loadJSONTable[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &v, nil
}

// bloomTaxonomyFile matches the on-disk taxonomy shape:
//
//	{"Remember": {"verbs": ["define", ...]}, ...}
type bloomTaxonomyEntry struct {
	Verbs []string `json:"verbs"`
}

func loadBloomVerbs(path string) (map[academic.BloomLevel][]string, error) {
	raw, err := loadJSONTable[map[string]bloomTaxonomyEntry](path)
	if err != nil || raw == nil {
		return nil, err
	}
	verbs := make(map[academic.BloomLevel][]string, len(*raw))
	for name, entry := range *raw {
		level, err := academic.ParseBloomLevel(name)
		if err != nil {
			return nil, err
		}
		verbs[level] = entry.Verbs
	}
	return verbs, nil
}

// Defaults returns the built-in rule tables.
func Defaults() *Tables {
	return &Tables{
		BloomVerbs: map[academic.BloomLevel][]string{
			academic.BloomRemember:   {"define", "list", "recall", "identify", "state"},
			academic.BloomUnderstand: {"explain", "describe", "summarize", "interpret"},
			academic.BloomApply:      {"apply", "solve", "demonstrate", "use", "implement"},
			academic.BloomAnalyze:    {"analyze", "compare", "differentiate", "examine"},
			academic.BloomEvaluate:   {"evaluate", "justify", "critique", "assess"},
			academic.BloomCreate:     {"design", "develop", "formulate", "construct"},
		},
		Patterns: map[academic.ExamType]ExamPattern{
			academic.ExamQuiz: {Sections: []Section{
				{Name: "Section A", QuestionCount: 6, MarksEach: 1},
			}},
			academic.ExamAssignment: {Sections: []Section{
				{Name: "Section A", QuestionCount: 5, MarksEach: 10},
			}},
			academic.ExamMid: {Sections: []Section{
				{Name: "Section A", QuestionCount: 5, MarksEach: 2},
				{Name: "Section B", QuestionCount: 5, MarksEach: 8},
			}},
			academic.ExamEnd: {Sections: []Section{
				{Name: "Section A", QuestionCount: 10, MarksEach: 2},
				{Name: "Section B", QuestionCount: 5, MarksEach: 16},
			}},
		},
		Distributions: map[academic.ExamType]map[academic.BloomLevel]int{
			academic.ExamQuiz: {
				academic.BloomRemember:   3,
				academic.BloomUnderstand: 2,
				academic.BloomApply:      1,
			},
			academic.ExamAssignment: {
				academic.BloomApply:    2,
				academic.BloomAnalyze:  2,
				academic.BloomEvaluate: 1,
			},
			academic.ExamMid: {
				academic.BloomRemember:   2,
				academic.BloomUnderstand: 3,
				academic.BloomApply:      3,
				academic.BloomAnalyze:    2,
			},
			academic.ExamEnd: {
				academic.BloomRemember:   2,
				academic.BloomUnderstand: 2,
				academic.BloomApply:      3,
				academic.BloomAnalyze:    2,
				academic.BloomEvaluate:   1,
			},
		},
		Rubric: []RubricCriterion{
			{Name: "correctness", Description: "Factual and technical accuracy of the answer", Weight: 0.5},
			{Name: "completeness", Description: "Coverage of all parts of the question", Weight: 0.3},
			{Name: "clarity", Description: "Structure and readability of the answer", Weight: 0.2},
		},
	}
}

// Distribution returns the default Bloom distribution for an exam type,
// falling back to the mid-exam distribution for unknown types.
func (t *Tables) Distribution(examType academic.ExamType) map[academic.BloomLevel]int {
	if d, ok := t.Distributions[examType]; ok {
		return d
	}
	return t.Distributions[academic.ExamMid]
}

// RequestedDistribution returns the Bloom distribution a question set
// is held to. With no requested levels it is the table default for the
// exam type. Otherwise the pattern's question count is spread over the
// requested levels as evenly as possible, in taxonomy order, with the
// remainder going to the earliest levels. The same distribution drives
// both generation and validation, so the two sides always agree.
func (t *Tables) RequestedDistribution(examType academic.ExamType, levels []academic.BloomLevel) map[academic.BloomLevel]int {
	if len(levels) == 0 {
		return t.Distribution(examType)
	}

	total := 0
	if pattern, ok := t.Pattern(examType); ok {
		total = pattern.QuestionCount()
	} else {
		for _, count := range t.Distribution(examType) {
			total += count
		}
	}

	requested := make(map[academic.BloomLevel]bool, len(levels))
	for _, level := range levels {
		requested[level] = true
	}
	ordered := make([]academic.BloomLevel, 0, len(requested))
	for _, level := range academic.BloomLevels() {
		if requested[level] {
			ordered = append(ordered, level)
		}
	}
	if len(ordered) == 0 {
		return t.Distribution(examType)
	}

	dist := make(map[academic.BloomLevel]int, len(ordered))
	base, rem := total/len(ordered), total%len(ordered)
	for i, level := range ordered {
		dist[level] = base
		if i < rem {
			dist[level]++
		}
	}
	return dist
}

// Pattern returns the exam pattern for an exam type.
func (t *Tables) Pattern(examType academic.ExamType) (ExamPattern, bool) {
	p, ok := t.Patterns[examType]
	return p, ok
}

// VerbsFor returns the characteristic verbs for a Bloom level.
func (t *Tables) VerbsFor(level academic.BloomLevel) []string {
	return t.BloomVerbs[level]
}
