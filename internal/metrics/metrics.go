// Package metrics computes deterministic quality scores for generated
// artifacts. Every score is a pure function of the artifact, the
// syllabus, and the rule tables, clamped to [0,1]. Scores depend only
// on semantic content, never on field ordering or serialization.
package metrics

import (
	"math"
	"strings"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/rules"
)

// Metrics is the quality score vector attached to a result envelope.
type Metrics struct {
	BloomAlignment       float64 `json:"bloom_alignment"`
	CoverageCompleteness float64 `json:"coverage_completeness"`
	DifficultyBalance    float64 `json:"difficulty_balance"`
	Explainability       float64 `json:"explainability"`
}

// Compute assembles the full metric vector for an artifact. Metrics
// that do not apply to the artifact kind score zero.
func Compute(artifact academic.Artifact, syllabus academic.Syllabus, tables *rules.Tables) Metrics {
	var m Metrics
	switch artifact.Kind {
	case academic.ArtifactLessonPlan:
		if artifact.LessonPlan != nil {
			m.CoverageCompleteness = CoverageCompleteness(artifact.LessonPlan.ScheduledTopics(), syllabus)
		}
	case academic.ArtifactQuestionSet:
		if artifact.QuestionSet != nil {
			m.BloomAlignment = BloomAlignment(artifact.QuestionSet, tables)
			m.CoverageCompleteness = CoverageCompleteness(questionTopics(artifact.QuestionSet), syllabus)
			m.DifficultyBalance = DifficultyBalance(artifact.QuestionSet)
		}
	case academic.ArtifactEvaluation:
		if artifact.Evaluation != nil {
			m.Explainability = Explainability(artifact.Evaluation)
		}
	}
	return m
}

// BloomAlignment is the fraction of questions whose Bloom level falls
// in a bucket the expected distribution actually requests.
func BloomAlignment(set *academic.QuestionSet, tables *rules.Tables) float64 {
	if len(set.Questions) == 0 {
		return 0
	}
	expected := tables.Distribution(set.ExamType)

	// Each expected bucket absorbs at most its share of questions;
	// surplus questions at an over-represented level do not count as
	// aligned.
	expectedTotal := 0
	for _, count := range expected {
		expectedTotal += count
	}
	if expectedTotal == 0 {
		return 0
	}

	aligned := 0.0
	hist := make(map[academic.BloomLevel]int)
	for _, q := range set.Questions {
		hist[q.BloomLevel]++
	}
	scale := float64(len(set.Questions)) / float64(expectedTotal)
	for level, want := range expected {
		capacity := float64(want) * scale
		aligned += math.Min(float64(hist[level]), capacity)
	}

	return clamp(aligned / float64(len(set.Questions)))
}

// CoverageCompleteness is the fraction of syllabus topics the artifact
// touches.
func CoverageCompleteness(topics []string, syllabus academic.Syllabus) float64 {
	all := syllabus.TopicSet()
	if len(all) == 0 {
		return 0
	}
	covered := make(map[string]bool)
	for _, t := range topics {
		key := academic.NormalizeTopic(t)
		if all[key] {
			covered[key] = true
		}
	}
	return clamp(float64(len(covered)) / float64(len(all)))
}

// DifficultyBalance is 1 minus the normalized standard deviation of
// question difficulty, measured over Bloom level ordinals. A paper
// with every question at one level scores 1 for uniformity of a
// different kind, so the measure rewards spread-free consistency, not
// variety; variety is the Bloom alignment metric's job.
func DifficultyBalance(set *academic.QuestionSet) float64 {
	if len(set.Questions) == 0 {
		return 0
	}

	values := make([]float64, 0, len(set.Questions))
	for _, q := range set.Questions {
		if ord := q.BloomLevel.Ordinal(); ord > 0 {
			values = append(values, float64(ord))
		}
	}
	if len(values) == 0 {
		return 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	// The widest possible spread over the six ordinals has a standard
	// deviation of (6-1)/2 = 2.5; normalize against it.
	const maxStdDev = 2.5
	return clamp(1 - math.Sqrt(variance)/maxStdDev)
}

// Explainability scores an evaluation's feedback: overall feedback
// presence and length, plus the fraction of criteria with comments.
func Explainability(eval *academic.Evaluation) float64 {
	score := 0.0

	feedback := strings.TrimSpace(eval.Feedback)
	switch {
	case len(feedback) >= 200:
		score += 0.5
	case len(feedback) >= 50:
		score += 0.35
	case len(feedback) > 0:
		score += 0.2
	}

	if len(eval.Criteria) > 0 {
		commented := 0
		for _, c := range eval.Criteria {
			if strings.TrimSpace(c.Comment) != "" {
				commented++
			}
		}
		score += 0.5 * float64(commented) / float64(len(eval.Criteria))
	}

	return clamp(score)
}

func questionTopics(set *academic.QuestionSet) []string {
	topics := make([]string, 0, len(set.Questions))
	for _, q := range set.Questions {
		topics = append(topics, q.Topic)
	}
	return topics
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
