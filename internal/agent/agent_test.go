package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/curriculumd/internal/academic"
	"github.com/veldtlabs/curriculumd/internal/rules"
)

// mockClient is a testify mock over llm.Client.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func testSyllabus() academic.Syllabus {
	return academic.Syllabus{
		Subject: "Data Structures",
		Units: []academic.Unit{
			{Number: 1, Name: "Arrays and Lists", Topics: []string{"Arrays", "Linked Lists"}, Hours: 8},
			{Number: 2, Name: "Trees", Topics: []string{"Binary Trees", "BST"}, Hours: 8},
		},
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare json", in: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fenced with language", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", in: "  \n```json\n{\"a\":1}\n```\n ", want: `{"a":1}`},
		{name: "fence on same line", in: "```{\"a\":1}\n```", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestDecodeJSONSchemaErrors(t *testing.T) {
	var out struct {
		Weeks int `json:"weeks"`
	}

	err := decodeJSON("not json at all", &out)
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))

	err = decodeJSON(`{"weeks":"twelve"}`, &out)
	require.Error(t, err)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "weeks", se.Field)

	err = decodeJSON("", &out)
	assert.True(t, IsSchemaError(err))
}

func TestIntentAgentRun(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"tasks":["teaching_plan","question_paper"],"subject":"Data Structures","weeks":12,"exam_type":"mid","summary":"plan and mid exam"}`, nil)

	intent, err := NewIntentAgent(client, nil).Run(context.Background(), "make a 12 week plan and a mid exam")
	require.NoError(t, err)
	assert.Equal(t, []academic.TaskKind{academic.TaskLessonPlan, academic.TaskAssessment}, intent.Tasks)
	assert.Equal(t, academic.ExamMid, intent.ExamType)
	assert.Equal(t, 12, intent.Weeks)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestIntentAgentNoTasks(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(`{"tasks":[],"summary":"unclear"}`, nil)

	_, err := NewIntentAgent(client, nil).Run(context.Background(), "hello")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "tasks", se.Field)
}

func TestIntentAgentUnknownExamType(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"tasks":["assessment"],"exam_type":"final"}`, nil)

	_, err := NewIntentAgent(client, nil).Run(context.Background(), "final exam please")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "exam_type", se.Field)
}

func TestSyllabusAgentRun(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		"```json\n{\"subject\":\"Data Structures\",\"units\":[{\"number\":1,\"name\":\"Arrays\",\"topics\":[\"Arrays\"],\"hours\":8},{\"number\":2,\"name\":\"Trees\",\"topics\":[\"Binary Trees\"],\"hours\":8}]}\n```", nil)

	syllabus, err := NewSyllabusAgent(client, nil, 48).Run(context.Background(), "syllabus text")
	require.NoError(t, err)
	assert.Len(t, syllabus.Units, 2)
	assert.Equal(t, "Data Structures", syllabus.Subject)
}

func TestSyllabusAgentUnitOrder(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"subject":"DS","units":[{"number":2,"name":"B","topics":["t"]},{"number":1,"name":"A","topics":["t"]}]}`, nil)

	_, err := NewSyllabusAgent(client, nil, 0).Run(context.Background(), "text")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "units", se.Field)
}

func TestLessonPlanAgentRun(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"subject":"Data Structures","total_weeks":2,"weeks":[{"week_number":1,"unit":1,"topics":["Arrays"],"hours":3},{"week_number":2,"unit":2,"topics":["Binary Trees"],"hours":3}]}`, nil)

	plan, err := NewLessonPlanAgent(client, nil).Run(context.Background(), testSyllabus(), 2, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.TotalWeeks)
	assert.Len(t, plan.Weeks, 2)
}

func TestLessonPlanAgentWeekGap(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"subject":"DS","weeks":[{"week_number":1,"topics":["Arrays"],"hours":3},{"week_number":3,"topics":["BST"],"hours":3}]}`, nil)

	_, err := NewLessonPlanAgent(client, nil).Run(context.Background(), testSyllabus(), 2, 3, nil)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "weeks", se.Field)
}

func TestLessonPlanAgentHintsInPrompt(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return containsAll(prompt, "previous attempt was rejected", "topic Heaps is not in the syllabus")
	})).Return(
		`{"subject":"DS","weeks":[{"week_number":1,"topics":["Arrays"],"hours":3}]}`, nil)

	_, err := NewLessonPlanAgent(client, nil).Run(context.Background(), testSyllabus(), 1, 3,
		[]string{"topic Heaps is not in the syllabus"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		found := false
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestAssessmentAgentRun(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"exam_type":"quiz","questions":[
			{"number":1,"text":"Define an array.","bloom_level":"Remember","marks":1,"unit":1,"topic":"Arrays"},
			{"number":2,"text":"List linked list types.","bloom_level":"Remember","marks":1,"unit":1,"topic":"Linked Lists"},
			{"number":3,"text":"State a BST property.","bloom_level":"Remember","marks":1,"unit":2,"topic":"BST"},
			{"number":4,"text":"Explain tree traversal.","bloom_level":"Understand","marks":1,"unit":2,"topic":"Binary Trees"},
			{"number":5,"text":"Describe list insertion.","bloom_level":"Understand","marks":1,"unit":1,"topic":"Linked Lists"},
			{"number":6,"text":"Implement array search.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Arrays"}]}`, nil)

	set, err := NewAssessmentAgent(client, nil, rules.Defaults()).Run(
		context.Background(), testSyllabus(), academic.ExamQuiz, nil, "reference", nil)
	require.NoError(t, err)
	assert.Len(t, set.Questions, 6)
	assert.Equal(t, academic.ExamQuiz, set.ExamType)
	assert.Equal(t, 6, set.TotalMarks())
}

func TestAssessmentAgentDedupe(t *testing.T) {
	// Seven questions for a six-question quiz, two sharing (topic,
	// level). The surplus duplicate is dropped.
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"exam_type":"quiz","questions":[
			{"number":1,"text":"Define an array.","bloom_level":"Remember","marks":1,"unit":1,"topic":"Arrays"},
			{"number":2,"text":"Identify an array.","bloom_level":"Remember","marks":1,"unit":1,"topic":"Arrays"},
			{"number":3,"text":"State a BST property.","bloom_level":"Remember","marks":1,"unit":2,"topic":"BST"},
			{"number":4,"text":"Explain traversal.","bloom_level":"Understand","marks":1,"unit":2,"topic":"Binary Trees"},
			{"number":5,"text":"Describe insertion.","bloom_level":"Understand","marks":1,"unit":1,"topic":"Linked Lists"},
			{"number":6,"text":"Implement search.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Arrays"},
			{"number":7,"text":"Solve with lists.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Linked Lists"}]}`, nil)

	set, err := NewAssessmentAgent(client, nil, rules.Defaults()).Run(
		context.Background(), testSyllabus(), academic.ExamQuiz, nil, "", nil)
	require.NoError(t, err)
	require.Len(t, set.Questions, 6)
	for i, q := range set.Questions {
		assert.Equal(t, i+1, q.Number)
		assert.NotEqual(t, "Identify an array.", q.Text)
	}
}

func TestAssessmentAgentFocusReplacesDefaultDistribution(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return containsAll(prompt, "- Apply: 6 questions") && !containsAll(prompt, "- Remember:")
	})).Return(
		`{"exam_type":"quiz","questions":[
			{"number":1,"text":"Implement array search.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Arrays"},
			{"number":2,"text":"Use a linked list.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Linked Lists"},
			{"number":3,"text":"Apply BST insertion.","bloom_level":"Apply","marks":1,"unit":2,"topic":"BST"},
			{"number":4,"text":"Solve with traversal.","bloom_level":"Apply","marks":1,"unit":2,"topic":"Binary Trees"},
			{"number":5,"text":"Demonstrate deletion.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Arrays"},
			{"number":6,"text":"Implement a stack on a list.","bloom_level":"Apply","marks":1,"unit":1,"topic":"Linked Lists"}]}`, nil)

	set, err := NewAssessmentAgent(client, nil, rules.Defaults()).Run(
		context.Background(), testSyllabus(), academic.ExamQuiz,
		[]academic.BloomLevel{academic.BloomApply}, "", nil)
	require.NoError(t, err)
	assert.Len(t, set.Questions, 6)
	client.AssertExpectations(t)
}

func TestAssessmentAgentInvalidBloomLevel(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"questions":[{"number":1,"text":"Q","bloom_level":"Memorize","marks":1,"unit":1,"topic":"Arrays"}]}`, nil)

	_, err := NewAssessmentAgent(client, nil, rules.Defaults()).Run(
		context.Background(), testSyllabus(), academic.ExamQuiz, nil, "", nil)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "questions", se.Field)
}

func TestEvaluationAgentRun(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"criteria":[
			{"criterion":"correctness","score":4,"max_score":5,"comment":"mostly right"},
			{"criterion":"completeness","score":2.5,"max_score":3,"comment":"missed edge case"},
			{"criterion":"clarity","score":2,"max_score":2,"comment":"clear"}],
		"feedback":"Good answer, review deletion edge cases.","total_score":99,"max_score":50}`, nil)

	eval, err := NewEvaluationAgent(client, nil, rules.Defaults()).Run(
		context.Background(), "Explain BST deletion.", "the answer", 10)
	require.NoError(t, err)
	// Total comes from the criteria, not the model's own arithmetic.
	assert.Equal(t, 8.5, eval.TotalScore)
	assert.Equal(t, 10.0, eval.MaxScore)
	assert.Len(t, eval.Criteria, 3)
}

func TestEvaluationAgentScoreOutOfRange(t *testing.T) {
	client := new(mockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(
		`{"criteria":[{"criterion":"correctness","score":9,"max_score":5,"comment":""}],"feedback":"x"}`, nil)

	_, err := NewEvaluationAgent(client, nil, rules.Defaults()).Run(
		context.Background(), "Q", "A", 10)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "criteria", se.Field)
}
