package dialog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surimil/mediabot/internal/domain/content"
)

func quizStore() *fakeStore {
	return &fakeStore{
		questions: []content.QuizQuestion{
			{ModuleID: 1, Question: "q1", Options: []string{"a", "b", "c"}, Correct: 1},
			{ModuleID: 1, Question: "q2", Options: []string{"a", "b"}, Correct: 0},
			{ModuleID: 2, Question: "q3", Options: []string{"a", "b"}, Correct: 1},
		},
	}
}

func TestStartQuizWithoutSeenModules(t *testing.T) {
	users := newFakeUsers()
	e := newTestEngine(users, quizStore(), &fakeAI{}, Options{})

	out, err := e.StartQuiz(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	msg, ok := out[0].(TextMessage)
	require.True(t, ok)
	assert.Equal(t, "quiz_no_modules", msg.Text)
	assert.Nil(t, e.sessions.Get(1, KindQuiz))
}

func TestStartQuizBuildsPoolFromSeenModules(t *testing.T) {
	users := newFakeUsers()
	users.seen[1] = []int{1}
	e := newTestEngine(users, quizStore(), &fakeAI{}, Options{})

	out, err := e.StartQuiz(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 2)

	state, ok := e.sessions.Get(1, KindQuiz).(*QuizState)
	require.True(t, ok)
	// Module 2 was not seen, so q3 stays out of the pool.
	assert.Len(t, state.Questions, 2)

	prompt, ok := out[1].(TextMessage)
	require.True(t, ok)
	assert.Contains(t, prompt.Text, "q1")
	require.Len(t, prompt.Keyboard, 3)
	assert.Equal(t, "quiz:ans:0_0", prompt.Keyboard[0][0].Data)
}

func TestQuizFullRunAwardsXP(t *testing.T) {
	users := newFakeUsers()
	users.seen[1] = []int{1}
	e := newTestEngine(users, quizStore(), &fakeAI{}, Options{})
	ctx := context.Background()

	_, err := e.StartQuiz(ctx, 1)
	require.NoError(t, err)

	// q1: correct answer is option 1.
	out, err := e.HandleQuizAnswer(ctx, 1, 100, "0_1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	recap, ok := out[0].(EditMessage)
	require.True(t, ok)
	assert.Equal(t, 100, recap.MessageID)
	assert.Contains(t, recap.Text, "quiz_correct")

	// q2: wrong answer.
	out, err = e.HandleQuizAnswer(ctx, 1, 101, "1_1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	recap, ok = out[0].(EditMessage)
	require.True(t, ok)
	assert.Contains(t, recap.Text, "quiz_incorrect")

	results, ok := out[1].(TextMessage)
	require.True(t, ok)
	assert.Contains(t, results.Text, "quiz_results_title")

	// 1 correct answer at 10 XP each.
	assert.Equal(t, 10, users.xp(1))
	assert.Nil(t, e.sessions.Get(1, KindQuiz))
}

func TestQuizZeroScoreGrantsNothing(t *testing.T) {
	users := newFakeUsers()
	users.seen[1] = []int{1}
	store := &fakeStore{questions: []content.QuizQuestion{
		{ModuleID: 1, Question: "q1", Options: []string{"a", "b"}, Correct: 0},
	}}
	e := newTestEngine(users, store, &fakeAI{}, Options{})
	ctx := context.Background()

	_, err := e.StartQuiz(ctx, 1)
	require.NoError(t, err)

	out, err := e.HandleQuizAnswer(ctx, 1, 100, "0_1")
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 0, users.xp(1))
	assert.Nil(t, e.sessions.Get(1, KindQuiz))
}

func TestQuizAnswerWithoutSessionIsIgnored(t *testing.T) {
	e := newTestEngine(newFakeUsers(), quizStore(), &fakeAI{}, Options{})

	out, err := e.HandleQuizAnswer(context.Background(), 1, 100, "0_0")
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestQuizStalePressIsIgnored(t *testing.T) {
	users := newFakeUsers()
	users.seen[1] = []int{1}
	e := newTestEngine(users, quizStore(), &fakeAI{}, Options{})
	ctx := context.Background()

	_, err := e.StartQuiz(ctx, 1)
	require.NoError(t, err)

	_, err = e.HandleQuizAnswer(ctx, 1, 100, "0_1")
	require.NoError(t, err)

	// Pressing a button from the already-answered first question.
	out, err := e.HandleQuizAnswer(ctx, 1, 100, "0_0")
	assert.NoError(t, err)
	assert.Nil(t, out)

	state := e.sessions.Get(1, KindQuiz).(*QuizState)
	assert.Equal(t, 1, state.Index)
	assert.Equal(t, 1, state.Score)
}

func TestQuizMalformedPayloadIsIgnored(t *testing.T) {
	users := newFakeUsers()
	users.seen[1] = []int{1}
	e := newTestEngine(users, quizStore(), &fakeAI{}, Options{})
	ctx := context.Background()

	_, err := e.StartQuiz(ctx, 1)
	require.NoError(t, err)

	for _, payload := range []string{"", "0", "x_y", "0_9"} {
		out, err := e.HandleQuizAnswer(ctx, 1, 100, payload)
		assert.NoError(t, err, payload)
		assert.Nil(t, out, payload)
	}
}

func TestQuizXPFailureKeepsQuestionPending(t *testing.T) {
	users := newFakeUsers()
	users.seen[1] = []int{1}
	store := &fakeStore{questions: []content.QuizQuestion{
		{ModuleID: 1, Question: "q1", Options: []string{"a", "b"}, Correct: 0},
	}}
	e := newTestEngine(users, store, &fakeAI{}, Options{})
	ctx := context.Background()

	_, err := e.StartQuiz(ctx, 1)
	require.NoError(t, err)

	users.xpErr = errBoom
	_, err = e.HandleQuizAnswer(ctx, 1, 100, "0_0")
	assert.Error(t, err)

	// The session survives, so the press can be retried.
	assert.NotNil(t, e.sessions.Get(1, KindQuiz))
}
