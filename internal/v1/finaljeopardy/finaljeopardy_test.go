package finaljeopardy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_S5_FinalIneligibility(t *testing.T) {
	s := New(map[string]int{"A": 1200, "B": 0, "C": -200, "D": 500})

	assert.Equal(t, []string{"D", "A"}, s.JudgingOrder)
	assert.False(t, s.IsEligible("B"))
	assert.False(t, s.IsEligible("C"))
}

func TestSubmitWager_IneligiblePlayerRejected(t *testing.T) {
	s := New(map[string]int{"A": 1200, "B": 0, "C": -200, "D": 500})

	err := s.SubmitWager("C", 100)
	require.Error(t, err)
}

func TestSubmitWager_OutOfBounds(t *testing.T) {
	s := New(map[string]int{"A": 500})

	require.Error(t, s.SubmitWager("A", -1))
	require.Error(t, s.SubmitWager("A", 501))
	require.NoError(t, s.SubmitWager("A", 500))
}

func TestSubmitWager_FinalOnceRecorded(t *testing.T) {
	s := New(map[string]int{"A": 500})
	require.NoError(t, s.SubmitWager("A", 100))

	err := s.SubmitWager("A", 200)
	require.Error(t, err)
}

func TestAllWagered(t *testing.T) {
	s := New(map[string]int{"A": 500, "B": 300})
	assert.False(t, s.AllWagered())

	require.NoError(t, s.SubmitWager("A", 100))
	assert.False(t, s.AllWagered())

	require.NoError(t, s.SubmitWager("B", 50))
	assert.True(t, s.AllWagered())
}

func TestSubmitAnswer_S6_AfterTimeout(t *testing.T) {
	s := New(map[string]int{"A": 500})
	s.CountdownEnd = 30000

	err := s.SubmitAnswer("A", "x", 30001)
	require.Error(t, err)
	_, recorded := s.Answers["A"]
	assert.False(t, recorded)
}

func TestSubmitAnswer_BeforeTimeoutSucceeds(t *testing.T) {
	s := New(map[string]int{"A": 500})
	s.CountdownEnd = 30000

	err := s.SubmitAnswer("A", "x", 29999)
	require.NoError(t, err)
	assert.Equal(t, "x", s.Answers["A"])
}

func TestJudgingFlow_RevealOrderEnforced(t *testing.T) {
	s := New(map[string]int{"A": 500, "B": 300})
	require.NoError(t, s.SubmitWager("A", 100))
	require.NoError(t, s.SubmitWager("B", 50))

	err := s.RevealAnswer()
	require.Error(t, err, "answer cannot be revealed before wager")

	require.NoError(t, s.RevealWager())
	require.NoError(t, s.RevealAnswer())

	err = s.RevealWager()
	require.Error(t, err, "wager already revealed")
}

func TestJudge_OutOfOrderRejected(t *testing.T) {
	s := New(map[string]int{"A": 300, "B": 500})
	require.NoError(t, s.RevealWager())
	require.NoError(t, s.RevealAnswer())

	_, _, err := s.Judge("B", true)
	require.Error(t, err)
}

func TestJudge_RequiresBothRevealed(t *testing.T) {
	s := New(map[string]int{"A": 500})
	_, _, err := s.Judge("A", true)
	require.Error(t, err)
}

func TestJudge_FullSequenceEndsFinished(t *testing.T) {
	s := New(map[string]int{"A": 300, "B": 500})
	require.NoError(t, s.SubmitWager("A", 100))
	require.NoError(t, s.SubmitWager("B", 50))

	require.NoError(t, s.RevealWager())
	require.NoError(t, s.RevealAnswer())
	wager, finished, err := s.Judge("A", true)
	require.NoError(t, err)
	assert.Equal(t, 100, wager)
	assert.False(t, finished)
	assert.False(t, s.RevealedWager)
	assert.False(t, s.RevealedAnswer)

	require.NoError(t, s.RevealWager())
	require.NoError(t, s.RevealAnswer())
	wager, finished, err = s.Judge("B", false)
	require.NoError(t, err)
	assert.Equal(t, 50, wager)
	assert.True(t, finished)
}

func TestApplyJudgement(t *testing.T) {
	score := 500
	ApplyJudgement(&score, 100, true)
	assert.Equal(t, 600, score)

	ApplyJudgement(&score, 100, false)
	assert.Equal(t, 500, score)
}
