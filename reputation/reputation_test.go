// Copyright (C) 2025 aicollab-project
//
// SPDX-License-Identifier: LGPL-3.0-or-later

package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordStartsAtBaseline(t *testing.T) {
	r := NewRecord("agent-1")
	assert.Equal(t, 50.0, r.CurrentScore)
	assert.Equal(t, TierReliable, r.Tier)
}

func TestTierForScoreBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Tier
	}{
		{0, TierUntrusted},
		{19.9, TierUntrusted},
		{20, TierNovice},
		{39.9, TierNovice},
		{40, TierReliable},
		{59.9, TierReliable},
		{60, TierExpert},
		{79.9, TierExpert},
		{80, TierElite},
		{100, TierElite},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierForScore(c.score), "score %v", c.score)
	}
}

// TestThreeConsecutivePassesThenFail implements scenario S6: entity at
// baseline 50 receives three pass evaluations scored 90 (no delay),
// then a fail scored 20.
func TestThreeConsecutivePassesThenFail(t *testing.T) {
	r := NewRecord("agent-e")
	require.Equal(t, 50.0, r.CurrentScore)

	r.Update(Evaluation{TaskID: "t1", Verdict: VerdictPass, Score: 90})
	assert.Greater(t, r.CurrentScore, 50.0)
	assert.Equal(t, 1, r.CurrentStreak)

	r.Update(Evaluation{TaskID: "t2", Verdict: VerdictPass, Score: 90})
	r.Update(Evaluation{TaskID: "t3", Verdict: VerdictPass, Score: 90})
	assert.Equal(t, 3, r.CurrentStreak)
	assert.Equal(t, 3, r.MaxStreak)
	assert.Contains(t, []Tier{TierExpert, TierElite}, r.Tier)

	scoreBeforeFail := r.CurrentScore
	r.Update(Evaluation{TaskID: "t4", Verdict: VerdictFail, Score: 20})
	assert.Equal(t, 0, r.CurrentStreak)
	assert.Less(t, r.CurrentScore, scoreBeforeFail)

	last := r.EventLog[len(r.EventLog)-1]
	assert.Equal(t, EventTaskFail, last.EventType)
	assert.Equal(t, "t4", last.TaskID)
}

func TestScoreIsClampedToRange(t *testing.T) {
	r := NewRecord("agent-clamp")
	for i := 0; i < 20; i++ {
		r.Update(Evaluation{TaskID: "x", Verdict: VerdictPass, Score: 100})
	}
	assert.LessOrEqual(t, r.CurrentScore, 100.0)
	assert.GreaterOrEqual(t, r.CurrentScore, 0.0)

	r2 := NewRecord("agent-clamp-low")
	for i := 0; i < 20; i++ {
		r2.Update(Evaluation{TaskID: "x", Verdict: VerdictFail, Score: 0})
	}
	assert.GreaterOrEqual(t, r2.CurrentScore, 0.0)
}

func TestPartialResetsStreakWithSmallerDelta(t *testing.T) {
	r := NewRecord("agent-partial")
	r.Update(Evaluation{TaskID: "t1", Verdict: VerdictPass, Score: 90})
	require.Equal(t, 1, r.CurrentStreak)

	r.Update(Evaluation{TaskID: "t2", Verdict: VerdictPartial, Score: 70})
	assert.Equal(t, 0, r.CurrentStreak)
	assert.Equal(t, 2, r.TasksCompleted)
}

func TestDelayPenaltyShrinksPassDelta(t *testing.T) {
	withDelay := NewRecord("agent-delay")
	withDelay.Update(Evaluation{TaskID: "t1", Verdict: VerdictPass, Score: 90, Delayed: true})

	noDelay := NewRecord("agent-nodelay")
	noDelay.Update(Evaluation{TaskID: "t1", Verdict: VerdictPass, Score: 90, Delayed: false})

	assert.Less(t, withDelay.CurrentScore, noDelay.CurrentScore)
	assert.Equal(t, 1, withDelay.TasksDelayed)
}

func TestWeightedHistoricalScoreBiasesRecent(t *testing.T) {
	r := NewRecord("agent-hist")
	r.Update(Evaluation{TaskID: "t1", Verdict: VerdictFail, Score: 0})
	r.Update(Evaluation{TaskID: "t2", Verdict: VerdictPass, Score: 100})

	weighted := r.WeightedHistoricalScore()
	// The most recent (higher) score should pull the weighted average
	// above the unweighted mean of the two historical entries.
	unweightedMean := (r.HistoricalScores[0] + r.HistoricalScores[1]) / 2
	assert.Greater(t, weighted, unweightedMean)
}

func TestWeightedHistoricalScoreWithNoHistoryIsCurrentScore(t *testing.T) {
	r := NewRecord("agent-empty")
	assert.Equal(t, r.CurrentScore, r.WeightedHistoricalScore())
}
