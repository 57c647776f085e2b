package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/consensus"
)

func recordsFromPasses(passes []bool) []consensus.RunRecord {
	records := make([]consensus.RunRecord, len(passes))
	for i, p := range passes {
		records[i] = consensus.RunRecord{
			RunID: "r" + string(rune('0'+i)), Seed: int64(i + 1),
			VerifiedPass: p, DurationMS: int64(1000 + i*10), TokenTotal: int64(100 + i),
		}
	}
	return records
}

// TestMajorityConsistencyReportMatchesScenarioS4 reproduces spec.md's S4
// consistency scenario: N=5, seeds {1..5}, verified_pass = [T,T,F,T,F].
func TestMajorityConsistencyReportMatchesScenarioS4(t *testing.T) {
	records := recordsFromPasses([]bool{true, true, false, true, false})
	report, err := consensus.Evaluate(records, consensus.StrategyMajority, 0, false)
	require.NoError(t, err)

	assert.Equal(t, consensus.DecisionPass, report.Decision)
	assert.InDelta(t, 0.2, report.Confidence, 1e-9)
	assert.InDelta(t, 0.6, report.SuccessRate, 1e-9)
}

func TestMajorityTieIsInconclusive(t *testing.T) {
	records := recordsFromPasses([]bool{true, true, false, false})
	report, err := consensus.Evaluate(records, consensus.StrategyMajority, 0, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionInconclusive, report.Decision)
	assert.Equal(t, 0.0, report.Confidence)
}

func TestUnanimousRequiresAllPass(t *testing.T) {
	all := recordsFromPasses([]bool{true, true, true})
	report, err := consensus.Evaluate(all, consensus.StrategyUnanimous, 0, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionPass, report.Decision)

	mixed := recordsFromPasses([]bool{true, true, false})
	report, err = consensus.Evaluate(mixed, consensus.StrategyUnanimous, 0, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionFail, report.Decision)
}

func TestThresholdDecidesByPassRate(t *testing.T) {
	records := recordsFromPasses([]bool{true, true, true, false})
	report, err := consensus.Evaluate(records, consensus.StrategyThreshold, 0.7, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionPass, report.Decision)

	report, err = consensus.Evaluate(records, consensus.StrategyThreshold, 0.9, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionFail, report.Decision)
}

func TestWeightedComparesVerificationScoreSums(t *testing.T) {
	records := []consensus.RunRecord{
		{RunID: "r0", VerifiedPass: true, VerificationScore: 0.9, DurationMS: 1000, TokenTotal: 100},
		{RunID: "r1", VerifiedPass: false, VerificationScore: 0.8, DurationMS: 1010, TokenTotal: 101},
	}
	report, err := consensus.Evaluate(records, consensus.StrategyWeighted, 0, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionPass, report.Decision)
}

func TestWeightedTieIsInconclusive(t *testing.T) {
	records := []consensus.RunRecord{
		{RunID: "r0", VerifiedPass: true, VerificationScore: 0.5, DurationMS: 1000, TokenTotal: 100},
		{RunID: "r1", VerifiedPass: false, VerificationScore: 0.5, DurationMS: 1010, TokenTotal: 101},
	}
	report, err := consensus.Evaluate(records, consensus.StrategyWeighted, 0, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionInconclusive, report.Decision)
}

func TestBestOfNPicksTopScoringRun(t *testing.T) {
	records := []consensus.RunRecord{
		{RunID: "r0", VerifiedPass: false, VerificationScore: 0.4, DurationMS: 1000, TokenTotal: 100},
		{RunID: "r1", VerifiedPass: true, VerificationScore: 0.95, DurationMS: 1010, TokenTotal: 101},
	}
	report, err := consensus.Evaluate(records, consensus.StrategyBestOfN, 0, false)
	require.NoError(t, err)
	assert.Equal(t, consensus.DecisionPass, report.Decision)
}

func TestReliabilityScoreIsHighForConsistentSuccessfulRuns(t *testing.T) {
	records := recordsFromPasses([]bool{true, true, true, true, true})
	report, err := consensus.Evaluate(records, consensus.StrategyMajority, 0, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.SuccessRate)
	assert.Equal(t, consensus.RatingHigh, report.Rating)
	assert.GreaterOrEqual(t, report.ReliabilityScore, 0.8)
}

func TestReliabilityScoreMonotonicInSuccessRateHoldingDurationsFixed(t *testing.T) {
	lowSuccess := []consensus.RunRecord{
		{RunID: "a", VerifiedPass: false, DurationMS: 1000, TokenTotal: 100},
		{RunID: "b", VerifiedPass: false, DurationMS: 1000, TokenTotal: 100},
		{RunID: "c", VerifiedPass: true, DurationMS: 1000, TokenTotal: 100},
	}
	highSuccess := []consensus.RunRecord{
		{RunID: "a", VerifiedPass: true, DurationMS: 1000, TokenTotal: 100},
		{RunID: "b", VerifiedPass: true, DurationMS: 1000, TokenTotal: 100},
		{RunID: "c", VerifiedPass: true, DurationMS: 1000, TokenTotal: 100},
	}
	lowReport, err := consensus.Evaluate(lowSuccess, consensus.StrategyMajority, 0, false)
	require.NoError(t, err)
	highReport, err := consensus.Evaluate(highSuccess, consensus.StrategyMajority, 0, false)
	require.NoError(t, err)
	assert.Greater(t, highReport.ReliabilityScore, lowReport.ReliabilityScore)
}

func TestOutliersAreReportedButOnlyExcludedWhenRequested(t *testing.T) {
	records := []consensus.RunRecord{
		{RunID: "r0", VerifiedPass: true, DurationMS: 1000, TokenTotal: 100},
		{RunID: "r1", VerifiedPass: true, DurationMS: 1010, TokenTotal: 101},
		{RunID: "r2", VerifiedPass: true, DurationMS: 990, TokenTotal: 99},
		{RunID: "r3", VerifiedPass: true, DurationMS: 1005, TokenTotal: 102},
		{RunID: "r4", VerifiedPass: true, DurationMS: 50000, TokenTotal: 98},
	}
	report, err := consensus.Evaluate(records, consensus.StrategyMajority, 0, false)
	require.NoError(t, err)
	assert.Contains(t, report.OutlierRunIDs, "r4")
	assert.Equal(t, 1.0, report.SuccessRate, "all runs still counted when excludeOutliers is false")

	excluded, err := consensus.Evaluate(records, consensus.StrategyMajority, 0, true)
	require.NoError(t, err)
	assert.Contains(t, excluded.OutlierRunIDs, "r4")
	assert.Less(t, excluded.CVDuration, report.CVDuration)
}
