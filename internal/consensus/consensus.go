// Package consensus implements C10: it turns N per-run records from the
// Multi-Run Executor into a consensus decision, a confidence score, and a
// reliability rating. Variance and outlier detection are grounded on
// github.com/montanaflynn/stats (already in the dependency graph as a
// transitive pull, promoted here to a direct import) for mean, standard
// deviation, and quartile calculations rather than hand-rolled statistics.
package consensus

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
)

// Strategy selects the consensus decision rule.
type Strategy string

const (
	StrategyMajority  Strategy = "majority"
	StrategyWeighted  Strategy = "weighted"
	StrategyThreshold Strategy = "threshold"
	StrategyUnanimous Strategy = "unanimous"
	StrategyBestOfN   Strategy = "best_of_n"
)

// Decision is the outcome of a consensus evaluation.
type Decision string

const (
	DecisionPass         Decision = "pass"
	DecisionFail         Decision = "fail"
	DecisionInconclusive Decision = "inconclusive"
)

// Rating buckets a reliability score for human consumption.
type Rating string

const (
	RatingHigh   Rating = "high"
	RatingMedium Rating = "medium"
	RatingLow    Rating = "low"
)

// RunRecord is one child run's outcome as C10 consumes it: whether it was
// independently verified to pass, an optional verification confidence,
// and cost metrics used for variance/reliability.
type RunRecord struct {
	RunID             string
	Seed              int64
	VerifiedPass      bool
	VerificationScore float64 // in [0,1]; only meaningful for weighted/best_of_n
	DurationMS        int64
	TokenTotal        int64
}

// ConsistencyReport is C10's output for one group of runs.
type ConsistencyReport struct {
	Strategy         Strategy
	Decision         Decision
	Confidence       float64
	ReliabilityScore float64
	Rating           Rating
	SuccessRate      float64
	CVDuration       float64
	CVTokens         float64
	OutlierRunIDs    []string
	Seeds            []int64
	RunIDs           []string
}

// Evaluate computes a ConsistencyReport for records under strategy. When
// strategy is threshold, threshold gives τ; it is ignored otherwise.
// excludeOutliers controls whether Tukey-fence outliers are dropped from
// the decision/variance math or merely reported.
func Evaluate(records []RunRecord, strategy Strategy, threshold float64, excludeOutliers bool) (ConsistencyReport, error) {
	if len(records) == 0 {
		return ConsistencyReport{}, fmt.Errorf("consensus: no records to evaluate")
	}

	durations := make([]float64, len(records))
	tokens := make([]float64, len(records))
	seeds := make([]int64, len(records))
	runIDs := make([]string, len(records))
	for i, r := range records {
		durations[i] = float64(r.DurationMS)
		tokens[i] = float64(r.TokenTotal)
		seeds[i] = r.Seed
		runIDs[i] = r.RunID
	}

	outlierIdx := tukeyOutliers(durations)
	outlierIdx = append(outlierIdx, tukeyOutliersExcluding(tokens, outlierIdx)...)
	outlierSet := map[int]bool{}
	for _, i := range outlierIdx {
		outlierSet[i] = true
	}
	var outlierRunIDs []string
	for i := range records {
		if outlierSet[i] {
			outlierRunIDs = append(outlierRunIDs, runIDs[i])
		}
	}

	eval := records
	evalDurations, evalTokens := durations, tokens
	if excludeOutliers && len(outlierSet) < len(records) {
		eval = nil
		evalDurations, evalTokens = nil, nil
		for i, r := range records {
			if outlierSet[i] {
				continue
			}
			eval = append(eval, r)
			evalDurations = append(evalDurations, durations[i])
			evalTokens = append(evalTokens, tokens[i])
		}
	}

	decision, confidence := decide(eval, strategy, threshold)

	cvDuration, _ := coefficientOfVariation(evalDurations)
	cvTokens, _ := coefficientOfVariation(evalTokens)

	passes := 0
	for _, r := range eval {
		if r.VerifiedPass {
			passes++
		}
	}
	successRate := float64(passes) / float64(len(eval))

	reliability := reliabilityScore(successRate, cvDuration, cvTokens)

	return ConsistencyReport{
		Strategy: strategy, Decision: decision, Confidence: confidence,
		ReliabilityScore: reliability, Rating: ratingFor(reliability),
		SuccessRate: successRate, CVDuration: cvDuration, CVTokens: cvTokens,
		OutlierRunIDs: outlierRunIDs, Seeds: seeds, RunIDs: runIDs,
	}, nil
}

func decide(records []RunRecord, strategy Strategy, threshold float64) (Decision, float64) {
	n := len(records)
	if n == 0 {
		return DecisionInconclusive, 0
	}
	passes, fails := 0, 0
	var passScore, failScore float64
	for _, r := range records {
		if r.VerifiedPass {
			passes++
			passScore += r.VerificationScore
		} else {
			fails++
			failScore += r.VerificationScore
		}
	}

	switch strategy {
	case StrategyWeighted:
		margin := passScore - failScore
		total := passScore + failScore
		if margin == 0 {
			return DecisionInconclusive, 0
		}
		decision := DecisionFail
		if margin > 0 {
			decision = DecisionPass
		}
		confidence := 0.0
		if total > 0 {
			confidence = clamp01(absF(margin) / total)
		}
		return decision, confidence

	case StrategyThreshold:
		rate := float64(passes) / float64(n)
		decision := DecisionFail
		if rate >= threshold {
			decision = DecisionPass
		}
		return decision, clamp01(absF(rate - threshold))

	case StrategyUnanimous:
		if passes == n {
			return DecisionPass, 1
		}
		return DecisionFail, clamp01(float64(fails) / float64(n))

	case StrategyBestOfN:
		top := records[0]
		for _, r := range records[1:] {
			if r.VerificationScore > top.VerificationScore {
				top = r
			}
		}
		if top.VerifiedPass {
			return DecisionPass, top.VerificationScore
		}
		return DecisionFail, 1 - top.VerificationScore

	default: // StrategyMajority
		if passes == fails {
			return DecisionInconclusive, 0
		}
		decision := DecisionFail
		if passes > fails {
			decision = DecisionPass
		}
		confidence := absF(float64(passes-fails)) / float64(n)
		return decision, confidence
	}
}

// reliabilityScore implements spec.md's fixed formula:
// 0.6*success_rate + 0.2*(1-clamp(CV_duration,0,1)) + 0.2*(1-clamp(CV_tokens,0,1))
func reliabilityScore(successRate, cvDuration, cvTokens float64) float64 {
	return 0.6*successRate + 0.2*(1-clamp01(cvDuration)) + 0.2*(1-clamp01(cvTokens))
}

func ratingFor(score float64) Rating {
	switch {
	case score >= 0.8:
		return RatingHigh
	case score >= 0.6:
		return RatingMedium
	default:
		return RatingLow
	}
}

// coefficientOfVariation is stddev/mean, the dispersion measure spec.md's
// reliability formula and Tukey-fence reporting both rely on.
func coefficientOfVariation(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	mean, err := stats.Mean(stats.Float64Data(values))
	if err != nil {
		return 0, fmt.Errorf("consensus: mean: %w", err)
	}
	if mean == 0 {
		return 0, nil
	}
	sd, err := stats.StandardDeviation(stats.Float64Data(values))
	if err != nil {
		return 0, fmt.Errorf("consensus: stddev: %w", err)
	}
	return absF(sd / mean), nil
}

// tukeyOutliers flags indices whose value falls outside [Q1-1.5*IQR,
// Q3+1.5*IQR], the classic Tukey fence.
func tukeyOutliers(values []float64) []int {
	return tukeyOutliersExcluding(values, nil)
}

func tukeyOutliersExcluding(values []float64, already []int) []int {
	if len(values) < 4 {
		return nil
	}
	// Tukey's hinges: for an odd count the median belongs to both halves.
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	half := (len(sorted) + 1) / 2
	q1, err := stats.Median(stats.Float64Data(sorted[:half]))
	if err != nil {
		return nil
	}
	q3, err := stats.Median(stats.Float64Data(sorted[len(sorted)-half:]))
	if err != nil {
		return nil
	}
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr
	skip := map[int]bool{}
	for _, i := range already {
		skip[i] = true
	}
	var out []int
	for i, v := range values {
		if skip[i] {
			continue
		}
		if v < lower || v > upper {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
