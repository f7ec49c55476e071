package inference

import (
	"fmt"
	"strings"

	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const (
	fusionBoostPerSignal = 0.05
	fusionBoostCap       = 0.12
	fusionScoreCap       = 0.97

	calibConservativeFactor = 0.90
	calibConservativeBelow  = 0.85
	calibAggressiveFactor   = 1.10
	calibAggressiveAbove    = 0.70
	calibAggressiveCap      = 0.98
)

// FuseSignals combines heuristic candidate signals into one decision.
// Signals are grouped by label; each group scores the average member
// confidence plus an agreement boost of 0.05 per additional member, capped
// at 0.12, and the winning group's score is capped at 0.97.  Calibration is
// applied afterwards, and the result is dropped entirely when it falls under
// minThreshold.  An empty signal list yields nil.
func FuseSignals(signals []*Signal, calibration notetypes.CalibrationMode, minThreshold float64) *MatchResult {
	groups := make(map[notetypes.Label][]*Signal)
	for _, s := range signals {
		if s == nil {
			continue
		}
		groups[s.Label] = append(groups[s.Label], s)
	}
	if len(groups) == 0 {
		return nil
	}

	var bestLabel notetypes.Label
	var bestScore float64
	var bestGroup []*Signal
	for _, label := range []notetypes.Label{notetypes.LabelKeep, notetypes.LabelCondense, notetypes.LabelRemove} {
		group, ok := groups[label]
		if !ok {
			continue
		}
		sum := 0.0
		for _, s := range group {
			sum += s.Confidence
		}
		avg := sum / float64(len(group))
		boost := fusionBoostPerSignal * float64(len(group)-1)
		if boost > fusionBoostCap {
			boost = fusionBoostCap
		}
		score := avg + boost
		if score > fusionScoreCap {
			score = fusionScoreCap
		}
		if score > bestScore {
			bestLabel, bestScore, bestGroup = label, score, group
		}
	}

	bestScore = calibrate(bestScore, calibration)
	if bestScore < minThreshold {
		return nil
	}

	// The strongest member supplies the reason and the source is the
	// member's own source unless several signals agreed.  Modifiers come
	// from the first member that carries one, since not every signal does
	// (a segmenter hint never names a remove reason).
	lead := bestGroup[0]
	for _, s := range bestGroup[1:] {
		if s.Confidence > lead.Confidence {
			lead = s
		}
	}
	source := lead.Source
	if len(bestGroup) > 1 {
		source = notetypes.SourceCombinedSignals
	}

	var removeReason notetypes.RemoveReason
	var condenseStrategy notetypes.CondenseStrategy
	for _, s := range bestGroup {
		if removeReason == "" {
			removeReason = s.RemoveReason
		}
		if condenseStrategy == "" {
			condenseStrategy = s.CondenseStrategy
		}
	}

	return &MatchResult{
		Label:            bestLabel,
		Confidence:       bestScore,
		RemoveReason:     removeReason,
		CondenseStrategy: condenseStrategy,
		Source:           source,
		Reason:           lead.Reason,
		Signals:          describeSignals(bestGroup),
	}
}

// calibrate adjusts a fused score per the configured calibration mode.
// Conservative pulls mid-range scores down; aggressive pushes qualifying
// scores up without exceeding 0.98.
func calibrate(score float64, mode notetypes.CalibrationMode) float64 {
	switch mode {
	case notetypes.CalibrationConservative:
		if score < calibConservativeBelow {
			score *= calibConservativeFactor
		}
	case notetypes.CalibrationAggressive:
		if score > calibAggressiveAbove {
			score *= calibAggressiveFactor
			if score > calibAggressiveCap {
				score = calibAggressiveCap
			}
		}
	}
	return score
}

func describeSignals(group []*Signal) []string {
	out := make([]string, 0, len(group))
	for _, s := range group {
		desc := fmt.Sprintf("%s:%.2f", s.Source, s.Confidence)
		if s.Reason != "" {
			desc = fmt.Sprintf("%s (%s)", desc, strings.ToLower(s.Reason))
		}
		out = append(out, desc)
	}
	return out
}
