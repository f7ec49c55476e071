package inference

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const (
	patternBaseConfidence = 0.70
	patternEffWeight      = 0.25
	patternMaxConfidence  = 0.92
)

// PatternMatcher matches chunks against the stored pattern-rule set.  Rules
// are evaluated in the order the repository returns them; the first match
// wins.  Compiled regexes are cached per rule ID so repeated documents do
// not recompile.
type PatternMatcher struct {
	rules  annotation.PatternRuleRepository
	logger logging.Logger

	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func NewPatternMatcher(rules annotation.PatternRuleRepository, logger logging.Logger) *PatternMatcher {
	return &PatternMatcher{
		rules:    rules,
		logger:   logger.Named("pattern-matcher"),
		compiled: make(map[string]*regexp.Regexp),
	}
}

func (m *PatternMatcher) Name() string { return "pattern_rules" }

// TryMatch returns the first rule whose pattern matches the chunk, with
// confidence min(0.70 + effectiveness*0.25, 0.92).  Rules with an unmatched
// chunk-type restriction, inactive rules, and semantic pattern rules are
// skipped.  A rule whose regex fails to compile is skipped with a warning
// rather than failing the document.
func (m *PatternMatcher) TryMatch(ctx context.Context, chunk *annotation.Chunk, _ *annotation.InferenceContext) (*MatchResult, error) {
	rules, err := m.rules.ListActiveByChunkType(ctx, chunk.Type)
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if !rule.Active || !rule.AppliesTo(chunk.Type) {
			continue
		}
		matched := false
		switch rule.PatternType {
		case notetypes.PatternRegex:
			re, cerr := m.compile(rule)
			if cerr != nil {
				m.logger.Warn("skipping rule with invalid regex",
					logging.String("rule_id", string(rule.ID)),
					logging.Err(cerr))
				continue
			}
			matched = re.MatchString(chunk.Text)
		case notetypes.PatternKeyword, notetypes.PatternNGram:
			matched = strings.Contains(
				strings.ToLower(chunk.Text),
				strings.ToLower(rule.PatternValue),
			)
		default:
			// Semantic rules are handled by the learned matcher's vector
			// tier, not by literal pattern matching.
			continue
		}
		if !matched {
			continue
		}

		conf := patternBaseConfidence + rule.EffectivenessScore*patternEffWeight
		if conf > patternMaxConfidence {
			conf = patternMaxConfidence
		}
		return &MatchResult{
			Label:            rule.Label,
			Confidence:       conf,
			RemoveReason:     rule.RemoveReason,
			CondenseStrategy: rule.CondenseStrategy,
			Source:           notetypes.SourcePatternRule,
			Reason:           fmt.Sprintf("matched %s rule %s", rule.PatternType, rule.ID),
			Signals: []string{
				fmt.Sprintf("pattern_rule:%s", rule.ID),
				fmt.Sprintf("effectiveness:%.2f", rule.EffectivenessScore),
			},
		}, nil
	}
	return nil, nil
}

func (m *PatternMatcher) compile(rule *annotation.PatternRule) (*regexp.Regexp, error) {
	key := string(rule.ID)

	m.mu.RLock()
	re, ok := m.compiled[key]
	m.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile("(?i)" + rule.PatternValue)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.compiled[key] = re
	m.mu.Unlock()
	return re, nil
}
