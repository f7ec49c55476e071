package inference

import (
	"context"
	"fmt"

	"github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/inference/similarity"
	"github.com/nasher721/note-clarity-sub000/internal/inference/textnorm"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

const (
	learnedAcceptThreshold = 0.70
	learnedExactThreshold  = 0.95
	learnedMaxConfidence   = 0.95

	// Below this many rules, batch embedding in process is cheaper than a
	// round trip to the vector index.
	defaultIndexThreshold = 64
	defaultIndexTopK      = 10
)

// VectorHit is one result from a vector index query.  ID is the indexed
// rule's annotation ID; Score is the cosine similarity in [0, 1].
type VectorHit struct {
	ID    string
	Score float64
}

// VectorSearcher queries an external vector index for the rules most similar
// to an embedded chunk.  Implementations live in
// internal/infrastructure/search.
type VectorSearcher interface {
	SearchSimilar(ctx context.Context, vector []float32, topK int) ([]VectorHit, error)
}

// Scope weights applied to raw similarity.  Context-specific scopes weigh
// higher when the request actually supplies the matching context dimension,
// lower when it does not.
const (
	weightNoteTypeWithCtx = 0.95
	weightServiceWithCtx  = 0.90
	weightGlobal          = 0.85
	weightThisDocument    = 0.80
	weightNoteTypeNoCtx   = 0.75
	weightServiceNoCtx    = 0.70
)

// learnedRule is a confirmed annotation prepared for matching: its text is
// normalized and tokenized once at construction.
type learnedRule struct {
	src        *annotation.Annotation
	normalized string
	tokens     map[string]struct{}
}

// LearnedMatcher matches chunks against the confirmed annotations visible at
// the request's context.  It is built per request from a repository snapshot;
// matching runs three tiers in order: exact normalized equality, embedding
// similarity, and lexical Jaccard overlap.  The embedding tier degrades
// silently to the lexical tier when no provider is configured or the provider
// fails.
type LearnedMatcher struct {
	rules    []learnedRule
	provider EmbeddingProvider
	searcher VectorSearcher
	cfg      Config
	logger   logging.Logger

	indexThreshold int
	indexTopK      int
}

// NewLearnedMatcher prepares the confirmed-annotation snapshot for matching.
// provider may be nil; the matcher then uses lexical similarity only.
func NewLearnedMatcher(confirmed []*annotation.Annotation, provider EmbeddingProvider, cfg Config, logger logging.Logger) *LearnedMatcher {
	rules := make([]learnedRule, 0, len(confirmed))
	for _, a := range confirmed {
		if a == nil || a.RawText == "" {
			continue
		}
		norm := textnorm.Normalize(a.RawText)
		if norm == "" {
			continue
		}
		rules = append(rules, learnedRule{
			src:        a,
			normalized: norm,
			tokens:     textnorm.TokenSet(a.RawText),
		})
	}
	return &LearnedMatcher{
		rules:          rules,
		provider:       provider,
		cfg:            cfg.normalized(),
		logger:         logger.Named("learned-matcher"),
		indexThreshold: defaultIndexThreshold,
		indexTopK:      defaultIndexTopK,
	}
}

// WithSearcher routes the semantic tier through an external vector index
// once the rule snapshot reaches the in-process threshold.  topK <= 0 keeps
// the default.  In-process batch embedding remains the fallback when the
// index is unavailable.
func (m *LearnedMatcher) WithSearcher(s VectorSearcher, topK int) *LearnedMatcher {
	m.searcher = s
	if topK > 0 {
		m.indexTopK = topK
	}
	return m
}

func (m *LearnedMatcher) Name() string { return "learned_rules" }

// RuleCount reports how many usable confirmed annotations the matcher holds.
func (m *LearnedMatcher) RuleCount() int { return len(m.rules) }

// TryMatch finds the confirmed annotation most similar to the chunk.  A match
// is accepted when similarity weighted by rule scope reaches 0.70; the
// reported confidence is the raw similarity capped at 0.95.
func (m *LearnedMatcher) TryMatch(ctx context.Context, chunk *annotation.Chunk, ictx *annotation.InferenceContext) (*MatchResult, error) {
	if len(m.rules) == 0 {
		return nil, nil
	}

	chunkNorm := textnorm.Normalize(chunk.Text)
	if chunkNorm == "" {
		return nil, nil
	}

	// Tier 1: exact normalized equality.
	for i := range m.rules {
		if m.rules[i].normalized == chunkNorm {
			return m.result(&m.rules[i], 1.0, ictx, "exact"), nil
		}
	}

	// Tier 2: embedding similarity, falling back to tier 3 (lexical) when
	// the provider is absent or fails.
	tier := "semantic"
	sims := m.semanticSimilarities(ctx, chunk.Text)
	if sims == nil {
		tier = "lexical"
		sims = m.lexicalSimilarities(chunk)
	}

	bestIdx := -1
	bestWeighted := 0.0
	bestRaw := 0.0
	for i, raw := range sims {
		if raw <= 0 {
			continue
		}
		if tier == "semantic" && raw <= m.cfg.SemanticThreshold {
			continue
		}
		if tier == "lexical" && raw < m.cfg.JaccardThreshold {
			continue
		}
		weighted := raw * m.scopeWeight(m.rules[i].src.Scope, ictx)
		if weighted > bestWeighted {
			bestIdx, bestWeighted, bestRaw = i, weighted, raw
		}
	}
	if bestIdx < 0 || bestWeighted < learnedAcceptThreshold {
		return nil, nil
	}
	return m.result(&m.rules[bestIdx], bestRaw, ictx, tier), nil
}

// semanticSimilarities embeds the chunk and every rule text in one provider
// call and returns raw cosine similarities, or nil when embeddings are
// unavailable.
func (m *LearnedMatcher) semanticSimilarities(ctx context.Context, chunkText string) []float64 {
	if m.provider == nil {
		return nil
	}

	if m.searcher != nil && len(m.rules) >= m.indexThreshold {
		if sims := m.indexSimilarities(ctx, chunkText); sims != nil {
			return sims
		}
	}

	texts := make([]string, 0, len(m.rules)+1)
	texts = append(texts, chunkText)
	for i := range m.rules {
		texts = append(texts, m.rules[i].src.RawText)
	}

	embedCtx, cancel := context.WithTimeout(ctx, m.cfg.EmbeddingTimeout)
	defer cancel()

	vectors, err := m.provider.Embed(embedCtx, texts)
	if err != nil || len(vectors) != len(texts) {
		m.logger.Debug("embedding unavailable, falling back to lexical matching",
			logging.Err(err))
		return nil
	}

	sims := make([]float64, len(m.rules))
	for i := range m.rules {
		sims[i] = similarity.Cosine(vectors[0], vectors[i+1])
	}
	return sims
}

// indexSimilarities embeds only the chunk and asks the vector index for the
// most similar rules.  Rules outside the top K read as zero, which is below
// the semantic threshold regardless.  Returns nil when the embedding or the
// index query fails so the caller can fall back to batch embedding.
func (m *LearnedMatcher) indexSimilarities(ctx context.Context, chunkText string) []float64 {
	embedCtx, cancel := context.WithTimeout(ctx, m.cfg.EmbeddingTimeout)
	defer cancel()

	vectors, err := m.provider.Embed(embedCtx, []string{chunkText})
	if err != nil || len(vectors) != 1 {
		m.logger.Debug("chunk embedding unavailable for index query", logging.Err(err))
		return nil
	}

	hits, err := m.searcher.SearchSimilar(ctx, vectors[0], m.indexTopK)
	if err != nil {
		m.logger.Debug("vector index query failed, using in-process embeddings",
			logging.Err(err))
		return nil
	}

	byID := make(map[string]int, len(m.rules))
	for i := range m.rules {
		byID[string(m.rules[i].src.ID)] = i
	}

	sims := make([]float64, len(m.rules))
	for _, hit := range hits {
		if i, ok := byID[hit.ID]; ok {
			sims[i] = hit.Score
		}
	}
	return sims
}

func (m *LearnedMatcher) lexicalSimilarities(chunk *annotation.Chunk) []float64 {
	chunkTokens := textnorm.TokenSet(chunk.Text)
	sims := make([]float64, len(m.rules))
	for i := range m.rules {
		sims[i] = jaccardSets(chunkTokens, m.rules[i].tokens)
	}
	return sims
}

func (m *LearnedMatcher) scopeWeight(scope notetypes.RuleScope, ictx *annotation.InferenceContext) float64 {
	switch scope {
	case notetypes.ScopeNoteType:
		if ictx != nil && ictx.NoteType != "" {
			return weightNoteTypeWithCtx
		}
		return weightNoteTypeNoCtx
	case notetypes.ScopeService:
		if ictx != nil && ictx.Service != "" {
			return weightServiceWithCtx
		}
		return weightServiceNoCtx
	case notetypes.ScopeGlobal:
		return weightGlobal
	default:
		return weightThisDocument
	}
}

func (m *LearnedMatcher) result(rule *learnedRule, raw float64, ictx *annotation.InferenceContext, tier string) *MatchResult {
	source := notetypes.SourceLearnedSimilar
	if raw >= learnedExactThreshold {
		source = notetypes.SourceLearnedExact
	}
	conf := raw
	if conf > learnedMaxConfidence {
		conf = learnedMaxConfidence
	}
	return &MatchResult{
		Label:            rule.src.Label,
		Confidence:       conf,
		RemoveReason:     rule.src.RemoveReason,
		CondenseStrategy: rule.src.CondenseStrategy,
		Source:           source,
		Reason:           fmt.Sprintf("similar to a confirmed %s annotation (%.0f%% match)", rule.src.Scope, raw*100),
		Signals: []string{
			fmt.Sprintf("tier:%s", tier),
			fmt.Sprintf("scope:%s", rule.src.Scope),
			fmt.Sprintf("similarity:%.0f%%", raw*100),
			fmt.Sprintf("weight:%.2f", m.scopeWeight(rule.src.Scope, ictx)),
		},
	}
}

// jaccardSets computes Jaccard similarity over prebuilt token sets.
func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
