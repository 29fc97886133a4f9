// Package matching implements the reconciliation scoring engine
package matching

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/renewables/repd-reconcile/pkg/catalogue"
	"github.com/renewables/repd-reconcile/pkg/metrics"
	"github.com/renewables/repd-reconcile/pkg/models"
	"github.com/renewables/repd-reconcile/pkg/normalizers"
	"github.com/renewables/repd-reconcile/pkg/tracing"
)

// ErrInvalidQuery is returned when a query's text is empty after
// normalization.
var ErrInvalidQuery = errors.New("query text is empty after normalization")

// Engine resolves reconciliation queries against a catalogue
type Engine struct {
	logger ectologger.Logger
	scorer *Scorer
	config EngineConfig
}

// EngineConfig contains configuration for the reconciliation engine
type EngineConfig struct {
	MatchThreshold float64          // Score at or above which a candidate is a confident match (default: 90)
	DefaultLimit   int              // Candidates returned when the query supplies no limit (default: 3)
	MaxLimit       int              // Upper bound on the per-query limit (default: 100)
	Weights        ComponentWeights // Per-field weights for the composite score
	CapacityTiers  []CapacityTier   // Capacity-deviation bonus tiers, tightest first
}

// ComponentWeights holds the per-field weights of the composite score.
type ComponentWeights struct {
	Name       float64
	Site       float64
	Developer  float64
	Technology float64
}

// CapacityTier awards a score bonus when the relative deviation between
// the query's capacity constraint and the record's capacity is at or
// below MaxDeviation. Only the tightest satisfied tier applies.
type CapacityTier struct {
	MaxDeviation float64
	Bonus        float64
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		MatchThreshold: 90,
		DefaultLimit:   3,
		MaxLimit:       100,
		Weights: ComponentWeights{
			Name:       0.50,
			Site:       0.20,
			Developer:  0.15,
			Technology: 0.05,
		},
		CapacityTiers: []CapacityTier{
			{MaxDeviation: 0.05, Bonus: 10},
			{MaxDeviation: 0.15, Bonus: 5},
			{MaxDeviation: 0.25, Bonus: 2},
		},
	}
}

// NewEngine creates a new reconciliation engine
func NewEngine(logger ectologger.Logger, config EngineConfig) *Engine {
	return &Engine{
		logger: logger,
		scorer: NewScorer(),
		config: config,
	}
}

// Resolve scores one query against every record in the catalogue and
// returns the ranked, truncated candidate list. An empty catalogue
// yields an empty list, not an error.
func (e *Engine) Resolve(ctx context.Context, query models.ReconcileQuery, cat *catalogue.Catalogue) ([]models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.Resolve")
	defer span.End()

	start := time.Now()

	queryText := normalizers.NormalizeFacilityName(query.Query)
	if queryText == "" {
		metrics.RecordQuery("invalid", time.Since(start).Seconds(), 0)
		return nil, ErrInvalidQuery
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"query":          query.Query,
		"type":           query.Type,
		"catalogue_size": cat.Len(),
	})

	limit := e.clampLimit(query.Limit)
	constraints := extractConstraints(query.Properties)

	records := cat.Records()
	candidates := make([]models.Candidate, 0, limit)
	for i := range records {
		record := &records[i]

		if query.Type != "" && !typeMatches(query.Type, record.Technology) {
			continue
		}

		candidate, ok := e.scoreRecord(queryText, constraints, record)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}

	// Stable sort keeps catalogue insertion order on score ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	log.WithFields(map[string]any{"candidate_count": len(candidates)}).Debug("Resolved query")
	metrics.RecordQuery("ok", time.Since(start).Seconds(), len(candidates))

	return candidates, nil
}

// ResolveBatch resolves every query in the batch independently. Every
// input id appears in the result exactly once; a query that fails
// resolves to an empty candidate list and its error is collected into
// the returned error map instead of failing the batch.
func (e *Engine) ResolveBatch(ctx context.Context, queries map[string]models.ReconcileQuery, cat *catalogue.Catalogue) (models.BatchResult, map[string]error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.ResolveBatch")
	defer span.End()

	start := time.Now()

	result := make(models.BatchResult, len(queries))
	failures := make(map[string]error)

	for qid, query := range queries {
		candidates, err := e.Resolve(ctx, query, cat)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"query_id": qid}).Warn("Query failed within batch")
			failures[qid] = err
			result[qid] = models.QueryResult{Result: []models.Candidate{}}
			continue
		}
		if candidates == nil {
			candidates = []models.Candidate{}
		}
		result[qid] = models.QueryResult{Result: candidates}
	}

	metrics.RecordBatch(len(queries), time.Since(start).Seconds())

	return result, failures
}

// scoreRecord computes the composite score for one (query, record)
// pair. Returns false when the record scores zero and should not be a
// candidate.
func (e *Engine) scoreRecord(queryText string, constraints queryConstraints, record *models.ProjectRecord) (models.Candidate, bool) {
	scores := map[string]float64{
		"name": e.scorer.TokenSetRatio(queryText, recordName(record)),
	}
	weights := map[string]float64{
		"name":       e.config.Weights.Name,
		"site":       e.config.Weights.Site,
		"developer":  e.config.Weights.Developer,
		"technology": e.config.Weights.Technology,
	}

	// A field contributes only when the query constrains it. A record
	// missing a constrained field scores 0 for that field at full
	// weight, so absence of evidence never inflates the score.
	if constraints.Site != "" {
		scores["site"] = e.scorer.TokenSetRatio(
			normalizers.NormalizeFacilityName(constraints.Site),
			recordSite(record),
		)
	}
	if constraints.Developer != "" {
		scores["developer"] = e.scorer.TokenSetRatio(
			normalizers.NormalizeCompany(constraints.Developer),
			recordDeveloper(record),
		)
	}
	if constraints.Technology != "" {
		scores["technology"] = e.scorer.TokenSetRatio(
			normalizers.NormalizeFacilityName(constraints.Technology),
			normalizers.NormalizeFacilityName(record.Technology),
		)
	}

	score := e.scorer.WeightedScore(scores, weights)
	score += e.capacityBonus(constraints.CapacityMW, record.CapacityMW)

	score = math.Min(100, math.Max(0, score))
	score = math.Round(score*100) / 100

	if score <= 0 {
		return models.Candidate{}, false
	}

	return models.Candidate{
		ID:          record.ClientID(),
		Name:        record.Name,
		Score:       score,
		Match:       score >= e.config.MatchThreshold,
		Type:        []models.CandidateType{models.DefaultType},
		Description: describeRecord(record),
	}, true
}

// capacityBonus returns the bonus for the tightest satisfied capacity
// tier, or 0 when either side has no numeric capacity.
func (e *Engine) capacityBonus(queryMW, recordMW *float64) float64 {
	if queryMW == nil || recordMW == nil {
		return 0
	}

	deviation := e.scorer.RelativeDeviation(*queryMW, *recordMW)
	for _, tier := range e.config.CapacityTiers {
		if deviation <= tier.MaxDeviation {
			return tier.Bonus
		}
	}
	return 0
}

func (e *Engine) clampLimit(limit int) int {
	if limit == 0 {
		limit = e.config.DefaultLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}
	return limit
}

// typeMatches applies the hard type filter: the query type must match
// the record's technology category, case-insensitively after
// normalization. The default "/renewable" type matches every record.
func typeMatches(queryType, technology string) bool {
	qt := normalizers.NormalizeFacilityName(strings.TrimPrefix(queryType, "/"))
	if qt == "" || qt == "renewable" {
		return true
	}

	tech := normalizers.NormalizeFacilityName(technology)
	if tech == "" {
		return false
	}

	return strings.Contains(tech, qt) || strings.Contains(qt, tech)
}

// recordName prefers the precomputed normalized name column.
func recordName(record *models.ProjectRecord) string {
	if record.NameNormalised != "" {
		return record.NameNormalised
	}
	return normalizers.NormalizeFacilityName(record.Name)
}

func recordSite(record *models.ProjectRecord) string {
	if record.SiteNameNormalised != "" {
		return record.SiteNameNormalised
	}
	return normalizers.NormalizeFacilityName(record.SiteName)
}

func recordDeveloper(record *models.ProjectRecord) string {
	if record.DeveloperNormalised != "" {
		return record.DeveloperNormalised
	}
	return normalizers.NormalizeCompany(record.Developer)
}

// describeRecord builds the one-line candidate description from the
// record's technology, capacity, status and developer.
func describeRecord(record *models.ProjectRecord) string {
	var parts []string
	if record.Technology != "" {
		parts = append(parts, record.Technology)
	}
	if record.CapacityMW != nil {
		parts = append(parts, strconv.FormatFloat(*record.CapacityMW, 'f', -1, 64)+" MW")
	}
	if record.Status != "" {
		parts = append(parts, record.Status)
	}
	if record.Developer != "" {
		parts = append(parts, record.Developer)
	}
	return strings.Join(parts, " / ")
}
