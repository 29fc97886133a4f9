package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewables/repd-reconcile/pkg/catalogue"
	"github.com/renewables/repd-reconcile/pkg/logging"
	"github.com/renewables/repd-reconcile/pkg/models"
)

func floatPtr(f float64) *float64 {
	return &f
}

func testCatalogue() *catalogue.Catalogue {
	return catalogue.New([]models.ProjectRecord{
		{
			ID:                  "1",
			Name:                "Aberarder Wind Farm",
			NameNormalised:      "aberarder wind farm",
			CapacityMW:          floatPtr(50),
			Status:              "Operational",
			Technology:          "Wind Onshore",
			SiteName:            "Aberarder Estate",
			SiteNameNormalised:  "aberarder estate",
			Developer:           "SSE Renewables",
			DeveloperNormalised: "sse renewables",
		},
		{
			ID:             "2",
			Name:           "Drax Biomass Unit 1",
			NameNormalised: "drax biomass unit 1",
			CapacityMW:     floatPtr(645),
			Status:         "Operational",
			Technology:     "Biomass",
		},
		{
			ID:             "3",
			Name:           "Cleve Hill Solar Park",
			NameNormalised: "cleve hill solar park",
			CapacityMW:     floatPtr(350),
			Status:         "Under Construction",
			Technology:     "Solar Photovoltaics",
		},
	})
}

func newTestEngine() *Engine {
	return NewEngine(logging.NewNop(), DefaultConfig())
}

func TestEngine_Resolve(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	t.Run("exact name is a confident match", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "Aberarder Wind Farm"}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)

		top := candidates[0]
		assert.Equal(t, "repd-1", top.ID)
		assert.Equal(t, "Aberarder Wind Farm", top.Name)
		assert.Equal(t, 100.0, top.Score)
		assert.True(t, top.Match)
		assert.Equal(t, []models.CandidateType{models.DefaultType}, top.Type)
		assert.Equal(t, "Wind Onshore / 50 MW / Operational / SSE Renewables", top.Description)
	})

	t.Run("ranks best candidate first", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "cleve hill solar"}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "repd-3", candidates[0].ID)
	})

	t.Run("empty query is invalid", func(t *testing.T) {
		_, err := engine.Resolve(ctx, models.ReconcileQuery{Query: ""}, testCatalogue())
		assert.ErrorIs(t, err, ErrInvalidQuery)

		_, err = engine.Resolve(ctx, models.ReconcileQuery{Query: "!!!"}, testCatalogue())
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})

	t.Run("empty catalogue yields empty result without error", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "anything"}, catalogue.New(nil))
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestEngine_TypeFilter(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	t.Run("mismatched type excludes the record entirely", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{
			Query: "Aberarder Wind Farm",
			Type:  "/solar",
		}, testCatalogue())
		require.NoError(t, err)
		for _, c := range candidates {
			assert.NotEqual(t, "repd-1", c.ID)
		}
	})

	t.Run("default renewable type matches every record", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{
			Query: "Aberarder Wind Farm",
			Type:  "/renewable",
		}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "repd-1", candidates[0].ID)
	})

	t.Run("partial technology category matches", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{
			Query: "Aberarder Wind Farm",
			Type:  "/wind",
		}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "repd-1", candidates[0].ID)
	})
}

func TestEngine_CapacityBonus(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	// "aberarder" against "aberarder wind farm" scores 82.14 on name
	// alone, so each bonus tier is visible in the final score.
	baseQuery := func(capacity any) models.ReconcileQuery {
		q := models.ReconcileQuery{Query: "aberarder"}
		if capacity != nil {
			q.Properties = []models.QueryProperty{{PID: "MW Connected", Value: capacity}}
		}
		return q
	}
	topScore := func(t *testing.T, q models.ReconcileQuery) float64 {
		candidates, err := engine.Resolve(ctx, q, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		require.Equal(t, "repd-1", candidates[0].ID)
		return candidates[0].Score
	}

	base := topScore(t, baseQuery(nil))
	assert.InDelta(t, 82.14, base, 0.01)

	t.Run("within 5 percent adds 10", func(t *testing.T) {
		assert.InDelta(t, base+10, topScore(t, baseQuery(52.0)), 0.01)
	})

	t.Run("within 15 percent adds 5", func(t *testing.T) {
		assert.InDelta(t, base+5, topScore(t, baseQuery(56.0)), 0.01)
	})

	t.Run("within 25 percent adds 2", func(t *testing.T) {
		assert.InDelta(t, base+2, topScore(t, baseQuery(61.0)), 0.01)
	})

	t.Run("beyond 25 percent adds nothing", func(t *testing.T) {
		assert.InDelta(t, base, topScore(t, baseQuery(90.0)), 0.01)
	})

	t.Run("string capacity with unit parses", func(t *testing.T) {
		assert.InDelta(t, base+10, topScore(t, baseQuery("52 MW")), 0.01)
	})

	t.Run("score never exceeds 100", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{
			Query:      "Aberarder Wind Farm",
			Properties: []models.QueryProperty{{PID: "MW Connected", Value: 50.0}},
		}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, 100.0, candidates[0].Score)
	})
}

func TestEngine_ConstrainedFields(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	t.Run("matching developer keeps a perfect score", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{
			Query:      "Aberarder Wind Farm",
			Properties: []models.QueryProperty{{PID: "Customer Name", Value: "SSE Renewables Ltd"}},
		}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, 100.0, candidates[0].Score)
	})

	t.Run("constrained field missing on record drags the score down", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{
			Query:      "Drax Biomass Unit 1",
			Properties: []models.QueryProperty{{PID: "Customer Name", Value: "SSE Renewables"}},
		}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)

		// name 100 at weight .50, developer 0 at weight .15
		assert.InDelta(t, 100.0*0.50/0.65, candidates[0].Score, 0.01)
		assert.False(t, candidates[0].Match)
	})

	t.Run("unconstrained fields never penalize", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "Drax Biomass Unit 1"}, testCatalogue())
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, 100.0, candidates[0].Score)
	})
}

func TestEngine_LimitAndOrdering(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	duplicates := catalogue.New([]models.ProjectRecord{
		{ID: "1", Name: "Mire Loch Wind Farm", NameNormalised: "mire loch wind farm"},
		{ID: "2", Name: "Mire Loch Wind Farm", NameNormalised: "mire loch wind farm"},
		{ID: "3", Name: "Mire Loch Wind Farm", NameNormalised: "mire loch wind farm"},
		{ID: "4", Name: "Mire Loch Wind Farm", NameNormalised: "mire loch wind farm"},
	})

	t.Run("default limit is 3", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "Mire Loch Wind Farm"}, duplicates)
		require.NoError(t, err)
		assert.Len(t, candidates, 3)
	})

	t.Run("ties keep catalogue insertion order", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "Mire Loch Wind Farm", Limit: 4}, duplicates)
		require.NoError(t, err)
		require.Len(t, candidates, 4)
		assert.Equal(t, "repd-1", candidates[0].ID)
		assert.Equal(t, "repd-2", candidates[1].ID)
		assert.Equal(t, "repd-3", candidates[2].ID)
		assert.Equal(t, "repd-4", candidates[3].ID)
	})

	t.Run("explicit limit truncates", func(t *testing.T) {
		candidates, err := engine.Resolve(ctx, models.ReconcileQuery{Query: "Mire Loch Wind Farm", Limit: 1}, duplicates)
		require.NoError(t, err)
		assert.Len(t, candidates, 1)
	})

	t.Run("limit above the maximum clamps", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxLimit = 2
		clamped := NewEngine(logging.NewNop(), cfg)

		candidates, err := clamped.Resolve(ctx, models.ReconcileQuery{Query: "Mire Loch Wind Farm", Limit: 10}, duplicates)
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})
}

func TestEngine_ResolveBatch(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	t.Run("every query id appears exactly once", func(t *testing.T) {
		queries := map[string]models.ReconcileQuery{
			"q0": {Query: "Aberarder Wind Farm"},
			"q1": {Query: "Cleve Hill Solar Park"},
			"q2": {Query: "???"},
		}

		results, failures := engine.ResolveBatch(ctx, queries, testCatalogue())
		require.Len(t, results, 3)

		assert.NotEmpty(t, results["q0"].Result)
		assert.NotEmpty(t, results["q1"].Result)

		// The invalid query resolves to an empty list, not an absent key.
		invalid, ok := results["q2"]
		require.True(t, ok)
		assert.Empty(t, invalid.Result)
		assert.NotNil(t, invalid.Result)

		require.Len(t, failures, 1)
		assert.ErrorIs(t, failures["q2"], ErrInvalidQuery)
	})

	t.Run("empty batch yields empty result", func(t *testing.T) {
		results, failures := engine.ResolveBatch(ctx, map[string]models.ReconcileQuery{}, testCatalogue())
		assert.Empty(t, results)
		assert.Empty(t, failures)
	})
}
