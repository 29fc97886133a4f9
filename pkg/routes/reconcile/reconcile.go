// Package reconcile exposes the reconciliation service endpoints.
package reconcile

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/renewables/repd-reconcile/pkg/catalogue"
	"github.com/renewables/repd-reconcile/pkg/events"
	"github.com/renewables/repd-reconcile/pkg/matching"
	"github.com/renewables/repd-reconcile/pkg/models"
)

// Handler serves the manifest and reconciliation endpoints
type Handler struct {
	engine    *matching.Engine
	catalogue *catalogue.Catalogue
	emitter   *events.Emitter
	manifest  models.ServiceManifest
	logger    ectologger.Logger
	validator *validator.Validate
}

// NewHandler creates a new reconciliation handler. The emitter may be nil
// when event publishing is disabled.
func NewHandler(engine *matching.Engine, cat *catalogue.Catalogue, emitter *events.Emitter, manifest models.ServiceManifest, logger ectologger.Logger) *Handler {
	return &Handler{
		engine:    engine,
		catalogue: cat,
		emitter:   emitter,
		manifest:  manifest,
		logger:    logger,
		validator: validator.New(),
	}
}

// RegisterRoutes registers the reconciliation endpoints
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Manifest)
	e.POST("/", h.Manifest)
	e.GET("/reconcile", h.Reconcile)
	e.POST("/reconcile", h.Reconcile)
}

// Manifest returns the service manifest
func (h *Handler) Manifest(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.JSON(http.StatusOK, h.manifest)
}

// reconcileBody is the JSON body accepted by the reconcile endpoint
type reconcileBody struct {
	Queries map[string]models.ReconcileQuery `json:"queries"`
	Query   string                           `json:"query"`
}

// Reconcile resolves a batch of reconciliation queries
func (h *Handler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	if h.catalogue == nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "catalogue unavailable")
	}

	queries, err := h.parseQueries(c)
	if err != nil {
		return err
	}

	results := make(models.BatchResult, len(queries))
	valid := make(map[string]models.ReconcileQuery, len(queries))
	for qid, query := range queries {
		if err := h.validator.Struct(query); err != nil {
			h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"query_id": qid,
			}).Warn("Rejected invalid reconcile query")
			results[qid] = models.QueryResult{Result: []models.Candidate{}}
			continue
		}
		valid[qid] = query
	}

	start := time.Now()
	batch, failures := h.engine.ResolveBatch(ctx, valid, h.catalogue)
	for qid, result := range batch {
		results[qid] = result
	}

	if h.emitter != nil {
		go func(ctx context.Context) {
			if err := h.emitter.EmitBatchCompleted(ctx, results, failures, time.Since(start)); err != nil {
				h.logger.WithContext(ctx).WithError(err).Warn("Batch event emission failed")
			}
		}(context.WithoutCancel(ctx))
	}

	return c.JSON(http.StatusOK, results)
}

// parseQueries extracts the query batch from any of the accepted request
// shapes: the queries query parameter, the q/query single-query shorthand,
// a form-encoded queries field, or a JSON body.
func (h *Handler) parseQueries(c echo.Context) (map[string]models.ReconcileQuery, error) {
	if raw := c.QueryParam("queries"); raw != "" {
		return decodeQueries([]byte(raw))
	}

	if q := singleQueryParam(c); q != "" {
		return wrapSingleQuery(q), nil
	}

	if c.Request().Method == http.MethodPost {
		contentType := c.Request().Header.Get(echo.HeaderContentType)
		if isFormContent(contentType) {
			raw := c.FormValue("queries")
			if raw == "" {
				return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "queries form field is required")
			}
			return decodeQueries([]byte(raw))
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "unreadable request body")
		}
		if len(body) > 0 {
			var parsed reconcileBody
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "malformed JSON body")
			}
			if len(parsed.Queries) > 0 {
				return parsed.Queries, nil
			}
			if parsed.Query != "" {
				return wrapSingleQuery(parsed.Query), nil
			}
		}
	}

	return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "no reconciliation queries supplied")
}

func decodeQueries(raw []byte) (map[string]models.ReconcileQuery, error) {
	var queries map[string]models.ReconcileQuery
	if err := json.Unmarshal(raw, &queries); err != nil {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "malformed queries JSON")
	}
	if len(queries) == 0 {
		return nil, httperror.NewHTTPError(http.StatusUnprocessableEntity, "queries must contain at least one entry")
	}
	return queries, nil
}

func singleQueryParam(c echo.Context) string {
	if q := c.QueryParam("q"); q != "" {
		return q
	}
	return c.QueryParam("query")
}

func wrapSingleQuery(q string) map[string]models.ReconcileQuery {
	return map[string]models.ReconcileQuery{
		"q0": {Query: q},
	}
}

func isFormContent(contentType string) bool {
	return strings.HasPrefix(contentType, echo.MIMEApplicationForm) ||
		strings.HasPrefix(contentType, echo.MIMEMultipartForm)
}
