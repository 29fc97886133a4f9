package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewables/repd-reconcile/pkg/catalogue"
	"github.com/renewables/repd-reconcile/pkg/models"
)

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}
func (f *fakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (f *fakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}
func (f *fakeDB) QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row {
	return nil
}
func (f *fakeDB) NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error) {
	return nil, nil
}
func (f *fakeDB) Ping() error                           { return f.pingErr }
func (f *fakeDB) PingContext(ctx context.Context) error { return f.pingErr }
func (f *fakeDB) Close() error                          { return nil }

func doHealthRequest(checker *Checker, target string) *httptest.ResponseRecorder {
	e := echo.New()
	checker.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthy(t *testing.T) {
	cat := catalogue.New([]models.ProjectRecord{{ID: "1"}, {ID: "2"}})

	t.Run("healthy with reachable database", func(t *testing.T) {
		checker := NewChecker(&fakeDB{}, cat, "test")
		rec := doHealthRequest(checker, "/healthy")

		require.Equal(t, http.StatusOK, rec.Code)

		var body models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "connected", body.Database)
		assert.Equal(t, 2, body.ProjectCount)
		assert.Equal(t, "test", body.Version)
		assert.NotEmpty(t, body.Uptime)
	})

	t.Run("degraded when the database is unreachable", func(t *testing.T) {
		checker := NewChecker(&fakeDB{pingErr: sql.ErrConnDone}, cat, "test")
		rec := doHealthRequest(checker, "/healthy")

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "unreachable", body.Database)
	})

	t.Run("degraded without a database", func(t *testing.T) {
		checker := NewChecker(nil, cat, "test")
		rec := doHealthRequest(checker, "/healthy")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestReadiness(t *testing.T) {
	checker := NewChecker(&fakeDB{}, nil, "test")

	t.Run("not ready until marked", func(t *testing.T) {
		rec := doHealthRequest(checker, "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ready after marking", func(t *testing.T) {
		checker.SetReady(true)
		rec := doHealthRequest(checker, "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("liveness is always up", func(t *testing.T) {
		rec := doHealthRequest(checker, "/health/live")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
