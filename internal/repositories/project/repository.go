package project

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/renewables/repd-reconcile/internal/database"
	"github.com/renewables/repd-reconcile/pkg/models"
	"github.com/renewables/repd-reconcile/pkg/tracing"
)

// Repository handles project catalogue persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new project repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// projectRow is the denormalized row shape returned by FetchAll.
type projectRow struct {
	ProjectID           int64           `db:"project_id"`
	CanonicalName       string          `db:"canonical_name"`
	NameNormalised      string          `db:"name_normalised"`
	CapacityMW          sql.NullFloat64 `db:"capacity_mw"`
	Status              sql.NullString  `db:"status"`
	Country             sql.NullString  `db:"country"`
	Technology          sql.NullString  `db:"technology"`
	SiteName            sql.NullString  `db:"site_name"`
	SiteNameNormalised  sql.NullString  `db:"site_name_normalised"`
	Developer           sql.NullString  `db:"developer"`
	DeveloperNormalised sql.NullString  `db:"developer_normalised"`
}

// FetchAll retrieves every project with its technology, site and
// developer resolved, in insertion order. Insertion order is
// load-bearing: the engine breaks score ties on it.
func (r *Repository) FetchAll(ctx context.Context) ([]models.ProjectRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.FetchAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"p.project_id",
		"p.canonical_name",
		"p.name_normalised",
		"p.capacity_mw",
		"p.status",
		"p.country",
		"t.tech_name AS technology",
		"s.site_name",
		"s.name_normalised AS site_name_normalised",
		"c.legal_name AS developer",
		"c.name_normalised AS developer_normalised",
	)
	sb.From("project p")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "technology t", "p.technology_id = t.technology_id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "site s", "p.site_id = s.site_id")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "company c", "p.lead_company = c.company_id")
	sb.OrderBy("p.project_id ASC")

	query, args := sb.Build()
	var rows []projectRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch projects")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch projects")
	}

	records := ectolinq.Map(rows, func(row projectRow) models.ProjectRecord {
		record := models.ProjectRecord{
			ID:                  formatID(row.ProjectID),
			Name:                row.CanonicalName,
			NameNormalised:      row.NameNormalised,
			Status:              row.Status.String,
			Technology:          row.Technology.String,
			Country:             row.Country.String,
			SiteName:            row.SiteName.String,
			SiteNameNormalised:  row.SiteNameNormalised.String,
			Developer:           row.Developer.String,
			DeveloperNormalised: row.DeveloperNormalised.String,
		}
		if row.CapacityMW.Valid {
			mw := row.CapacityMW.Float64
			record.CapacityMW = &mw
		}
		return record
	})

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(records)}).Info("Fetched project catalogue")
	return records, nil
}

// Count returns the number of projects in the store
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.Count")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("project")

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count projects")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count projects")
	}

	return count, nil
}

// GetOrCreateTechnology resolves a technology name to its id, inserting
// it when missing.
func (r *Repository) GetOrCreateTechnology(ctx context.Context, name string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.GetOrCreateTechnology")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("technology_id")
	sb.From("technology")
	sb.Where(sb.Equal("tech_name", name))

	query, args := sb.Build()
	var id int64
	err := r.db.GetContext(ctx, &id, query, args...)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to look up technology")
		return 0, err
	}

	insert := "INSERT INTO technology (tech_name) VALUES ($1) RETURNING technology_id"
	if err := r.db.QueryRowxContext(ctx, insert, name).Scan(&id); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert technology")
		return 0, err
	}
	return id, nil
}

// SiteDetails carries the site attributes captured at load time.
type SiteDetails struct {
	Name       string
	Normalised string
	Latitude   *float64
	Longitude  *float64
	GridRef    *string
	Authority  *string
	Postcode   *string
	Country    *string
}

// GetOrCreateSite resolves a site to its id, inserting it when missing.
// Sites are matched on normalised name, narrowed by postcode when one
// is present.
func (r *Repository) GetOrCreateSite(ctx context.Context, site SiteDetails) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.GetOrCreateSite")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("site_id")
	sb.From("site")
	sb.Where(sb.Equal("name_normalised", site.Normalised))
	if site.Postcode != nil {
		sb.Where(sb.Equal("postcode", *site.Postcode))
	}

	query, args := sb.Build()
	var id int64
	err := r.db.GetContext(ctx, &id, query, args...)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to look up site")
		return 0, err
	}

	insert := `
		INSERT INTO site (site_name, name_normalised, latitude, longitude, grid_ref, la_authority, postcode, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING site_id`
	err = r.db.QueryRowxContext(ctx, insert,
		site.Name, site.Normalised, site.Latitude, site.Longitude,
		site.GridRef, site.Authority, site.Postcode, site.Country,
	).Scan(&id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert site")
		return 0, err
	}
	return id, nil
}

// GetOrCreateCompany resolves a company legal name to its id, inserting
// it when missing.
func (r *Repository) GetOrCreateCompany(ctx context.Context, legalName, normalised string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.GetOrCreateCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("company_id")
	sb.From("company")
	sb.Where(sb.Equal("name_normalised", normalised))

	query, args := sb.Build()
	var id int64
	err := r.db.GetContext(ctx, &id, query, args...)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to look up company")
		return 0, err
	}

	insert := "INSERT INTO company (legal_name, name_normalised) VALUES ($1, $2) RETURNING company_id"
	if err := r.db.QueryRowxContext(ctx, insert, legalName, normalised).Scan(&id); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert company")
		return 0, err
	}
	return id, nil
}

// UpsertProject inserts a project row, replacing an existing row with
// the same canonical name.
func (r *Repository) UpsertProject(ctx context.Context, row *models.ProjectRow) error {
	ctx, span := tracing.StartSpan(ctx, "project.Repository.UpsertProject")
	defer span.End()

	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	query := `
		INSERT INTO project (canonical_name, name_normalised, status, capacity_mw, technology_id, site_id, lead_company, country, created_at, updated_at)
		VALUES (:canonical_name, :name_normalised, :status, :capacity_mw, :technology_id, :site_id, :lead_company, :country, :created_at, :updated_at)
		ON CONFLICT (canonical_name) DO UPDATE SET
			name_normalised = EXCLUDED.name_normalised,
			status = EXCLUDED.status,
			capacity_mw = EXCLUDED.capacity_mw,
			technology_id = EXCLUDED.technology_id,
			site_id = EXCLUDED.site_id,
			lead_company = EXCLUDED.lead_company,
			country = EXCLUDED.country,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": row.CanonicalName}).Error("Failed to upsert project")
		return err
	}

	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
