package models

import "time"

// IDPrefix is prepended to source project identifiers before they are
// surfaced to clients. Prefixed identifiers are not stable across
// catalogue reloads.
const IDPrefix = "repd-"

// ProjectRecord is one reference project from the REPD extract.
// Records are immutable once the catalogue has been loaded.
type ProjectRecord struct {
	ID                  string   `db:"project_id" json:"id"`
	Name                string   `db:"canonical_name" json:"name"`
	NameNormalised      string   `db:"name_normalised" json:"name_normalised"`
	CapacityMW          *float64 `db:"capacity_mw" json:"capacity_mw,omitempty"`
	Status              string   `db:"status" json:"status,omitempty"`
	Technology          string   `db:"technology" json:"technology,omitempty"`
	Country             string   `db:"country" json:"country,omitempty"`
	SiteName            string   `db:"site_name" json:"site_name,omitempty"`
	SiteNameNormalised  string   `db:"site_name_normalised" json:"site_name_normalised,omitempty"`
	Developer           string   `db:"developer" json:"developer,omitempty"`
	DeveloperNormalised string   `db:"developer_normalised" json:"developer_normalised,omitempty"`
}

// ClientID returns the identifier surfaced to reconciliation clients.
func (p *ProjectRecord) ClientID() string {
	return IDPrefix + p.ID
}

// ProjectRow is the persisted shape of a project, including reference
// table foreign keys and audit columns.
type ProjectRow struct {
	ProjectID      int64     `db:"project_id"`
	CanonicalName  string    `db:"canonical_name"`
	NameNormalised string    `db:"name_normalised"`
	Status         *string   `db:"status"`
	CapacityMW     *float64  `db:"capacity_mw"`
	TechnologyID   *int64    `db:"technology_id"`
	SiteID         *int64    `db:"site_id"`
	LeadCompany    *int64    `db:"lead_company"`
	Country        *string   `db:"country"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}
