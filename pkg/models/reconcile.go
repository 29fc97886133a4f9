// Package models defines the reconciliation wire types.
//
// Reference: https://www.w3.org/community/reports/reconciliation/CG-FINAL-specs-0.2-20230410/
package models

// QueryProperty is a single property constraint on a reconciliation query.
type QueryProperty struct {
	PID   string `json:"pid" validate:"required"`
	Value any    `json:"v"`
}

// ReconcileQuery is one reconciliation request unit.
type ReconcileQuery struct {
	Query      string          `json:"query" validate:"required"`
	Limit      int             `json:"limit,omitempty"`
	Type       string          `json:"type,omitempty"`
	TypeStrict string          `json:"type_strict,omitempty"`
	Properties []QueryProperty `json:"properties,omitempty"`
}

// CandidateType identifies the entity type of a candidate.
type CandidateType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Candidate is a scored pairing of one query with one catalogue record.
type Candidate struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Score       float64         `json:"score"`
	Match       bool            `json:"match"`
	Type        []CandidateType `json:"type"`
	Description string          `json:"description,omitempty"`
}

// QueryResult holds the ranked candidates for one query id.
type QueryResult struct {
	Result []Candidate `json:"result"`
}

// BatchResult maps every input query id to its result. Every id present
// in the input batch has exactly one entry here, even when that query
// failed.
type BatchResult map[string]QueryResult

// ServiceManifest is returned from the service root per the
// reconciliation protocol.
type ServiceManifest struct {
	Name            string          `json:"name"`
	IdentifierSpace string          `json:"identifierSpace"`
	SchemaSpace     string          `json:"schemaSpace"`
	DefaultTypes    []CandidateType `json:"defaultTypes"`
}

// DefaultType is the type descriptor attached to every candidate and
// advertised in the manifest.
var DefaultType = CandidateType{ID: "/renewable", Name: "Renewable Facility"}

// HealthResponse is the /healthy payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	ProjectCount int    `json:"project_count"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
}
