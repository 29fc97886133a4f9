// Package catalogue holds the in-memory reference record set the
// engine matches against. The catalogue is loaded once at startup and
// never mutated afterwards, so concurrent readers need no locking.
package catalogue

import "github.com/renewables/repd-reconcile/pkg/models"

// Catalogue is an immutable, insertion-ordered set of project records.
type Catalogue struct {
	records []models.ProjectRecord
}

// New creates a catalogue from a slice of records. The slice is copied
// so later changes by the caller cannot leak into the catalogue.
func New(records []models.ProjectRecord) *Catalogue {
	copied := make([]models.ProjectRecord, len(records))
	copy(copied, records)
	return &Catalogue{records: copied}
}

// Records returns the records in insertion order. Callers must not
// modify the returned slice.
func (c *Catalogue) Records() []models.ProjectRecord {
	if c == nil {
		return nil
	}
	return c.records
}

// Len returns the number of records in the catalogue.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}
