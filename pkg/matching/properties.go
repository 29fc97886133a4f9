package matching

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/renewables/repd-reconcile/pkg/models"
)

// Constraint field keys used by the scorer.
const (
	fieldCapacity   = "capacity_mw"
	fieldDeveloper  = "customer_name"
	fieldSite       = "connection_site"
	fieldTechnology = "plant_type"
	fieldStatus     = "project_status"
)

// propertyAliases maps recognized client property identifiers to
// internal constraint fields.
var propertyAliases = map[string]string{
	// capacity
	"MW Connected":                   fieldCapacity,
	"MW Increase / Decrease":         fieldCapacity,
	"Cumulative Total Capacity (MW)": fieldCapacity,

	// developer
	"Customer Name": fieldDeveloper,

	// site
	"Connection Site": fieldSite,

	// technology
	"Plant Type": fieldTechnology,

	// status
	"Project Status": fieldStatus,
}

// queryConstraints holds the extracted, typed property constraints of
// one query. A nil CapacityMW means no usable capacity constraint was
// supplied.
type queryConstraints struct {
	CapacityMW *float64
	Developer  string
	Site       string
	Technology string
	Status     string
}

// extractConstraints resolves a query's property list into typed
// constraints. Unrecognized property identifiers and malformed values
// are ignored per constraint; they never fail the query.
func extractConstraints(props []models.QueryProperty) queryConstraints {
	var out queryConstraints

	for _, p := range props {
		if p.PID == "" || p.Value == nil {
			continue
		}

		field, ok := propertyAliases[p.PID]
		if !ok {
			field = strings.ReplaceAll(strings.ToLower(p.PID), " ", "_")
		}

		switch field {
		case fieldCapacity:
			if mw, ok := parseCapacity(p.Value); ok {
				out.CapacityMW = &mw
			}
		case fieldDeveloper:
			out.Developer = stringValue(p.Value)
		case fieldSite:
			out.Site = stringValue(p.Value)
		case fieldTechnology:
			out.Technology = stringValue(p.Value)
		case fieldStatus:
			out.Status = stringValue(p.Value)
		}
	}

	return out
}

// parseCapacity parses a capacity value, tolerating thousands separators
// and a trailing MW unit.
func parseCapacity(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}

	clean := stringValue(v)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(clean), "MW"))

	mw, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return mw, true
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
