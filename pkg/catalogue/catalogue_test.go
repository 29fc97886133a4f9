package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/renewables/repd-reconcile/pkg/models"
)

func TestCatalogue(t *testing.T) {
	t.Run("preserves record order", func(t *testing.T) {
		cat := New([]models.ProjectRecord{
			{ID: "1", Name: "First"},
			{ID: "2", Name: "Second"},
		})

		records := cat.Records()
		assert.Equal(t, 2, cat.Len())
		assert.Equal(t, "1", records[0].ID)
		assert.Equal(t, "2", records[1].ID)
	})

	t.Run("copies the input slice", func(t *testing.T) {
		source := []models.ProjectRecord{{ID: "1", Name: "Original"}}
		cat := New(source)

		source[0].Name = "Mutated"
		assert.Equal(t, "Original", cat.Records()[0].Name)
	})

	t.Run("nil input yields an empty catalogue", func(t *testing.T) {
		cat := New(nil)
		assert.Equal(t, 0, cat.Len())
		assert.Empty(t, cat.Records())
	})
}
