package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/transitpulse/transitpulse_core/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		locationType int
		expected     models.StopKind
	}{
		{"platform", 0, models.StopPlatform},
		{"station", 1, models.StopStation},
		{"entrance", 2, models.StopEntrance},
		{"generic node", 3, models.StopOther},
		{"platform variant", 4, models.StopPlatform},
		{"unknown code", 9, models.StopOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop := models.Stop{ID: "s", LocationType: tt.locationType}
			assert.Equal(t, tt.expected, Classify(stop))
		})
	}
}

func TestResolveBoardableParent(t *testing.T) {
	station := models.Stop{ID: "station-1", Name: "Central", LocationType: 1}
	index := map[string]models.Stop{
		"station-1": station,
	}

	t.Run("platform with resolvable parent promotes to the station", func(t *testing.T) {
		platform := models.Stop{ID: "plat-1", LocationType: 0, ParentStationID: "station-1"}
		resolved := ResolveBoardableParent(platform, index)
		assert.NotNil(t, resolved)
		assert.Equal(t, "station-1", resolved.ID)
	})

	t.Run("platform with missing parent resolves to itself", func(t *testing.T) {
		platform := models.Stop{ID: "plat-2", LocationType: 0}
		resolved := ResolveBoardableParent(platform, index)
		assert.NotNil(t, resolved)
		assert.Equal(t, "plat-2", resolved.ID)
	})

	t.Run("platform with unresolvable parent resolves to itself", func(t *testing.T) {
		platform := models.Stop{ID: "plat-3", LocationType: 4, ParentStationID: "ghost"}
		resolved := ResolveBoardableParent(platform, index)
		assert.NotNil(t, resolved)
		assert.Equal(t, "plat-3", resolved.ID)
	})

	t.Run("entrance with resolvable parent promotes to the station", func(t *testing.T) {
		entrance := models.Stop{ID: "ent-1", LocationType: 2, ParentStationID: "station-1"}
		resolved := ResolveBoardableParent(entrance, index)
		assert.NotNil(t, resolved)
		assert.Equal(t, "station-1", resolved.ID)
	})

	t.Run("entrance with no parent is not boardable", func(t *testing.T) {
		entrance := models.Stop{ID: "ent-2", LocationType: 2}
		assert.Nil(t, ResolveBoardableParent(entrance, index))
	})

	t.Run("entrance with unresolvable parent is not boardable", func(t *testing.T) {
		entrance := models.Stop{ID: "ent-3", LocationType: 2, ParentStationID: "ghost"}
		assert.Nil(t, ResolveBoardableParent(entrance, index))
	})

	t.Run("station resolves to itself", func(t *testing.T) {
		resolved := ResolveBoardableParent(station, index)
		assert.NotNil(t, resolved)
		assert.Equal(t, "station-1", resolved.ID)
	})
}

func TestSiblingPlatforms(t *testing.T) {
	station := models.Stop{ID: "station-1", LocationType: 1}
	stops := []models.Stop{
		station,
		{ID: "plat-1", LocationType: 0, ParentStationID: "station-1"},
		{ID: "plat-2", LocationType: 0, ParentStationID: "station-1"},
		{ID: "plat-other", LocationType: 0, ParentStationID: "station-2"},
	}

	ids := SiblingPlatforms(station, stops)
	assert.Equal(t, []string{"station-1", "plat-1", "plat-2"}, ids)
}
