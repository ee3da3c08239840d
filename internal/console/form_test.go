package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/presim/internal/model"
)

func TestFormFromConfigRoundTrips(t *testing.T) {
	cfg := model.DefaultConfiguration()
	cfg.Entities = []string{"light.a", "light.b"}
	cfg.Randomness = 0.05
	cfg.LuxThreshold = 7.5

	got, err := FormFromConfig(cfg).Configuration()
	require.NoError(t, err)
	assert.Equal(t, 0.05, got.Randomness)
	assert.Equal(t, 7.5, got.LuxThreshold)
	assert.Equal(t, []string{"light.a", "light.b"}, got.Entities)
}

func TestFormBlankNumberReadsAsZero(t *testing.T) {
	form := FormFromConfig(model.DefaultConfiguration())
	form.IntervalMin = "   "
	got, err := form.Configuration()
	require.NoError(t, err)
	assert.Equal(t, 0, got.IntervalMin)
}

func TestFormAcceptsWholeValuedNumberSpellings(t *testing.T) {
	form := FormFromConfig(model.DefaultConfiguration())
	require.NoError(t, form.Set(FieldIntervalMin, " 5.0 "))
	require.NoError(t, form.Set(FieldSlotMinutes, "1e1"))

	got, err := form.Configuration()
	require.NoError(t, err)
	assert.Equal(t, 5, got.IntervalMin)
	assert.Equal(t, 10, got.SlotMinutes)
}

func TestFormRejectsNonNumbers(t *testing.T) {
	cases := map[string]string{
		FieldIntervalMin:  "5min",
		FieldSlotMinutes:  "1.5",
		FieldTrainingDays: "Inf",
		FieldRandomness:   "NaN",
		FieldLuxThreshold: "dark",
	}
	for key, value := range cases {
		form := FormFromConfig(model.DefaultConfiguration())
		require.NoError(t, form.Set(key, value))
		_, err := form.Configuration()
		var cerr *CoercionError
		require.ErrorAsf(t, err, &cerr, "%s=%q", key, value)
		assert.Equal(t, key, cerr.Field)
	}
}

func TestFormToggleKeepsOrder(t *testing.T) {
	form := Form{Entities: []string{"a", "b", "c"}}
	form.Toggle("b")
	form.Toggle("d")
	form.Toggle("b")
	assert.Equal(t, []string{"a", "c", "d", "b"}, form.Entities)
	assert.True(t, form.Selected("d"))
	assert.False(t, form.Selected("x"))
}

func TestFormSetEntitiesAndUnknownField(t *testing.T) {
	var form Form
	require.NoError(t, form.Set(FieldEntities, "light.a, ,switch.b"))
	assert.Equal(t, []string{"light.a", "switch.b"}, form.Entities)
	assert.Error(t, form.Set("colour", "blue"))
}

func TestFormCycleDarknessMode(t *testing.T) {
	form := Form{DarknessMode: "sun"}
	form.CycleDarknessMode()
	assert.EqualValues(t, "entity_state", form.DarknessMode)
	form.CycleDarknessMode()
	form.CycleDarknessMode()
	assert.EqualValues(t, "sun", form.DarknessMode)

	form.DarknessMode = "twilight"
	form.CycleDarknessMode()
	assert.EqualValues(t, "sun", form.DarknessMode, "unknown mode resets to sun")
}

func TestFormPassesUnknownDarknessModeThrough(t *testing.T) {
	form := FormFromConfig(model.DefaultConfiguration())
	form.DarknessMode = "twilight"
	got, err := form.Configuration()
	require.NoError(t, err)
	assert.EqualValues(t, "twilight", got.DarknessMode)
}
