package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBuiltinProfiles(t *testing.T) {
	r := NewRegistry()

	complete, err := r.Resolve("complete")
	require.NoError(t, err)
	assert.Equal(t, Plan{"1w": 52, "1d": 90, "4h": 30, "30m": 7, "5m": 3}, complete)

	intraday, err := r.Resolve(" Intraday ")
	require.NoError(t, err)
	assert.Equal(t, Plan{"4h": 30, "30m": 7, "5m": 3}, intraday)

	_, err = r.Resolve("scalping")
	assert.Error(t, err)
}

func TestResolveReturnsCopy(t *testing.T) {
	r := NewRegistry()
	plan, err := r.Resolve("intraday")
	require.NoError(t, err)
	plan["4h"] = 999

	again, err := r.Resolve("intraday")
	require.NoError(t, err)
	assert.Equal(t, 30, again["4h"])
}

func TestLoadFileOverridesAndAdds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  intraday:
    4h: 14
    30m: 5
  weekly:
    1w: 120
    1d: 60
`), 0o644))

	r := NewRegistry()
	require.NoError(t, r.LoadFile(path))

	intraday, err := r.Resolve("intraday")
	require.NoError(t, err)
	assert.Equal(t, Plan{"4h": 14, "30m": 5}, intraday)

	weekly, err := r.Resolve("weekly")
	require.NoError(t, err)
	assert.Equal(t, 120, weekly["1w"])

	assert.Equal(t, []string{"complete", "intraday", "weekly"}, r.Names())
}

func TestLoadFileRejectsBadPlans(t *testing.T) {
	dir := t.TempDir()

	badInterval := filepath.Join(dir, "bad_interval.yaml")
	require.NoError(t, os.WriteFile(badInterval, []byte("profiles:\n  x:\n    7x: 3\n"), 0o644))
	badDays := filepath.Join(dir, "bad_days.yaml")
	require.NoError(t, os.WriteFile(badDays, []byte("profiles:\n  x:\n    4h: 0\n"), 0o644))

	r := NewRegistry()
	assert.Error(t, r.LoadFile(badInterval))
	assert.Error(t, r.LoadFile(badDays))
	assert.Error(t, r.LoadFile(filepath.Join(dir, "missing.yaml")))
}

func TestPlanIntervalsWidestFirst(t *testing.T) {
	assert.Equal(t, []string{"1w", "1d", "4h", "30m", "5m"}, Complete.Intervals())
	assert.Equal(t, []string{"4h", "30m", "5m"}, Intraday.Intervals())
}
