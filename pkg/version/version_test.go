package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// restore puts the package variables back after a test mutates them.
func restore(t *testing.T) {
	t.Helper()
	commit, date, modified := Commit, Date, Modified
	t.Cleanup(func() { Commit, Date, Modified = commit, date, modified })
}

func TestVersion_IsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	assert.Regexp(t, regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`), Version)
}

func TestApplyVCS_FillsUnsetFields(t *testing.T) {
	// Given: no ldflags values
	restore(t)
	Commit, Date, Modified = "unknown", "unknown", false

	// When: the build carries a VCS stamp
	applyVCS([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
	})

	// Then: the short revision and date are used and the tree is dirty
	assert.Equal(t, "0123456789ab", Commit)
	assert.Equal(t, "2026-10-01T12:00:00Z", Date)
	assert.True(t, Modified)
	assert.Contains(t, String(), "commit: 0123456789ab-dirty")
}

func TestApplyVCS_LdflagsWin(t *testing.T) {
	restore(t)
	Commit, Date = "abc123", "2026-09-30"

	applyVCS([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "ffffffffffffffff"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
	})

	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-09-30", Date)
}

func TestString_NamesProgramAndPlatform(t *testing.T) {
	str := String()

	assert.Contains(t, str, "resumatch "+Version)
	assert.Contains(t, str, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestGetInfo_JSON(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, runtime.GOOS, m["os"])
	assert.Equal(t, runtime.Version(), m["go_version"])
}
