package updater

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeReleaseServer(t *testing.T, release Release) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(release))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck_UpdateAvailable(t *testing.T) {
	srv := fakeReleaseServer(t, Release{
		TagName: "v2.1.0",
		HTMLURL: "https://example.com/releases/v2.1.0",
	})
	u := New(WithEndpoint(srv.URL), WithClient(srv.Client()))

	result := u.Check("v2.0.3")

	assert.True(t, result.UpdateAvailable)
	assert.Equal(t, "2.0.3", result.CurrentVersion)
	assert.Equal(t, "2.1.0", result.LatestVersion)
	assert.Equal(t, "https://example.com/releases/v2.1.0", result.ReleaseURL)
}

func TestCheck_AlreadyCurrent(t *testing.T) {
	srv := fakeReleaseServer(t, Release{TagName: "v2.0.3"})
	u := New(WithEndpoint(srv.URL), WithClient(srv.Client()))

	result := u.Check("v2.0.3")

	assert.False(t, result.UpdateAvailable)
}

func TestCheck_DevBuildNeverUpdates(t *testing.T) {
	srv := fakeReleaseServer(t, Release{TagName: "v99.0.0"})
	u := New(WithEndpoint(srv.URL), WithClient(srv.Client()))

	result := u.Check("dev")

	assert.False(t, result.UpdateAvailable)
}

func TestCheck_NetworkFailureDegradesQuietly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	u := New(WithEndpoint(srv.URL), WithClient(srv.Client()))

	result := u.Check("v1.0.0")

	assert.False(t, result.UpdateAvailable)
	assert.Empty(t, result.LatestVersion)
}

func TestApply_AlreadyLatest(t *testing.T) {
	srv := fakeReleaseServer(t, Release{TagName: "v1.0.0"})
	u := New(WithEndpoint(srv.URL), WithClient(srv.Client()))

	err := u.Apply("v1.0.0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already at latest version")
}

func TestApply_MissingAssetForPlatform(t *testing.T) {
	srv := fakeReleaseServer(t, Release{
		TagName: "v2.0.0",
		Assets: []Asset{
			{Name: "mem-claude_2.0.0_plan9_mips.tar.gz", BrowserDownloadURL: "https://example.com/x"},
		},
	})
	u := New(WithEndpoint(srv.URL), WithClient(srv.Client()))

	err := u.Apply("v1.0.0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no release asset")
}

func TestIsNewer(t *testing.T) {
	cases := []struct {
		name     string
		current  string
		latest   string
		expected bool
	}{
		{"patch bump", "1.0.0", "1.0.1", true},
		{"minor bump", "1.2.9", "1.3.0", true},
		{"major bump", "1.9.9", "2.0.0", true},
		{"equal", "1.2.3", "1.2.3", false},
		{"older latest", "2.0.0", "1.9.9", false},
		{"short versions pad with zero", "1.2", "1.2.1", true},
		{"dev never updates", "dev", "9.9.9", false},
		{"empty current", "", "1.0.0", false},
		{"empty latest", "1.0.0", "", false},
		{"prerelease suffix compares by digits", "1.0.0", "1.0.1rc2", true},
		{"double digit beats single", "1.9.0", "1.10.0", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isNewer(tc.current, tc.latest))
		})
	}
}

func TestAssetName(t *testing.T) {
	u := New()
	name := u.assetName("2.1.0")
	assert.Contains(t, name, "mem-claude_2.1.0_")
	assert.Contains(t, name, ".tar.gz")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1.2.3", normalize("v1.2.3"))
	assert.Equal(t, "1.2.3", normalize("1.2.3"))
}
