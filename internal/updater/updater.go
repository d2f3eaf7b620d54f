// Package updater checks GitHub releases for a newer mem-claude build and
// can replace the running binary in place. Downloads go to a temp file
// first; the swap is a rename, so a failed update never leaves a broken
// executable behind.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRepo    = "chengjon/mem-claude"
	defaultBinary  = "mem-claude"
	requestTimeout = 10 * time.Second
)

// Updater talks to the GitHub Releases API for one repository.
type Updater struct {
	repo     string
	binary   string
	endpoint string
	client   *http.Client
}

// Option adjusts an Updater, used by tests to point at a fake API.
type Option func(*Updater)

// WithEndpoint overrides the releases API URL.
func WithEndpoint(url string) Option {
	return func(u *Updater) { u.endpoint = url }
}

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(u *Updater) { u.client = c }
}

// New creates an Updater for the mem-claude repository.
func New(opts ...Option) *Updater {
	u := &Updater{
		repo:   defaultRepo,
		binary: defaultBinary,
		client: &http.Client{Timeout: requestTimeout},
	}
	u.endpoint = "https://api.github.com/repos/" + u.repo + "/releases/latest"
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Release holds the relevant fields of a GitHub release.
type Release struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file in a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// CheckResult reports whether a newer release exists.
type CheckResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// Check queries the latest release and compares it against currentVersion.
// Network failures degrade to "no update": the check is best effort and
// must never break startup.
func (u *Updater) Check(currentVersion string) *CheckResult {
	result := &CheckResult{CurrentVersion: normalize(currentVersion)}

	release, err := u.latest(currentVersion)
	if err != nil {
		return result
	}

	result.LatestVersion = normalize(release.TagName)
	result.ReleaseURL = release.HTMLURL
	result.UpdateAvailable = isNewer(result.CurrentVersion, result.LatestVersion)
	return result
}

// Apply downloads the release asset for this OS/arch and swaps it over the
// running executable.
func (u *Updater) Apply(currentVersion string) error {
	release, err := u.latest(currentVersion)
	if err != nil {
		return err
	}

	latest := normalize(release.TagName)
	if !isNewer(normalize(currentVersion), latest) {
		return fmt.Errorf("already at latest version (%s)", currentVersion)
	}

	assetName := u.assetName(latest)
	var downloadURL string
	for _, asset := range release.Assets {
		if asset.Name == assetName {
			downloadURL = asset.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("no release asset for %s/%s (expected %s)", runtime.GOOS, runtime.GOARCH, assetName)
	}

	resp, err := u.client.Get(downloadURL)
	if err != nil {
		return fmt.Errorf("downloading release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned %d", resp.StatusCode)
	}

	binaryData, err := u.extract(resp.Body)
	if err != nil {
		return fmt.Errorf("extracting binary: %w", err)
	}

	return swapExecutable(binaryData)
}

// latest fetches and decodes the newest release.
func (u *Updater) latest(currentVersion string) (*Release, error) {
	req, err := http.NewRequest(http.MethodGet, u.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", u.binary+"/"+currentVersion)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parsing release info: %w", err)
	}
	return &release, nil
}

// extract pulls the binary out of a .tar.gz release archive.
func (u *Updater) extract(reader io.Reader) ([]byte, error) {
	gz, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}

		name := filepath.Base(header.Name)
		if name == u.binary || name == u.binary+".exe" {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("%s binary not found in archive", u.binary)
}

// assetName builds the archive filename for the current OS and arch,
// matching GoReleaser's name_template.
func (u *Updater) assetName(version string) string {
	return fmt.Sprintf("%s_%s_%s_%s.tar.gz", u.binary, version, runtime.GOOS, runtime.GOARCH)
}

// swapExecutable writes the new binary next to the current one and renames
// it over the top.
func swapExecutable(data []byte) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding current executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving symlinks: %w", err)
	}

	tmpPath := execPath + ".new"
	if err := os.WriteFile(tmpPath, data, 0o755); err != nil {
		return fmt.Errorf("writing new binary: %w", err)
	}

	// Windows cannot rename over a running binary; park the old one first.
	if runtime.GOOS == "windows" {
		oldPath := execPath + ".old"
		_ = os.Remove(oldPath)
		if err := os.Rename(execPath, oldPath); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("backing up current binary: %w", err)
		}
	}

	if err := os.Rename(tmpPath, execPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing binary: %w", err)
	}
	return nil
}

// normalize strips the leading "v" from version strings.
func normalize(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isNewer compares dotted version strings numerically, part by part.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}

	cur := strings.Split(current, ".")
	lat := strings.Split(latest, ".")
	for len(cur) < 3 {
		cur = append(cur, "0")
	}
	for len(lat) < 3 {
		lat = append(lat, "0")
	}

	for i := 0; i < 3; i++ {
		c := digitPrefix(cur[i])
		l := digitPrefix(lat[i])
		if l != c {
			return l > c
		}
	}
	return false
}

// digitPrefix parses the leading digits of s, so "3rc1" compares as 3.
func digitPrefix(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
