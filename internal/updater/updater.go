// Package updater checks the project's GitHub releases for a newer
// version. It only reports; it never downloads or replaces binaries.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://api.github.com/repos/hdrd/hdrd/releases/latest"
	requestTimeout  = 10 * time.Second
)

// Release is the subset of the GitHub release payload we consume.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Update describes the latest published release relative to the
// running version.
type Update struct {
	Version string
	URL     string
	Newer   bool
}

// Checker queries the release feed.
type Checker struct {
	client   *http.Client
	endpoint string
	current  string
	logger   *zap.Logger
}

// NewChecker builds a checker for the given running version
// (with or without a leading "v").
func NewChecker(currentVersion string, logger *zap.Logger) *Checker {
	return &Checker{
		client:   &http.Client{Timeout: requestTimeout},
		endpoint: defaultEndpoint,
		current:  currentVersion,
		logger:   logger,
	}
}

// Check fetches the latest release and compares it to the running
// version.
func (c *Checker) Check(ctx context.Context) (*Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release feed returned %s", resp.Status)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	newer := compareVersions(rel.TagName, c.current) > 0
	c.logger.Info("update check complete",
		zap.String("current", c.current),
		zap.String("latest", rel.TagName),
		zap.Bool("newer", newer))
	return &Update{Version: rel.TagName, URL: rel.HTMLURL, Newer: newer}, nil
}

// compareVersions compares dotted numeric versions, ignoring a leading
// "v" and any pre-release suffix. Returns -1, 0 or 1.
func compareVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var na, nb int
		if i < len(pa) {
			na = pa[i]
		}
		if i < len(pb) {
			nb = pb[i]
		}
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	fields := strings.Split(v, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	return parts
}
