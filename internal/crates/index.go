package crates

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"expandinator/internal/logging"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"
)

// ErrNoMatchingVersion is returned when no published, unyanked release
// satisfies a requirement.
var ErrNoMatchingVersion = errors.New("no matching crate version")

// Version is one release record from the index.
type Version struct {
	Name     string `json:"name"`
	Vers     string `json:"vers"`
	Checksum string `json:"cksum"`
	Yanked   bool   `json:"yanked"`
}

// Resolved pairs a target with the release chosen for it.
type Resolved struct {
	Target  Target
	Version Version
}

// Index reads release records from a sparse registry index.
type Index struct {
	baseURL string
	client  *http.Client
}

// NewIndex creates an index client rooted at baseURL.
func NewIndex(baseURL string, timeout time.Duration) *Index {
	return &Index{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// IndexPath returns the path of a crate's index file relative to the index
// root, following Cargo's layout.
func IndexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	}
	return name[:2] + "/" + name[2:4] + "/" + name
}

// ParseRequirement converts a Cargo version requirement to constraints.
// A bare version means a caret requirement, as in Cargo.
func ParseRequirement(req string) (*semver.Constraints, error) {
	parts := strings.Split(req, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && p[0] >= '0' && p[0] <= '9' {
			p = "^" + p
		}
		parts[i] = p
	}
	c, err := semver.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return nil, fmt.Errorf("invalid version requirement %q: %w", req, err)
	}
	return c, nil
}

// Versions fetches every release record of a crate.
func (ix *Index) Versions(ctx context.Context, name string) ([]Version, error) {
	url := ix.baseURL + "/" + IndexPath(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create index request: %w", err)
	}

	resp, err := ix.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("index returned status %d for %s: %s", resp.StatusCode, name, strings.TrimSpace(string(body)))
	}

	var versions []Version
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var v Version
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return nil, fmt.Errorf("failed to parse index record for %s: %w", name, err)
		}
		versions = append(versions, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index for %s: %w", name, err)
	}
	logging.CratesDebug("index %s: %d releases", name, len(versions))
	return versions, nil
}

// Resolve returns the highest unyanked release of name matching req.
func (ix *Index) Resolve(ctx context.Context, name, req string) (Version, error) {
	constraints, err := ParseRequirement(req)
	if err != nil {
		return Version{}, err
	}
	versions, err := ix.Versions(ctx, name)
	if err != nil {
		return Version{}, err
	}

	var (
		best    Version
		bestVer *semver.Version
	)
	for _, v := range versions {
		if v.Yanked {
			continue
		}
		sv, err := semver.StrictNewVersion(v.Vers)
		if err != nil {
			logging.CratesDebug("skipping unparseable version %s %q", name, v.Vers)
			continue
		}
		if !constraints.Check(sv) {
			continue
		}
		if bestVer == nil || sv.GreaterThan(bestVer) {
			best, bestVer = v, sv
		}
	}
	if bestVer == nil {
		return Version{}, fmt.Errorf("%s %s: %w", name, req, ErrNoMatchingVersion)
	}
	logging.Crates("resolved %s %s to %s", name, req, best.Vers)
	return best, nil
}

// ResolveAll resolves every target with at most limit lookups in flight.
// Results keep the order of targets. The first failure cancels the rest.
func (ix *Index) ResolveAll(ctx context.Context, targets []Target, limit int) ([]Resolved, error) {
	out := make([]Resolved, len(targets))

	eg, egCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for i, t := range targets {
		i, t := i, t
		eg.Go(func() error {
			v, err := ix.Resolve(egCtx, t.Name, t.Req)
			if err != nil {
				return err
			}
			out[i] = Resolved{Target: t, Version: v}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
