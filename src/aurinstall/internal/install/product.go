// Package install implements the aurinstall pipeline: resolve a product,
// fetch its source, detect the build type, build into the install tree,
// synthesize a module file, fix permissions, and clean up.
package install

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/logs"
	"gopkg.in/yaml.v3"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the install package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// RefKind classifies the requested version reference
type RefKind string

const (
	// KindTag is an immutable tagged release
	KindTag RefKind = "tag"
	// KindBranch is a mutable development branch
	KindBranch RefKind = "branch"
	// KindTrunk is the repository default branch
	KindTrunk RefKind = "trunk"
)

// VCS identifies the version-control system hosting a product
type VCS string

const (
	// VCSGit covers GitHub-hosted products
	VCSGit VCS = "git"
	// VCSSvn covers products on the institutional Subversion server
	VCSSvn VCS = "svn"
)

// Product describes a resolved product request. Immutable once resolved.
type Product struct {
	// Name is the bare product name, e.g. "aurutil"
	Name string
	// Version is the requested version string as given, e.g.
	// "1.2.3" or "branches/wip"
	Version string
	// BaseVersion is the version without any branches/ qualifier
	BaseVersion string
	// RepoURL is the base repository URL from the known-products table
	RepoURL string
	// FetchURL is the concrete URL used to download the code; for tags on
	// GitHub this points at the release tarball
	FetchURL string
	// Kind is tag, branch or trunk
	Kind RefKind
	// VCS is git or svn
	VCS VCS
}

// IsBranch reports whether this is a mutable (branch or trunk) install
func (p *Product) IsBranch() bool {
	return p.Kind == KindBranch || p.Kind == KindTrunk
}

// knownProducts maps product names to their repository URLs.
// User-supplied overrides extend or replace entries at resolution time.
var knownProducts = map[string]string{
	"aurutil":      "https://github.com/aurigasurvey/aurutil",
	"aurspec":      "https://github.com/aurigasurvey/aurspec",
	"aurmodel":     "https://github.com/aurigasurvey/aurmodel",
	"aursim":       "https://github.com/aurigasurvey/aursim",
	"aurtarget":    "https://github.com/aurigasurvey/aurtarget",
	"aurtemplate":  "https://github.com/aurigasurvey/aurtemplate",
	"aurmodules":   "https://github.com/aurigasurvey/aurmodules",
	"skycalib":     "https://github.com/aurigasurvey/skycalib",
	"fiberlayout":  "https://auriga.obs.edu/svn/code/focalplane/fiberlayout",
	"platedesign":  "https://auriga.obs.edu/svn/code/focalplane/platedesign",
	"templates":    "https://auriga.obs.edu/svn/code/spectro/templates",
	"surveyadmin":  "https://auriga.obs.edu/svn/code/tools/surveyadmin",
}

// trunkAliases are version strings treated as the repository default branch
var trunkAliases = map[string]bool{
	"trunk":  true,
	"main":   true,
	"master": true,
}

// Resolver turns a product/version request into a Product using the
// known-products table plus user-supplied overrides. Resolution is a pure
// function of its inputs; repeated calls give identical results.
type Resolver struct {
	overrides  map[string]string
	httpClient *http.Client
}

// NewResolver creates a resolver with the given name→URL overrides.
func NewResolver(overrides map[string]string) *Resolver {
	return &Resolver{
		overrides:  overrides,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadOverrides reads a YAML file mapping product names to repository URLs:
//
//	known_products:
//	  aurutil: https://github.com/aurigasurvey/aurutil
func LoadOverrides(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrBadConfig.WithMessagef("Cannot read %s", path).WithCause(err)
	}
	var doc struct {
		KnownProducts map[string]string `yaml:"known_products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ErrBadConfig.WithMessagef("Cannot parse %s", path).WithCause(err)
	}
	return doc.KnownProducts, nil
}

// Resolve derives the repository URL, reference kind and fetch URL for a
// product/version request.
func (r *Resolver) Resolve(ctx context.Context, name, version string) (*Product, error) {
	if name == "" || version == "" {
		return nil, errors.ErrMissingArguments
	}

	// Accept qualified names like spectro/templates; only the base matters.
	base := path.Base(name)

	repoURL, ok := r.overrides[base]
	if !ok {
		repoURL, ok = knownProducts[base]
	}
	if !ok {
		repoURL = "https://github.com/aurigasurvey/" + base
		log.Warn("Guessing repository location", "product", base, "url", repoURL)
		log.Warn("Supply --product or a config override if that is incorrect")
	}

	vcs := VCSGit
	if !strings.Contains(repoURL, "github.com") {
		vcs = VCSSvn
	}

	p := &Product{
		Name:        base,
		Version:     version,
		BaseVersion: path.Base(version),
		RepoURL:     repoURL,
		VCS:         vcs,
	}

	switch {
	case trunkAliases[version]:
		p.Kind = KindTrunk
	case strings.HasPrefix(version, "branches/"):
		p.Kind = KindBranch
	default:
		p.Kind = KindTag
	}

	if p.Kind == KindTag && version == "latest" {
		if vcs != VCSGit {
			return nil, errors.ErrUnknownProduct.WithMessagef(
				"Version 'latest' is only supported for GitHub products, not %s", repoURL)
		}
		tag, err := r.latestTag(ctx, repoURL)
		if err != nil {
			return nil, err
		}
		log.Info("Resolved latest tag", "product", base, "version", tag)
		p.Version = tag
		p.BaseVersion = tag
	}

	p.FetchURL = fetchURL(p)
	log.Debug("Resolved product", "product", p.Name, "version", p.Version,
		"kind", string(p.Kind), "url", p.FetchURL)
	return p, nil
}

// fetchURL computes the concrete download URL for a resolved product.
func fetchURL(p *Product) string {
	if p.VCS == VCSGit {
		if p.IsBranch() {
			return p.RepoURL + ".git"
		}
		return fmt.Sprintf("%s/archive/refs/tags/%s.tar.gz", p.RepoURL, p.BaseVersion)
	}
	if p.IsBranch() {
		if p.Kind == KindTrunk {
			return p.RepoURL + "/trunk"
		}
		return p.RepoURL + "/" + p.Version
	}
	return p.RepoURL + "/tags/" + p.BaseVersion
}

// latestTag queries the GitHub tags API for the most recent tag name.
func (r *Resolver) latestTag(ctx context.Context, repoURL string) (string, error) {
	owner, repo, err := parseGitHubURL(repoURL)
	if err != nil {
		return "", errors.ErrUnknownProduct.WithCause(err)
	}

	apiURL := fmt.Sprintf("https://api.github.com/repos/%s/%s/tags?per_page=100", owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "aurinstall/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", errors.ErrTransferFailed.WithMessagef("Cannot query GitHub tags for %s", repoURL).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.ErrRefNotFound.WithMessagef(
			"GitHub API returned status %d for %s", resp.StatusCode, apiURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}

	var tags []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	if len(tags) == 0 {
		return "", errors.ErrRefNotFound.WithMessagef("No tags found for %s", repoURL)
	}

	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	sortVersions(names)
	return names[0], nil
}

// parseGitHubURL extracts owner and repo from a GitHub URL.
func parseGitHubURL(url string) (owner, repo string, err error) {
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")

	parts := strings.Split(url, "github.com/")
	if len(parts) == 2 {
		pathParts := strings.Split(parts[1], "/")
		if len(pathParts) >= 2 {
			return pathParts[0], pathParts[1], nil
		}
	}
	return "", "", fmt.Errorf("unable to parse GitHub URL: %s", url)
}

// sortVersions orders tag names newest-first using a numeric-aware compare.
func sortVersions(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return compareVersions(names[i], names[j]) > 0
	})
}

// compareVersions compares dotted version strings numerically where
// possible, falling back to string comparison per component.
func compareVersions(a, b string) int {
	av := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bv := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(av) && i < len(bv); i++ {
		var an, bn int
		_, aerr := fmt.Sscanf(av[i], "%d", &an)
		_, berr := fmt.Sscanf(bv[i], "%d", &bn)
		if aerr == nil && berr == nil {
			if an != bn {
				if an > bn {
					return 1
				}
				return -1
			}
			continue
		}
		if c := strings.Compare(av[i], bv[i]); c != 0 {
			return c
		}
	}
	if len(av) != len(bv) {
		if len(av) > len(bv) {
			return 1
		}
		return -1
	}
	return 0
}
