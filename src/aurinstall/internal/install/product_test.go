package install

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aurigasurvey/toolkit/src/common/errors"
)

func TestResolveKnownProducts(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		version  string
		wantURL  string
		wantKind RefKind
		wantVCS  VCS
	}{
		{"github tag", "aurutil", "1.2.3",
			"https://github.com/aurigasurvey/aurutil/archive/refs/tags/1.2.3.tar.gz",
			KindTag, VCSGit},
		{"github branch", "aurutil", "branches/wip",
			"https://github.com/aurigasurvey/aurutil.git",
			KindBranch, VCSGit},
		{"github trunk", "aurspec", "main",
			"https://github.com/aurigasurvey/aurspec.git",
			KindTrunk, VCSGit},
		{"qualified name", "spectro/aurspec", "main",
			"https://github.com/aurigasurvey/aurspec.git",
			KindTrunk, VCSGit},
		{"svn tag", "platedesign", "2.0.1",
			"https://auriga.obs.edu/svn/code/focalplane/platedesign/tags/2.0.1",
			KindTag, VCSSvn},
		{"svn trunk", "platedesign", "trunk",
			"https://auriga.obs.edu/svn/code/focalplane/platedesign/trunk",
			KindTrunk, VCSSvn},
		{"svn branch", "templates", "branches/testing",
			"https://auriga.obs.edu/svn/code/spectro/templates/branches/testing",
			KindBranch, VCSSvn},
		{"unknown product guessed", "newthing", "0.1.0",
			"https://github.com/aurigasurvey/newthing/archive/refs/tags/0.1.0.tar.gz",
			KindTag, VCSGit},
	}

	resolver := NewResolver(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := resolver.Resolve(context.Background(), tt.product, tt.version)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.FetchURL != tt.wantURL {
				t.Errorf("FetchURL = %q, want %q", p.FetchURL, tt.wantURL)
			}
			if p.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", p.Kind, tt.wantKind)
			}
			if p.VCS != tt.wantVCS {
				t.Errorf("VCS = %q, want %q", p.VCS, tt.wantVCS)
			}
		})
	}
}

func TestResolveDeterministic(t *testing.T) {
	resolver := NewResolver(nil)
	first, err := resolver.Resolve(context.Background(), "aurutil", "1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), "aurutil", "1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated resolution differs: %+v vs %+v", first, second)
	}
}

func TestResolveMissingArguments(t *testing.T) {
	resolver := NewResolver(nil)
	if _, err := resolver.Resolve(context.Background(), "", "1.0.0"); !errors.Is(err, errors.ErrMissingArguments) {
		t.Errorf("expected ErrMissingArguments, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "aurutil", ""); !errors.Is(err, errors.ErrMissingArguments) {
		t.Errorf("expected ErrMissingArguments, got %v", err)
	}
}

func TestResolveOverrides(t *testing.T) {
	resolver := NewResolver(map[string]string{
		"aurutil": "https://github.com/elsewhere/aurutil",
	})
	p, err := resolver.Resolve(context.Background(), "aurutil", "1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.RepoURL != "https://github.com/elsewhere/aurutil" {
		t.Errorf("override ignored, RepoURL = %q", p.RepoURL)
	}
}

func TestResolveLatestRequiresGit(t *testing.T) {
	resolver := NewResolver(nil)
	_, err := resolver.Resolve(context.Background(), "platedesign", "latest")
	if !errors.Is(err, errors.ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct for svn latest, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "products.yaml")
	content := `known_products:
  mything: https://github.com/elsewhere/mything
  platedesign: https://auriga.obs.edu/svn/code/other/platedesign
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	overrides, err := LoadOverrides(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(overrides))
	}
	if overrides["mything"] != "https://github.com/elsewhere/mything" {
		t.Errorf("mything = %q", overrides["mything"])
	}
}

func TestLoadOverridesBadFile(t *testing.T) {
	if _, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, errors.ErrBadConfig) {
		t.Errorf("expected ErrBadConfig, got %v", err)
	}
}

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"https://github.com/aurigasurvey/aurutil", "aurigasurvey", "aurutil", false},
		{"https://github.com/aurigasurvey/aurutil.git", "aurigasurvey", "aurutil", false},
		{"https://github.com/aurigasurvey/aurutil/", "aurigasurvey", "aurutil", false},
		{"https://auriga.obs.edu/svn/code/tools/surveyadmin", "", "", true},
	}
	for _, tt := range tests {
		owner, repo, err := parseGitHubURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseGitHubURL(%q): expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseGitHubURL(%q): %v", tt.url, err)
			continue
		}
		if owner != tt.wantOwner || repo != tt.wantRepo {
			t.Errorf("parseGitHubURL(%q) = %q/%q, want %q/%q",
				tt.url, owner, repo, tt.wantOwner, tt.wantRepo)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.10.0", "1.9.0", 1},
		{"1.9.0", "1.10.0", -1},
		{"v2.0.0", "1.9.9", 1},
		{"1.2.3.1", "1.2.3", 1},
		{"0.9", "1.0", -1},
	}
	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortVersionsNewestFirst(t *testing.T) {
	names := []string{"1.2.0", "1.10.0", "0.9.1", "1.9.9"}
	sortVersions(names)
	want := []string{"1.10.0", "1.9.9", "1.2.0", "0.9.1"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("sortVersions = %v, want %v", names, want)
	}
}
