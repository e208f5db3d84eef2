package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// Fetcher materializes product source code in a working directory.
// Tags become exported snapshots with no VCS metadata; branches become
// full checkouts so further updates remain possible.
type Fetcher struct {
	httpClient *http.Client
	runner     Runner

	// Username is passed to svn for authenticated access
	Username string
	// Password is passed to svn when the user asked to be prompted
	Password string
}

// NewFetcher creates a fetcher using the given runner for VCS commands.
func NewFetcher(runner Runner) *Fetcher {
	return &Fetcher{
		// Downloads can be large; no client timeout, cancellation comes
		// from the context.
		httpClient: &http.Client{},
		runner:     runner,
	}
}

// Verify checks that the remote reference exists before any download.
func (f *Fetcher) Verify(ctx context.Context, p *Product) error {
	switch {
	case p.VCS == VCSGit && !p.IsBranch():
		return f.verifyHTTP(ctx, p.FetchURL)
	case p.VCS == VCSGit:
		return f.verifyGitRef(ctx, p)
	default:
		return f.verifySvn(ctx, p)
	}
}

// verifyHTTP issues a HEAD request against a release tarball URL.
func (f *Fetcher) verifyHTTP(ctx context.Context, url string) error {
	if _, dry := f.runner.(*DryRunner); dry {
		fmt.Printf("verify %s\n", url)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return errors.ErrTransferFailed.WithCause(err)
	}
	req.Header.Set("User-Agent", "aurinstall/1.0")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return errors.ErrTransferFailed.WithMessagef("Cannot reach %s", url).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.ErrRefNotFound.WithMessagef(
			"HTTP status %d querying %s", resp.StatusCode, url)
	}
	return nil
}

// verifyGitRef uses git ls-remote to confirm a branch exists.
func (f *Fetcher) verifyGitRef(ctx context.Context, p *Product) error {
	if p.Kind == KindTrunk {
		// The default branch always exists if the repository does.
		_, err := f.runner.Run(ctx, "", "git", "ls-remote", p.FetchURL, "HEAD")
		if err != nil {
			return errors.ErrRefNotFound.WithMessagef("Cannot list %s", p.FetchURL).WithCause(err)
		}
		return nil
	}
	out, err := f.runner.Run(ctx, "", "git", "ls-remote", "--heads", p.FetchURL, p.BaseVersion)
	if err != nil {
		return errors.ErrRefNotFound.WithMessagef("Cannot list %s", p.FetchURL).WithCause(err)
	}
	if strings.TrimSpace(out) == "" {
		if _, dry := f.runner.(*DryRunner); dry {
			return nil
		}
		return errors.ErrRefNotFound.WithMessagef(
			"Branch %s does not appear to exist in %s", p.BaseVersion, p.RepoURL)
	}
	return nil
}

// verifySvn runs svn ls against the tag or branch URL.
func (f *Fetcher) verifySvn(ctx context.Context, p *Product) error {
	args := f.svnArgs("ls", p.FetchURL)
	if _, err := f.runner.Run(ctx, "", "svn", args...); err != nil {
		return errors.ErrRefNotFound.WithMessagef(
			"svn error while testing product URL %s", p.FetchURL).WithCause(err)
	}
	return nil
}

// Fetch materializes the source under parentDir and returns the working
// directory. An existing working directory from an earlier run is removed.
func (f *Fetcher) Fetch(ctx context.Context, p *Product, parentDir string) (string, error) {
	workingDir := filepath.Join(parentDir, fmt.Sprintf("%s-%s", p.Name, p.BaseVersion))
	if paths.IsDir(workingDir) {
		log.Info("Removing old working directory", "dir", workingDir)
		if err := os.RemoveAll(workingDir); err != nil {
			return "", errors.ErrTransferFailed.WithCause(err)
		}
	}

	switch {
	case p.VCS == VCSGit && p.IsBranch():
		return workingDir, f.fetchGitBranch(ctx, p, workingDir)
	case p.VCS == VCSGit:
		return f.fetchTarball(ctx, p, parentDir, workingDir)
	default:
		return workingDir, f.fetchSvn(ctx, p, workingDir)
	}
}

// fetchGitBranch clones the repository and checks out the requested branch.
func (f *Fetcher) fetchGitBranch(ctx context.Context, p *Product, workingDir string) error {
	if _, err := f.runner.Run(ctx, "", "git", "clone", "-q", p.FetchURL, workingDir); err != nil {
		return errors.ErrTransferFailed.WithMessagef("git error while downloading %s", p.FetchURL).WithCause(err)
	}
	if p.Kind == KindBranch {
		_, err := f.runner.Run(ctx, workingDir, "git", "checkout", "-q", "-b",
			p.BaseVersion, "origin/"+p.BaseVersion)
		if err != nil {
			return errors.ErrTransferFailed.WithMessagef(
				"git error while changing to branch %s", p.BaseVersion).WithCause(err)
		}
	}
	return nil
}

// fetchTarball downloads the release snapshot, verifies nothing beyond a
// checksum for the log, extracts it, and renames the single top-level
// directory to the working directory.
func (f *Fetcher) fetchTarball(ctx context.Context, p *Product, parentDir, workingDir string) (string, error) {
	if _, dry := f.runner.(*DryRunner); dry {
		fmt.Printf("download %s -> %s\n", p.FetchURL, workingDir)
		if err := os.MkdirAll(workingDir, 0755); err != nil {
			return "", errors.ErrTransferFailed.WithCause(err)
		}
		return workingDir, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.FetchURL, nil)
	if err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	req.Header.Set("User-Agent", "aurinstall/1.0")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", errors.ErrTransferFailed.WithMessagef("Error while downloading %s", p.FetchURL).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.ErrRefNotFound.WithMessagef(
			"Error while downloading %s, HTTP status was %d", p.FetchURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(parentDir, "aurinstall-*.tar.gz")
	if err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hash), resp.Body); err != nil {
		tmp.Close()
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	tmp.Close()
	log.Debug("Downloaded snapshot", "url", p.FetchURL,
		"sha256", hex.EncodeToString(hash.Sum(nil)))

	extractDir, err := os.MkdirTemp(parentDir, "aurinstall-extract-")
	if err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	defer os.RemoveAll(extractDir)

	if err := extractArchive(ctx, tmpPath, extractDir); err != nil {
		return "", errors.ErrBadArchive.WithCause(err)
	}

	top, err := findExtractedDir(extractDir)
	if err != nil {
		return "", errors.ErrBadArchive.WithCause(err)
	}
	if err := os.Rename(top, workingDir); err != nil {
		return "", errors.ErrTransferFailed.WithCause(err)
	}
	return workingDir, nil
}

// fetchSvn exports a tag or checks out a branch from Subversion.
func (f *Fetcher) fetchSvn(ctx context.Context, p *Product, workingDir string) error {
	action := "export"
	if p.IsBranch() {
		action = "checkout"
	}
	args := f.svnArgs(action, p.FetchURL, workingDir)
	if _, err := f.runner.Run(ctx, "", "svn", args...); err != nil {
		return errors.ErrTransferFailed.WithMessagef(
			"svn error while downloading %s", p.FetchURL).WithCause(err)
	}
	return nil
}

// svnArgs builds a non-interactive svn command line with credentials.
func (f *Fetcher) svnArgs(action string, rest ...string) []string {
	args := []string{"--non-interactive"}
	if f.Username != "" {
		args = append(args, "--username", f.Username)
	}
	if f.Password != "" {
		args = append(args, "--password", f.Password)
	}
	args = append(args, action)
	return append(args, rest...)
}
