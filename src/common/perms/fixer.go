// Package perms enforces the Auriga collaboration access-control policy on
// install trees: group ownership, group read bits, setgid directories, and
// optional ACL entries for the read-only service account. It is used by the
// aurperm CLI and by the installer's FIX_PERMISSIONS stage.
package perms

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/logs"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the perms package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// DefaultGroup is the collaboration group owning all installed trees
const DefaultGroup = "auriga"

// DefaultACLAccount is the secondary service account granted read access
const DefaultACLAccount = "aursvc"

// Options configures a permission-fixing run
type Options struct {
	// Group is the collaboration group name (default "auriga")
	Group string

	// ACLAccount is the service account granted read/execute via ACL
	ACLAccount string

	// EnableACL adds ACL entries for ACLAccount
	EnableACL bool

	// Official also strips group and world write bits
	Official bool

	// WorldReadable keeps world read (and directory execute) bits instead
	// of stripping all world permissions
	WorldReadable bool

	// DryRun prints every planned mutating command without executing it
	DryRun bool

	// Verbose logs every change at debug level
	Verbose bool
}

// Report summarizes a permission-fixing run
type Report struct {
	// Examined is the number of filesystem entries visited
	Examined int
	// Changed is the number of entries whose mode or group was modified
	Changed int
	// Skipped is the number of entries left alone because the invoking
	// user does not own them
	Skipped int
	// Warnings is the number of non-fatal per-entry failures
	Warnings int
}

// Fixer applies the access-control policy to a directory tree
type Fixer struct {
	opts Options

	// Resolved at construction; overridden directly by tests.
	uid     int
	gid     int
	homeDir string

	lookPath func(string) (string, error)
	runACL   func(dir string) error
}

// New creates a Fixer, resolving the collaboration group to a gid.
func New(opts Options) (*Fixer, error) {
	if opts.Group == "" {
		opts.Group = DefaultGroup
	}
	if opts.ACLAccount == "" {
		opts.ACLAccount = DefaultACLAccount
	}

	grp, err := user.LookupGroup(opts.Group)
	if err != nil {
		return nil, errors.ErrUnknownGroup.WithMessagef("Unknown group: %s", opts.Group).WithCause(err)
	}
	gid, err := strconv.Atoi(grp.Gid)
	if err != nil {
		return nil, errors.ErrUnknownGroup.WithCause(err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	f := &Fixer{
		opts:     opts,
		uid:      os.Getuid(),
		gid:      gid,
		homeDir:  home,
		lookPath: exec.LookPath,
	}
	f.runACL = f.setfacl
	return f, nil
}

// Fix applies the policy recursively to dir.
// Entries owned by other users are never modified.
func (f *Fixer) Fix(dir string) (*Report, error) {
	target, err := paths.Resolve(dir)
	if err != nil {
		return nil, errors.ErrMissingTool.WithMessagef("Cannot resolve %s", dir).WithCause(err)
	}

	if err := f.checkHomeDir(target); err != nil {
		return nil, err
	}

	report := &Report{}
	walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("Cannot visit entry", "path", path, "error", err)
			report.Warnings++
			return nil
		}
		// Symlinks are left alone: chmod would follow to the target,
		// which may be outside the tree.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			report.Warnings++
			return nil
		}

		report.Examined++

		st, ok := info.Sys().(*syscall.Stat_t)
		if !ok || int(st.Uid) != f.uid {
			if f.opts.Verbose {
				log.Debug("Skipping entry owned by another user", "path", path)
			}
			report.Skipped++
			return nil
		}

		if f.fixEntry(path, info, int(st.Gid), report) {
			report.Changed++
		}
		return nil
	})
	if walkErr != nil {
		return report, walkErr
	}

	if f.opts.EnableACL {
		f.applyACL(target, report)
	}

	return report, nil
}

// checkHomeDir refuses to operate on the invoking user's home directory.
func (f *Fixer) checkHomeDir(target string) error {
	if f.homeDir == "" {
		return nil
	}
	home, err := paths.Resolve(f.homeDir)
	if err != nil {
		home = f.homeDir
	}
	if target == home {
		return errors.ErrHomeDirectory.WithMessagef(
			"Refusing to operate on home directory %s", home)
	}
	return nil
}

// fixEntry normalizes group ownership and permission bits on one entry.
// Returns true when anything was modified (or would be, in dry-run mode).
func (f *Fixer) fixEntry(path string, info fs.FileInfo, currentGID int, report *Report) bool {
	changed := false

	if currentGID != f.gid {
		if f.opts.DryRun {
			fmt.Printf("chgrp %s %s\n", f.opts.Group, path)
		} else if err := os.Chown(path, -1, f.gid); err != nil {
			log.Warn("Cannot change group", "path", path, "error", err)
			report.Warnings++
			return false
		}
		changed = true
	}

	newMode := f.targetMode(info)
	if newMode != info.Mode().Perm()|(info.Mode()&os.ModeSetgid) {
		if f.opts.DryRun {
			fmt.Printf("chmod %o %s\n", newMode, path)
		} else if err := os.Chmod(path, newMode); err != nil {
			log.Warn("Cannot change mode", "path", path, "error", err)
			report.Warnings++
			return changed
		}
		changed = true
	}

	if changed && f.opts.Verbose {
		log.Debug("Fixed entry", "path", path, "mode", fmt.Sprintf("%o", newMode))
	}
	return changed
}

// targetMode computes the policy mode for an entry:
// files gain group read (and group execute when any execute bit is set),
// directories gain group read+execute and setgid, world bits are stripped
// unless world readability was requested, and official mode removes group
// and world write.
func (f *Fixer) targetMode(info fs.FileInfo) os.FileMode {
	mode := info.Mode().Perm()

	if info.IsDir() {
		mode |= 0o050
	} else {
		mode |= 0o040
		if mode&0o111 != 0 {
			mode |= 0o010
		}
	}

	if f.opts.WorldReadable {
		if info.IsDir() {
			mode |= 0o005
		} else {
			mode |= 0o004
		}
		mode &^= 0o002
	} else {
		mode &^= 0o007
	}

	if f.opts.Official {
		mode &^= 0o022
	}

	if info.IsDir() {
		mode |= os.ModeSetgid
	}
	return mode
}

// applyACL grants the service account recursive read/execute access.
// A missing setfacl degrades to a warning; the run still succeeds.
func (f *Fixer) applyACL(dir string, report *Report) {
	if _, err := f.lookPath("setfacl"); err != nil {
		log.Warn("setfacl not found, skipping ACL step", "account", f.opts.ACLAccount)
		report.Warnings++
		return
	}
	if f.opts.DryRun {
		fmt.Printf("setfacl -R -m u:%s:rX -m d:u:%s:rX %s\n",
			f.opts.ACLAccount, f.opts.ACLAccount, dir)
		return
	}
	if err := f.runACL(dir); err != nil {
		log.Warn("setfacl failed", "dir", dir, "error", err)
		report.Warnings++
	}
}

func (f *Fixer) setfacl(dir string) error {
	spec := fmt.Sprintf("u:%s:rX", f.opts.ACLAccount)
	dspec := fmt.Sprintf("d:u:%s:rX", f.opts.ACLAccount)
	cmd := exec.Command("setfacl", "-R", "-m", spec, "-m", dspec, dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}
