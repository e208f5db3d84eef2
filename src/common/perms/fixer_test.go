package perms

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aurigasurvey/toolkit/src/common/errors"
)

// newTestFixer builds a Fixer with the group resolution and external tools
// stubbed out, so tests run for any user on any machine.
func newTestFixer(opts Options) *Fixer {
	f := &Fixer{
		opts:     opts,
		uid:      os.Getuid(),
		gid:      os.Getgid(),
		lookPath: func(string) (string, error) { return "", fmt.Errorf("not installed") },
	}
	f.runACL = func(string) error { return nil }
	return f
}

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0700); err != nil {
		t.Fatal(err)
	}
	specs := map[string]os.FileMode{
		"script.sh":    0700,
		"data.txt":     0600,
		"sub/open.txt": 0666,
	}
	for name, mode := range specs {
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte("x\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Chmod(path, mode); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestTargetMode(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		mode  os.FileMode
		isDir bool
		opts  Options
		want  os.FileMode
	}{
		{"plain file gains group read", 0600, false, Options{}, 0640},
		{"executable gains group exec", 0700, false, Options{}, 0750},
		{"other-exec file gains group exec", 0601, false, Options{}, 0650},
		{"world stripped", 0666, false, Options{}, 0660},
		{"world kept when requested", 0666, false, Options{WorldReadable: true}, 0664},
		{"official strips write", 0660, false, Options{Official: true}, 0640},
		{"dir gains group rx", 0700, true, Options{}, 0750},
		{"world-readable dir", 0755, true, Options{WorldReadable: true}, 0755},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := file
			if tt.isDir {
				target = filepath.Join(dir, "d-"+tt.name)
				if err := os.Mkdir(target, tt.mode); err != nil {
					t.Fatal(err)
				}
			}
			if err := os.Chmod(target, tt.mode); err != nil {
				t.Fatal(err)
			}
			info, err := os.Stat(target)
			if err != nil {
				t.Fatal(err)
			}

			f := newTestFixer(tt.opts)
			got := f.targetMode(info)
			if got.Perm() != tt.want {
				t.Errorf("targetMode(%o) = %o, want %o", tt.mode, got.Perm(), tt.want)
			}
			if tt.isDir && got&os.ModeSetgid == 0 {
				t.Error("directories must gain setgid")
			}
			if !tt.isDir && got&os.ModeSetgid != 0 {
				t.Error("files must not gain setgid")
			}
		})
	}
}

func TestFixAppliesPolicy(t *testing.T) {
	root := makeTree(t)
	f := newTestFixer(Options{})

	report, err := f.Fix(root)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if report.Examined == 0 || report.Changed == 0 {
		t.Errorf("report = %+v", report)
	}

	checks := map[string]os.FileMode{
		"script.sh":    0750,
		"data.txt":     0640,
		"sub/open.txt": 0660,
	}
	for name, want := range checks {
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != want {
			t.Errorf("%s mode = %o, want %o", name, info.Mode().Perm(), want)
		}
	}

	sub, err := os.Stat(filepath.Join(root, "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if sub.Mode().Perm() != 0750 {
		t.Errorf("sub mode = %o, want 0750", sub.Mode().Perm())
	}
	if sub.Mode()&os.ModeSetgid == 0 {
		t.Error("sub did not gain setgid")
	}
}

func TestFixSkipsOtherOwners(t *testing.T) {
	root := makeTree(t)
	f := newTestFixer(Options{})
	f.uid = os.Getuid() + 1

	report, err := f.Fix(root)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if report.Changed != 0 {
		t.Errorf("changed %d entries not owned by the invoking user", report.Changed)
	}
	if report.Skipped != report.Examined {
		t.Errorf("report = %+v, expected everything skipped", report)
	}

	info, err := os.Stat(filepath.Join(root, "data.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("data.txt mode = %o, should be untouched", info.Mode().Perm())
	}
}

func TestFixRefusesHomeDirectory(t *testing.T) {
	root := t.TempDir()
	f := newTestFixer(Options{})
	f.homeDir = root

	if _, err := f.Fix(root); !errors.Is(err, errors.ErrHomeDirectory) {
		t.Errorf("expected ErrHomeDirectory, got %v", err)
	}

	// A directory under the home directory is fine.
	sub := filepath.Join(root, "work")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Fix(sub); err != nil {
		t.Errorf("subdirectory of home refused: %v", err)
	}
}

func TestFixDryRun(t *testing.T) {
	root := makeTree(t)
	f := newTestFixer(Options{DryRun: true})

	report, err := f.Fix(root)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if report.Changed == 0 {
		t.Error("dry run should still report planned changes")
	}

	info, err := os.Stat(filepath.Join(root, "data.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("dry run modified data.txt to %o", info.Mode().Perm())
	}
}

func TestFixACLMissingTool(t *testing.T) {
	root := makeTree(t)
	f := newTestFixer(Options{EnableACL: true})

	report, err := f.Fix(root)
	if err != nil {
		t.Fatalf("missing setfacl must not fail the run: %v", err)
	}
	if report.Warnings == 0 {
		t.Error("missing setfacl should be reported as a warning")
	}
}

func TestFixACLInvoked(t *testing.T) {
	root := makeTree(t)
	f := newTestFixer(Options{EnableACL: true, ACLAccount: "aursvc"})
	f.lookPath = func(string) (string, error) { return "/usr/bin/setfacl", nil }

	var aclDir string
	f.runACL = func(dir string) error {
		aclDir = dir
		return nil
	}

	if _, err := f.Fix(root); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if aclDir == "" {
		t.Error("ACL step was not invoked")
	}
}

func TestFixIdempotent(t *testing.T) {
	root := makeTree(t)
	f := newTestFixer(Options{})

	if _, err := f.Fix(root); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := f.Fix(root)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Changed != 0 {
		t.Errorf("second run changed %d entries, policy is not idempotent", report.Changed)
	}
}

func TestNewUnknownGroup(t *testing.T) {
	if _, err := New(Options{Group: "no-such-group-aur"}); !errors.Is(err, errors.ErrUnknownGroup) {
		t.Errorf("expected ErrUnknownGroup, got %v", err)
	}
}
