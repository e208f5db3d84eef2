package install

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes external commands (git, svn, make, python) on behalf of
// the pipeline stages. The dry-run implementation records commands instead
// of executing them.
type Runner interface {
	// Run executes name with args in dir (process working directory when
	// dir is empty) and returns the combined output.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)

	// LookPath reports where an external tool lives, or an error when it
	// is not installed.
	LookPath(name string) (string, error)
}

// ExecRunner runs commands via os/exec, inheriting the process environment.
type ExecRunner struct{}

// Run executes the command and returns its combined output. A nonzero exit
// status is returned as an error wrapping the output.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	log.Debug("exec", "command", name+" "+strings.Join(args, " "), "dir", dir)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, out)
	}
	return string(out), nil
}

// LookPath delegates to exec.LookPath
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// DryRunner records every command without executing anything.
type DryRunner struct {
	// Commands holds the planned command lines in execution order
	Commands []string
}

// Run prints and records the planned command
func (r *DryRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	line := name + " " + strings.Join(args, " ")
	if dir != "" {
		line = fmt.Sprintf("(cd %s && %s)", dir, line)
	}
	fmt.Println(line)
	r.Commands = append(r.Commands, line)
	return "", nil
}

// LookPath always succeeds in dry-run mode
func (r *DryRunner) LookPath(name string) (string, error) {
	return name, nil
}
