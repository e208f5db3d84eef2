package modulefile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// moduleLoadRE matches "module load <name>" wherever it appears on a line,
// including inside Tcl conditionals.
var moduleLoadRE = regexp.MustCompile(`module load\s+(\S+)`)

// hpcpSuffix marks dependency variants built against the HPC programming
// environment, only meaningful on NERSC systems.
const hpcpSuffix = "-hpcp"

// Dependencies extracts the modules a processed module file loads, filtered
// for the current site. On NERSC hosts the -hpcp variant of a dependency
// wins and its plain twin is dropped; everywhere else -hpcp entries are
// discarded.
func Dependencies(moduleText, nerscHost string) []string {
	var raw []string
	for _, line := range strings.Split(moduleText, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, m := range moduleLoadRE.FindAllStringSubmatch(trimmed, -1) {
			raw = append(raw, m[1])
		}
	}
	return Filter(raw, nerscHost)
}

// Filter applies the site policy to a raw dependency list and removes
// duplicates, preserving order.
func Filter(raw []string, nerscHost string) []string {
	if len(raw) == 0 {
		return nil
	}

	atNersc := nerscHost != ""

	hpcp := make(map[string]bool)
	for _, dep := range raw {
		if strings.HasSuffix(baseName(dep), hpcpSuffix) {
			hpcp[strings.TrimSuffix(baseName(dep), hpcpSuffix)] = true
		}
	}

	var deps []string
	seen := make(map[string]bool)
	for _, dep := range raw {
		name := baseName(dep)
		isHpcp := strings.HasSuffix(name, hpcpSuffix)
		switch {
		case isHpcp && !atNersc:
			continue
		case !isHpcp && atNersc && hpcp[name]:
			// The -hpcp twin supersedes this one at NERSC.
			continue
		}
		if !seen[dep] {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}
	return deps
}

// baseName strips any /version qualifier from a module name.
func baseName(dep string) string {
	if i := strings.IndexByte(dep, '/'); i >= 0 {
		return dep[:i]
	}
	return dep
}

// Fallback reads the convention-based dependency list etc/<name>-deps.txt
// for products whose module template declares no dependencies. One module
// name per line, # starts a comment.
func Fallback(workingDir, name string) []string {
	data, err := os.ReadFile(filepath.Join(workingDir, "etc", name+"-deps.txt"))
	if err != nil {
		return nil
	}
	var deps []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		deps = append(deps, trimmed)
	}
	return deps
}

// conditionalLoad emits the idempotent form of a dependency load: an
// already-loaded module is switched rather than stacked.
func conditionalLoad(dep string) string {
	return fmt.Sprintf("if { [is-loaded %s] } { module switch %s } else { module load %s }",
		dep, dep, dep)
}

// bareLoadRE matches lines consisting only of a plain module load.
var bareLoadRE = regexp.MustCompile(`^module load\s+(\S+)\s*$`)

// ApplyDependencies rewrites bare "module load" lines in moduleText into
// conditional switch-or-load statements, drops loads for dependencies the
// site filtering removed, and appends conditionals for deps (for example
// from the fallback list) the text never mentioned.
func ApplyDependencies(moduleText string, deps []string) string {
	keep := make(map[string]bool, len(deps))
	for _, dep := range deps {
		keep[dep] = true
	}

	// Conditionals already present (from a product template or an earlier
	// synthesis run) count as emitted.
	emitted := make(map[string]bool, len(deps))
	for _, dep := range deps {
		if strings.Contains(moduleText, "[is-loaded "+dep+"]") {
			emitted[dep] = true
		}
	}

	var out []string
	for _, line := range strings.Split(moduleText, "\n") {
		m := bareLoadRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			out = append(out, line)
			continue
		}
		dep := m[1]
		if !keep[dep] {
			continue
		}
		if !emitted[dep] {
			emitted[dep] = true
			out = append(out, conditionalLoad(dep))
		}
	}

	var extra []string
	for _, dep := range deps {
		if !emitted[dep] {
			emitted[dep] = true
			extra = append(extra, conditionalLoad(dep))
		}
	}
	if len(extra) > 0 {
		text := strings.TrimRight(strings.Join(out, "\n"), "\n")
		return text + "\n" + strings.Join(extra, "\n") + "\n"
	}
	return strings.Join(out, "\n")
}
