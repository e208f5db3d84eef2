package install

import (
	"path/filepath"

	"github.com/aurigasurvey/toolkit/src/common/paths"
)

// BuildType classifies how a fetched source tree is built and installed.
// Detection yields exactly one value; the priority order below is a design
// decision, not a limitation.
type BuildType string

const (
	// BuildPy installs through the Python packaging tool
	BuildPy BuildType = "py"
	// BuildMake runs make install from the working directory
	BuildMake BuildType = "make"
	// BuildSrc compiles with make -C src all inside the install directory
	BuildSrc BuildType = "src"
	// BuildPlain copies the tree verbatim
	BuildPlain BuildType = "plain"
)

// pythonDescriptors are the marker files identifying a Python build
var pythonDescriptors = []string{"setup.py", "pyproject.toml"}

// DetectBuildType inspects the top level of workingDir for marker files and
// classifies the tree. Priority: py > make > src > plain; once py matches,
// make and src detection are skipped entirely. forceCompile suppresses py
// detection so a tree with both a Python descriptor and a Makefile falls
// through to make.
func DetectBuildType(workingDir string, forceCompile bool) BuildType {
	if !forceCompile {
		for _, marker := range pythonDescriptors {
			if paths.IsFile(filepath.Join(workingDir, marker)) {
				log.Debug("Detected build type", "type", string(BuildPy), "marker", marker)
				return BuildPy
			}
		}
	}
	if paths.IsFile(filepath.Join(workingDir, "Makefile")) {
		log.Debug("Detected build type", "type", string(BuildMake))
		return BuildMake
	}
	if paths.IsDir(filepath.Join(workingDir, "src")) {
		log.Debug("Detected build type", "type", string(BuildSrc))
		return BuildSrc
	}
	log.Debug("Detected build type", "type", string(BuildPlain))
	return BuildPlain
}
