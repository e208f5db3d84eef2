// Package modulefile synthesizes environment-module files for installed
// products: keyword computation from the source tree, template processing,
// read-only installation and the default-version pointer.
package modulefile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aurigasurvey/toolkit/src/common/errors"
	"github.com/aurigasurvey/toolkit/src/common/logs"
	"github.com/aurigasurvey/toolkit/src/common/paths"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the modulefile package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// defaultTemplate is used when the product ships no etc/<name>.module file.
// Feature lines are toggled by the needs_* keywords, which expand to either
// nothing or a Tcl comment prefix.
const defaultTemplate = `#%Module1.0
proc ModulesHelp { } {
    global product version
    puts stderr "This module adds $product/$version to your environment."
}

set product {name}
set version {version}
conflict $product
module-whatis "Sets up $product/$version in your environment."

if { [is-loaded $product] } { module unload $product }

set PRODUCT_DIR {product_root}/$product/$version
setenv {name_uc} $PRODUCT_DIR
setenv {name_uc}_VERSION {version}
{needs_bin}prepend-path PATH $PRODUCT_DIR/bin
{needs_ld_lib}prepend-path LD_LIBRARY_PATH $PRODUCT_DIR/lib
{needs_idl}prepend-path IDL_PATH +$PRODUCT_DIR/pro
{needs_python}prepend-path PYTHONPATH $PRODUCT_DIR/lib/{pyversion}/site-packages
{needs_trunk_py}prepend-path PYTHONPATH $PRODUCT_DIR{trunk_py_dir}
`

// defaultVersionTemplate is the .version pointer marking a version as the
// default the module system loads when no version is given.
const defaultVersionTemplate = `#%Module1.0
set ModulesVersion "{version}"
`

// Configure computes the keyword set for a product by inspecting the
// working directory. dev marks branch installs, whose Python code is used
// straight from the py/ source directory instead of site-packages.
func Configure(name, version, productRoot, workingDir, pyVersion string, dev bool) map[string]string {
	keywords := map[string]string{
		"name":           name,
		"name_uc":        strings.ToUpper(name),
		"version":        version,
		"product_root":   productRoot,
		"pyversion":      pyVersion,
		"needs_bin":      "# ",
		"needs_ld_lib":   "# ",
		"needs_idl":      "# ",
		"needs_python":   "# ",
		"needs_trunk_py": "# ",
		"trunk_py_dir":   "/py",
	}
	if keywords["pyversion"] == "" {
		keywords["pyversion"] = "python3"
	}

	if paths.IsDir(filepath.Join(workingDir, "bin")) {
		keywords["needs_bin"] = ""
	}
	if paths.IsDir(filepath.Join(workingDir, "lib")) {
		keywords["needs_ld_lib"] = ""
	}
	if paths.IsDir(filepath.Join(workingDir, "pro")) {
		keywords["needs_idl"] = ""
	}
	if paths.IsDir(filepath.Join(workingDir, "py")) {
		if dev {
			keywords["needs_trunk_py"] = ""
		} else {
			keywords["needs_python"] = ""
		}
	} else if paths.IsFile(filepath.Join(workingDir, "setup.py")) ||
		paths.IsFile(filepath.Join(workingDir, "pyproject.toml")) {
		if dev {
			// Branch install of a flat-layout package: point PYTHONPATH at
			// the checkout root itself.
			keywords["needs_trunk_py"] = ""
			keywords["trunk_py_dir"] = ""
		} else {
			keywords["needs_python"] = ""
		}
	}
	return keywords
}

// FindTemplate returns the module template text for a product, preferring
// the one shipped in the product's own etc/ directory.
func FindTemplate(workingDir, name string) string {
	custom := filepath.Join(workingDir, "etc", name+".module")
	if paths.IsFile(custom) {
		data, err := os.ReadFile(custom)
		if err == nil {
			log.Debug("Using product module template", "file", custom)
			return string(data)
		}
		log.Warn("Cannot read module template, using builtin", "file", custom, "error", err)
	}
	return defaultTemplate
}

// Process substitutes {keyword} placeholders in a template. Plain string
// replacement keeps Tcl's braces out of harm's way; anything that is not a
// known keyword passes through untouched.
func Process(template string, keywords map[string]string) string {
	pairs := make([]string, 0, 2*len(keywords))
	for k, v := range keywords {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Install writes the processed module file to <moduleDir>/<name>/<version>
// and returns its path. Installed module files are read-only; reinstalling
// the same version briefly unlocks the old file so the write can land.
func Install(moduleDir, name, version, content string) (string, error) {
	dir := filepath.Join(moduleDir, name)
	if err := paths.EnsureDirPath(dir); err != nil {
		return "", errors.ErrModuleWriteFailed.WithMessagef(
			"Cannot create module directory %s", dir).WithCause(err)
	}

	target := filepath.Join(dir, version)
	if err := writeLocked(target, content); err != nil {
		return "", errors.ErrModuleWriteFailed.WithMessagef(
			"Cannot write module file %s", target).WithCause(err)
	}
	log.Info("Installed module file", "file", target)
	return target, nil
}

// WriteDefault installs the .version pointer selecting version as the
// default for the product.
func WriteDefault(moduleDir, name, version string) error {
	content := Process(defaultVersionTemplate, map[string]string{"version": version})
	target := filepath.Join(moduleDir, name, ".version")
	if err := writeLocked(target, content); err != nil {
		return errors.ErrModuleWriteFailed.WithMessagef(
			"Cannot write default version file %s", target).WithCause(err)
	}
	log.Info("Marked version as default", "product", name, "version", version)
	return nil
}

// writeFile is swapped out by tests to exercise write failures.
var writeFile = os.WriteFile

// writeLocked writes content to path with mode 0444, unlocking an existing
// read-only file first. The read-only state is restored on every exit
// path, including a failed write.
func writeLocked(path, content string) (err error) {
	if paths.IsFile(path) {
		if cerr := os.Chmod(path, 0644); cerr != nil {
			return fmt.Errorf("cannot unlock %s: %w", path, cerr)
		}
	}
	defer func() {
		if cerr := os.Chmod(path, 0444); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return writeFile(path, []byte(content), 0644)
}
