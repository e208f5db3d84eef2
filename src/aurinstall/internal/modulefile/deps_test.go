package modulefile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDependencies(t *testing.T) {
	moduleText := `#%Module1.0
# module load commented-out
module load aurutil
module load numlib-hpcp
module load numlib
if { [is-loaded fits] } { module switch fits } else { module load fits }
module load aurutil
`
	tests := []struct {
		name      string
		nerscHost string
		want      []string
	}{
		{
			name: "generic site drops hpcp",
			want: []string{"aurutil", "numlib", "fits"},
		},
		{
			name:      "nersc prefers hpcp twin",
			nerscHost: "perlmutter",
			want:      []string{"aurutil", "numlib-hpcp", "fits"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dependencies(moduleText, tt.nerscHost)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dependencies = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDependenciesVersioned(t *testing.T) {
	moduleText := "module load numlib-hpcp/2.1\nmodule load numlib/2.1\n"
	got := Dependencies(moduleText, "perlmutter")
	want := []string{"numlib-hpcp/2.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dependencies = %v, want %v", got, want)
	}
}

func TestDependenciesNone(t *testing.T) {
	if got := Dependencies("#%Module1.0\nsetenv X y\n", ""); got != nil {
		t.Errorf("Dependencies = %v, want nil", got)
	}
}

func TestFallback(t *testing.T) {
	workingDir := t.TempDir()
	etc := filepath.Join(workingDir, "etc")
	if err := os.MkdirAll(etc, 0755); err != nil {
		t.Fatal(err)
	}
	content := "# runtime deps\naurutil\nnumlib/2.1\n\n"
	if err := os.WriteFile(filepath.Join(etc, "aurspec-deps.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got := Fallback(workingDir, "aurspec")
	want := []string{"aurutil", "numlib/2.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fallback = %v, want %v", got, want)
	}

	if got := Fallback(workingDir, "other"); got != nil {
		t.Errorf("missing fallback file should give nil, got %v", got)
	}
}

func TestApplyDependencies(t *testing.T) {
	moduleText := `#%Module1.0
module load aurutil
module load numlib-hpcp
setenv X y
`
	got := ApplyDependencies(moduleText, []string{"aurutil"})
	if strings.Contains(got, "numlib-hpcp") {
		t.Errorf("filtered dependency survived:\n%s", got)
	}
	want := "if { [is-loaded aurutil] } { module switch aurutil } else { module load aurutil }"
	if !strings.Contains(got, want) {
		t.Errorf("bare load not made conditional:\n%s", got)
	}
	if strings.Contains(got, "\nmodule load aurutil\n") {
		t.Errorf("bare load left behind:\n%s", got)
	}
	if !strings.Contains(got, "setenv X y") {
		t.Errorf("unrelated lines disturbed:\n%s", got)
	}
}

func TestApplyDependenciesAppendsMissing(t *testing.T) {
	got := ApplyDependencies("#%Module1.0\nsetenv X y\n", []string{"aurutil"})
	if !strings.Contains(got, "is-loaded aurutil") {
		t.Errorf("fallback dependency not appended:\n%s", got)
	}
}

func TestApplyDependenciesIdempotent(t *testing.T) {
	deps := []string{"aurutil", "numlib"}
	first := ApplyDependencies("#%Module1.0\nmodule load aurutil\nmodule load numlib\n", deps)
	second := ApplyDependencies(first, deps)
	if first != second {
		t.Errorf("not idempotent:\n%q\nvs\n%q", first, second)
	}
}
