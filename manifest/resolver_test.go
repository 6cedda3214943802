package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name        string
		depName     string
		dep         Dependency
		depManifest *Manifest
		want        string
		wantErr     bool
	}{
		{
			name:        "consumer override wins",
			depName:     "geometry",
			dep:         Dependency{Path: "../g", Prefix: "custom"},
			depManifest: &Manifest{Project: Project{Prefix: "geo"}},
			want:        "custom",
		},
		{
			name:        "producer prefix when no consumer override",
			depName:     "geometry",
			dep:         Dependency{Path: "../g"},
			depManifest: &Manifest{Project: Project{Prefix: "geo"}},
			want:        "geo",
		},
		{
			name:    "snake_case fallback when no manifest",
			depName: "my-lib",
			dep:     Dependency{Path: "../my-lib"},
			want:    "my_lib",
		},
		{
			name:    "reserved prefix rejected",
			depName: "core",
			dep:     Dependency{Path: "../core"},
			wantErr: true,
		},
		{
			name:    "invalid override rejected",
			depName: "lib",
			dep:     Dependency{Path: "../lib", Prefix: "a b"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePrefix(tt.depName, tt.dep, tt.depManifest)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("prefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveTransitive(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "app"), `
[project]
name = "app"

[dependencies]
shapes = { path = "../shapes" }
`)
	writeManifest(t, filepath.Join(root, "shapes"), `
[project]
name = "shapes"
prefix = "geo"

[source]
dirs = ["lib"]

[dependencies]
num-utils = { path = "../num" }
`)
	// A dependency without a manifest is used as a plain source directory.
	if err := os.MkdirAll(filepath.Join(root, "num"), 0755); err != nil {
		t.Fatal(err)
	}

	m, err := Load(filepath.Join(root, "app"))
	if err != nil {
		t.Fatal(err)
	}
	roots, err := NewResolver(m).Roots()
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	want := []SourceRoot{
		{Dir: filepath.Join(root, "num"), Prefix: "num_utils"},
		{Dir: filepath.Join(root, "shapes", "lib"), Prefix: "geo"},
		{Dir: filepath.Join(root, "app", "src")},
	}
	if len(roots) != len(want) {
		t.Fatalf("roots = %+v, want %+v", roots, want)
	}
	for i := range want {
		if roots[i] != want[i] {
			t.Errorf("roots[%d] = %+v, want %+v", i, roots[i], want[i])
		}
	}
}

func TestResolveCycle(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "a"), "[dependencies]\nb = { path = \"../b\" }\n")
	writeManifest(t, filepath.Join(root, "b"), "[dependencies]\na = { path = \"../a\" }\n")

	m, err := Load(filepath.Join(root, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected a cycle error")
	}
}

func TestResolveMissingPath(t *testing.T) {
	m := &Manifest{
		Dir:          t.TempDir(),
		Dependencies: map[string]Dependency{"gone": {Path: "nowhere"}},
	}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("expected an error for a missing dependency")
	}
}
