package install

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

// writeTarGz creates a .tar.gz containing the given files under a single
// top-level directory, mimicking a GitHub release snapshot.
func writeTarGz(t *testing.T, path, topDir string, files map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	if err := tw.WriteHeader(&tar.Header{
		Name: topDir + "/", Typeflag: tar.TypeDir, Mode: 0755,
	}); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		hdr := &tar.Header{
			Name: topDir + "/" + name, Typeflag: tar.TypeReg,
			Mode: 0644, Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExtractArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "snapshot.tar.gz")
	writeTarGz(t, archive, "aurutil-1.2.3", map[string]string{
		"setup.py":       "from setuptools import setup\n",
		"py/aurutil/a.py": "x = 1\n",
	})

	dest := filepath.Join(dir, "extract")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(context.Background(), archive, dest); err != nil {
		t.Fatalf("extractArchive: %v", err)
	}

	top, err := findExtractedDir(dest)
	if err != nil {
		t.Fatalf("findExtractedDir: %v", err)
	}
	if filepath.Base(top) != "aurutil-1.2.3" {
		t.Errorf("top dir = %q", top)
	}
	data, err := os.ReadFile(filepath.Join(top, "py", "aurutil", "a.py"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(data) != "x = 1\n" {
		t.Errorf("extracted content = %q", data)
	}
}

func TestExtractArchiveHardLink(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "snapshot.tar.gz")

	out, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name: "aurutil-1.2.3/", Typeflag: tar.TypeDir, Mode: 0755,
	}); err != nil {
		t.Fatal(err)
	}
	content := "payload\n"
	if err := tw.WriteHeader(&tar.Header{
		Name: "aurutil-1.2.3/data/orig.txt", Typeflag: tar.TypeReg,
		Mode: 0644, Size: int64(len(content)),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name: "aurutil-1.2.3/data/alias.txt", Typeflag: tar.TypeLink,
		Linkname: "aurutil-1.2.3/data/orig.txt",
	}); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	out.Close()

	dest := filepath.Join(dir, "extract")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(context.Background(), archive, dest); err != nil {
		t.Fatalf("extractArchive: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "aurutil-1.2.3", "data", "alias.txt"))
	if err != nil {
		t.Fatalf("hard link missing: %v", err)
	}
	if string(data) != content {
		t.Errorf("hard link content = %q", data)
	}
	orig, err := os.Stat(filepath.Join(dest, "aurutil-1.2.3", "data", "orig.txt"))
	if err != nil {
		t.Fatal(err)
	}
	alias, err := os.Stat(filepath.Join(dest, "aurutil-1.2.3", "data", "alias.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(orig, alias) {
		t.Error("alias.txt is not a hard link to orig.txt")
	}
}

func TestExtractArchiveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")

	out, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name: "../escape.txt", Typeflag: tar.TypeReg, Mode: 0644, Size: 4,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("oops")); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	out.Close()

	dest := filepath.Join(dir, "extract")
	if err := os.Mkdir(dest, 0755); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(context.Background(), archive, dest); err == nil {
		t.Error("expected error for path traversal entry")
	}
}

func TestExtractArchiveUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "snapshot.zip")
	if err := os.WriteFile(archive, []byte("not a tar"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(context.Background(), archive, dir); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFindExtractedDirAmbiguous(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"one", "two"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := findExtractedDir(dir); err == nil {
		t.Error("expected error for two top-level directories")
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "bin"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "bin", "run.sh"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "README"), []byte("hi\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("README", filepath.Join(src, "README.link")); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(t.TempDir(), "copy")
	if err := copyTree(src, dst); err != nil {
		t.Fatalf("copyTree: %v", err)
	}

	info, err := os.Stat(filepath.Join(dst, "bin", "run.sh"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("execute bit lost, mode = %v", info.Mode())
	}
	link, err := os.Readlink(filepath.Join(dst, "README.link"))
	if err != nil {
		t.Fatalf("symlink not copied: %v", err)
	}
	if link != "README" {
		t.Errorf("symlink target = %q", link)
	}
}
