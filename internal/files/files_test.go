package files

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.json"), "hello")
	writeFile(t, filepath.Join(dir, "empty.bin"), "")
	writeFile(t, filepath.Join(dir, "photos", "a.jpg"), "aaaa")
	writeFile(t, filepath.Join(dir, "photos", "nested", "b.jpg"), "bb")

	infos, err := ValidateFiles([]string{filepath.Join(dir, "notes.json"), filepath.Join(dir, "photos")})
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d infos", len(infos))
	}
	if f := infos[0]; f.Name != "notes.json" || f.Size != 5 || f.IsDir || f.Type != "application/json" {
		t.Fatalf("file info %+v", f)
	}
	if d := infos[1]; d.Name != "photos.zip" || d.Size != 6 || !d.IsDir {
		t.Fatalf("directory info %+v", d)
	}
	if got := GetTotalSize(infos); got != 11 {
		t.Fatalf("GetTotalSize = %d", got)
	}

	_, err = ValidateFiles([]string{filepath.Join(dir, "missing"), filepath.Join(dir, "empty.bin")})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"does not exist", "file is empty"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}

	if _, err := ValidateFiles(nil); err == nil {
		t.Fatal("no paths accepted")
	}
}

func TestSourcesArchiveDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "readme.md"), "# docs")
	writeFile(t, filepath.Join(dir, "docs", "guide", "intro.md"), "intro text")
	writeFile(t, filepath.Join(dir, "single.txt"), "single")

	infos, err := ValidateFiles([]string{filepath.Join(dir, "single.txt"), filepath.Join(dir, "docs")})
	if err != nil {
		t.Fatal(err)
	}
	sources, err := Sources(infos, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if sources[0].Name != "single.txt" || sources[0].Size != 6 {
		t.Fatalf("plain source %+v", sources[0])
	}

	src := sources[1]
	if src.Name != "docs.zip" {
		t.Fatalf("archive named %q", src.Name)
	}
	r, err := src.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	zr, err := zip.NewReader(r, src.Size)
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}
	contents := make(map[string]string)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(b)
	}
	slices.Sort(names)
	if want := []string{"guide/", "guide/intro.md", "readme.md"}; !slices.Equal(names, want) {
		t.Fatalf("entries %v, want %v", names, want)
	}
	if contents["guide/intro.md"] != "intro text" || contents["readme.md"] != "# docs" {
		t.Fatalf("contents %v", contents)
	}
}

func TestZipDirectorySkipsItsOwnTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	target := filepath.Join(dir, "bundle.zip")

	if err := ZipDirectory(dir, target); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(target)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "a.txt" {
		t.Fatalf("archive holds %d entries", len(zr.File))
	}
}
