package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataPath(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	writeFile(t, filepath.Join(dir2, "templates", "a.tpl"), "a")
	writeFile(t, filepath.Join(dir1, "templates", "b.tpl"), "b")
	writeFile(t, filepath.Join(dir2, "templates", "b.tpl"), "b")

	p := NewDataPath(dir1 + ": " + dir2 + ":")
	if len(p.Dirs) < 2 || p.Dirs[0] != dir1 || p.Dirs[1] != dir2 {
		t.Fatalf("unexpected search dirs %v", p.Dirs)
	}

	path, err := p.Find("templates/a.tpl")
	if err != nil || path != filepath.Join(dir2, "templates", "a.tpl") {
		t.Errorf("expected a.tpl under %s, got %s (%v)", dir2, path, err)
	}
	path, err = p.Find("templates/b.tpl")
	if err != nil || path != filepath.Join(dir1, "templates", "b.tpl") {
		t.Errorf("expected the first directory to win, got %s (%v)", path, err)
	}

	// cached lookups survive the file going away
	os.Remove(filepath.Join(dir2, "templates", "a.tpl"))
	if _, err := p.Find("templates/a.tpl"); err != nil {
		t.Errorf("expected a cached result, got %v", err)
	}

	if _, err := p.Find("templates/missing.tpl"); err == nil {
		t.Errorf("expected missing file to fail")
	}
	if _, err := p.Find(filepath.Join(dir1, "templates", "b.tpl")); err != nil {
		t.Errorf("absolute path should resolve: %v", err)
	}
}
