package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileTokenStore_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	s := NewFileTokenStore(filepath.Join(dir, ".bookhaven", "token"))

	tok, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tok != "" {
		t.Errorf("expected empty token, got %q", tok)
	}

	if err := s.Save("abc.def.ghi"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file mode = %o; want 600", perm)
	}

	tok, err = s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tok != "abc.def.ghi" {
		t.Errorf("token = %q; want abc.def.ghi", tok)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear should be a no-op, got %v", err)
	}
	tok, _ = s.Load()
	if tok != "" {
		t.Errorf("expected empty token after Clear, got %q", tok)
	}
}

func TestLoadJSON_Missing(t *testing.T) {
	var v map[string]int
	ok, err := LoadJSON(filepath.Join(t.TempDir(), "nope.json"), &v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a missing file")
	}
}

func TestSaveLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cache.json")
	in := map[string]int{"a": 1, "b": 2}
	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}

	var out map[string]int
	ok, err := LoadJSON(path, &out)
	if err != nil || !ok {
		t.Fatalf("LoadJSON = %v, %v", ok, err)
	}
	if out["a"] != 1 || out["b"] != 2 {
		t.Errorf("unexpected content: %v", out)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestLoadJSON_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	var v map[string]int
	if _, err := LoadJSON(path, &v); err == nil {
		t.Error("expected decode error")
	}
}
