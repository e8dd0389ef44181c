package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
	if err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestWriteAtomicCommits(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out", "result.png")
	var tmpSeen string
	err := WriteAtomic(dst, func(tmp string) error {
		tmpSeen = tmp
		if filepath.Ext(tmp) != ".png" {
			t.Fatalf("temporary path must keep extension, got %s", tmp)
		}
		return os.WriteFile(tmp, []byte("pixels"), 0o644)
	})
	if err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}
	if got, _ := os.ReadFile(dst); string(got) != "pixels" {
		t.Fatalf("unexpected content %q", got)
	}
	if _, err := os.Stat(tmpSeen); !os.IsNotExist(err) {
		t.Fatalf("temporary file should be gone, stat err=%v", err)
	}
}

func TestWriteAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "result.png")
	err := WriteAtomic(dst, func(tmp string) error {
		_ = os.WriteFile(tmp, []byte("half"), 0o644)
		return errors.New("encoder exploded")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	dst := filepath.Join(dir, "b.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile failed: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("source should be gone")
	}
	if got, _ := os.ReadFile(dst); string(got) != "video" {
		t.Fatalf("unexpected content %q", got)
	}
}
