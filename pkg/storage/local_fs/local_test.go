package local_fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalFS_SendFile(t *testing.T) {
	tempDir := t.TempDir()

	client, err := NewClient(&Config{SavePath: tempDir, CustomPath: "in"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	content := "hello world"
	modTime := time.Date(2023, 10, 1, 12, 0, 0, 0, time.UTC)

	savedPath, err := client.SendFile(context.Background(), "010100.v46.i23.xml", strings.NewReader(content), "text/plain", modTime)
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}
	if want := filepath.Join(tempDir, "in", "010100.v46.i23.xml"); savedPath != want {
		t.Fatalf("saved path = %s, want %s", savedPath, want)
	}

	savedContent, err := os.ReadFile(savedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(savedContent) != content {
		t.Errorf("Content mismatch: expected %s, got %s", content, string(savedContent))
	}

	fileInfo, err := os.Stat(savedPath)
	if err != nil {
		t.Fatalf("Failed to stat saved file: %v", err)
	}
	diff := fileInfo.ModTime().Sub(modTime)
	if diff < -time.Second || diff > time.Second {
		t.Errorf("ModTime mismatch: expected %v, got %v", modTime, fileInfo.ModTime())
	}

	// 没有遗留临时文件
	entries, _ := os.ReadDir(filepath.Join(tempDir, "in"))
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}

func TestLocalFS_SendFileCancelled(t *testing.T) {
	tempDir := t.TempDir()
	client, _ := NewClient(&Config{SavePath: tempDir})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.SendFile(ctx, "x.dat", strings.NewReader("data"), "", time.Time{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(filepath.Join(tempDir, "x.dat")); !os.IsNotExist(err) {
		t.Error("cancelled upload must not leave the destination file")
	}
}

func TestLocalFS_SendContentAndDelete(t *testing.T) {
	tempDir := t.TempDir()
	client, _ := NewClient(&Config{SavePath: tempDir})

	content := []byte("hello content")
	savedPath, err := client.SendContent(context.Background(), "subdir/test_content.txt", content, time.Time{})
	if err != nil {
		t.Fatalf("SendContent failed: %v", err)
	}

	savedContent, err := os.ReadFile(savedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(savedContent, content) {
		t.Errorf("Content mismatch: expected %s, got %s", content, string(savedContent))
	}

	if err := client.Delete(context.Background(), "subdir/test_content.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(savedPath); !os.IsNotExist(err) {
		t.Error("file should be deleted")
	}
}

func TestLocalFS_KeyOutsideSavePath(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	client, _ := NewClient(&Config{SavePath: out})

	for _, key := range []string{"../escaped.xml", "a/../../escaped.xml", ".."} {
		if _, err := client.SendFile(context.Background(), key, strings.NewReader("x"), "", time.Time{}); !errors.Is(err, ErrOutsideSavePath) {
			t.Errorf("SendFile(%q) error = %v, want ErrOutsideSavePath", key, err)
		}
		if _, err := client.SendContent(context.Background(), key, []byte("x"), time.Time{}); !errors.Is(err, ErrOutsideSavePath) {
			t.Errorf("SendContent(%q) error = %v, want ErrOutsideSavePath", key, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "escaped.xml")); !os.IsNotExist(err) {
		t.Error("nothing may be written next to the save path")
	}

	if _, err := client.SendContent(context.Background(), "a/../inside.xml", []byte("x"), time.Time{}); err != nil {
		t.Errorf("a key that stays inside is accepted: %v", err)
	}
}
