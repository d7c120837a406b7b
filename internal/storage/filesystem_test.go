package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestUploadAndPublicURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	key, err := store.Upload(context.Background(), "videos/user-1/123_raw.mp4", []byte("bytes"), "video/mp4")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if key != "videos/user-1/123_raw.mp4" {
		t.Fatalf("key = %q", key)
	}

	data, err := os.ReadFile(filepath.Join(store.BasePath(), "videos", "user-1", "123_raw.mp4"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "bytes" {
		t.Fatalf("stored data = %q", data)
	}

	meta, err := os.ReadFile(filepath.Join(store.BasePath(), "videos", "user-1", "123_raw.mp4.contenttype"))
	if err != nil {
		t.Fatalf("read content type: %v", err)
	}
	if string(meta) != "video/mp4" {
		t.Fatalf("content type = %q", meta)
	}

	if got := store.PublicURL(key); got != "http://localhost:8080/static/videos/user-1/123_raw.mp4" {
		t.Fatalf("public url = %q", got)
	}
}

func TestUploadRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Upload(context.Background(), "../outside.bin", []byte{1}, ""); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if _, err := store.Upload(context.Background(), "  ", []byte{1}, ""); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}
