package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSniffImageReplaysContent(t *testing.T) {
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 1024)...)

	contentType, r, err := SniffImage(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("sniff: %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("expected image/png, got %s", contentType)
	}
	replayed, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read replay: %v", err)
	}
	if !bytes.Equal(replayed, body) {
		t.Fatal("expected replayed content to match the upload")
	}
}

func TestSniffImageRejectsText(t *testing.T) {
	_, _, err := SniffImage(strings.NewReader("definitely not an image"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestMemoryStorageSave(t *testing.T) {
	store := NewMemoryStorage("https://cdn.example.com/")
	key := ObjectKey("users", "u1", "image/png")
	if !strings.HasPrefix(key, "users/u1/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}

	url, err := store.Save(context.Background(), key, "image/png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "https://cdn.example.com/"+key {
		t.Fatalf("unexpected url %q", url)
	}
	if data, ok := store.Object(key); !ok || !bytes.Equal(data, pngHeader) {
		t.Fatal("expected object to be stored")
	}
}
