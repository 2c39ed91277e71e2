package service

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type memoryStorage struct {
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	buf, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = buf
	return key, nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (m *memoryStorage) List(ctx context.Context, prefix string, limit int32) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memoryStorage) GetPublicURL(key string) string {
	return "https://public.example/" + key
}

func TestResultSave_DataURI(t *testing.T) {
	storage := newMemoryStorage()
	svc := NewResultService(storage)

	payload := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	url, err := svc.Save(context.Background(), ref, "job-1", "masking")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(url, "https://signed.example/ai-results/job-1/masking-") {
		t.Errorf("unexpected signed URL %s", url)
	}

	if len(storage.objects) != 1 {
		t.Fatalf("expected 1 stored object, got %d", len(storage.objects))
	}
	for key, buf := range storage.objects {
		if !strings.HasPrefix(key, "ai-results/job-1/masking-") || !strings.HasSuffix(key, ".png") {
			t.Errorf("unexpected key %s", key)
		}
		if len(buf) != len(payload) {
			t.Errorf("stored %d bytes, want %d", len(buf), len(payload))
		}
	}
}

func TestResultSave_RemoteURL(t *testing.T) {
	imageBytes := []byte("fake-image-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(imageBytes)
	}))
	defer srv.Close()

	storage := newMemoryStorage()
	svc := NewResultService(storage)

	if _, err := svc.Save(context.Background(), srv.URL+"/out.png", "job-2", "composition"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for _, buf := range storage.objects {
		if string(buf) != string(imageBytes) {
			t.Error("stored bytes do not match the downloaded image")
		}
	}
}

func TestResultSave_EmptyReference(t *testing.T) {
	svc := NewResultService(newMemoryStorage())

	if _, err := svc.Save(context.Background(), "", "job-3", "masking"); err == nil {
		t.Fatal("expected error for empty reference")
	}
}

func TestResultSave_EmptyBuffer(t *testing.T) {
	svc := NewResultService(newMemoryStorage())

	ref := "data:image/png;base64,"
	if _, err := svc.Save(context.Background(), ref, "job-4", "masking"); err == nil {
		t.Fatal("expected error for zero-byte image")
	}
}

func TestResultSave_NoStoragePassesThrough(t *testing.T) {
	svc := NewResultService(nil)

	ref := "https://model.example/raw.png"
	url, err := svc.Save(context.Background(), ref, "job-5", "composition")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if url != ref {
		t.Errorf("pass-through should return the reference unchanged, got %s", url)
	}
}

func TestResultSave_DistinctKeysPerCall(t *testing.T) {
	storage := newMemoryStorage()
	svc := NewResultService(storage)

	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("x"))
	first, err := svc.Save(context.Background(), ref, "job-6", "masking")
	if err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Save(context.Background(), ref, "job-6", "masking")
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	if first == second {
		t.Error("repeated saves must produce distinct keys")
	}
	if len(storage.objects) != 2 {
		t.Errorf("expected 2 stored objects, got %d", len(storage.objects))
	}
}
