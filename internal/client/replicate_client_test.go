package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/toilettails/api/internal/config"
)

func testReplicateClient(baseURL string) *ReplicateClient {
	return NewReplicateClient(&config.ReplicateConfig{
		BaseURL:        baseURL,
		APIToken:       "token",
		Img2ImgVersion: "v1",
	})
}

func TestRunPrediction_Succeeds(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/predictions" {
			if got := r.Header.Get("Authorization"); got != "Token token" {
				t.Errorf("unexpected auth header %s", got)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "pred-1", "status": "starting"})
			return
		}
		if strings.HasPrefix(r.URL.Path, "/predictions/") {
			atomic.AddInt32(&polls, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "pred-1",
				"status": "succeeded",
				"output": []string{"https://x/out.png"},
			})
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	url, err := testReplicateClient(srv.URL).RunPrediction(context.Background(), &PredictionRequest{
		Version: "v1",
		Input:   map[string]interface{}{"image": "https://x/pet.png"},
	})
	if err != nil {
		t.Fatalf("RunPrediction failed: %v", err)
	}
	if url != "https://x/out.png" {
		t.Errorf("unexpected url %s", url)
	}
	if atomic.LoadInt32(&polls) != 1 {
		t.Errorf("expected 1 poll, got %d", polls)
	}
}

func TestRunPrediction_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "pred-2", "status": "starting"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pred-2",
			"status": "failed",
			"error":  "NSFW content detected",
		})
	}))
	defer srv.Close()

	_, err := testReplicateClient(srv.URL).RunPrediction(context.Background(), &PredictionRequest{Version: "v1"})
	if err == nil {
		t.Fatal("expected failed prediction to error")
	}
	if !strings.Contains(err.Error(), "NSFW") {
		t.Errorf("error should carry the provider message, got %v", err)
	}
}

func TestRunPrediction_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testReplicateClient(srv.URL).RunPrediction(context.Background(), &PredictionRequest{Version: "v1"})
	if err == nil {
		t.Fatal("expected error when no prediction id is returned")
	}
}

func TestRunPrediction_NotConfigured(t *testing.T) {
	c := NewReplicateClient(&config.ReplicateConfig{BaseURL: "https://api.replicate.com/v1"})

	_, err := c.RunPrediction(context.Background(), &PredictionRequest{Version: "v1"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestExtractPredictionOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain string", `"https://x/a.png"`, "https://x/a.png", false},
		{"string array", `["https://x/b.png","https://x/c.png"]`, "https://x/b.png", false},
		{"object array", `[{"url":"https://x/d.png"}]`, "https://x/d.png", false},
		{"empty", ``, "", true},
		{"null", `null`, "", true},
		{"empty array", `[]`, "", true},
		{"unknown object", `{"file":"https://x/e.png"}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractPredictionOutput(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("url = %q, want %q", got, tt.want)
			}
		})
	}
}
