package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("bad multipart body: %v", err)
		}
		files := r.MultipartForm.File["images"]
		if len(files) != 3 {
			t.Errorf("expected 3 images, got %d", len(files))
		}
		json.NewEncoder(w).Encode(map[string]string{"predicted_word": "DOG"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	word, err := client.Classify(context.Background(), [][]byte{{1}, {2}, {3}})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if word != "DOG" {
		t.Errorf("expected DOG, got %q", word)
	}
}

func TestClassifyErrors(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		client := NewClient("http://localhost:0")
		if _, err := client.Classify(context.Background(), nil); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL)
		if _, err := client.Classify(context.Background(), [][]byte{{1}}); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("empty prediction", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"predicted_word": ""})
		}))
		defer server.Close()

		client := NewClient(server.URL)
		if _, err := client.Classify(context.Background(), [][]byte{{1}}); err == nil {
			t.Error("expected an error")
		}
	})
}
