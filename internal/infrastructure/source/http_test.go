// ABOUTME: Tests for HTTP stream source implementation
// ABOUTME: Verifies ICY request headers, metaint parsing, and error cases
package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSource_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			t.Errorf("expected Icy-MetaData: 1 header")
		}
		if r.Header.Get("X-Test") != "yes" {
			t.Errorf("expected custom header")
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("icy-metaint", "16000")
		w.Header().Set("icy-name", "Radio X")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("audio data"))
	}))
	defer server.Close()

	src := NewHTTP(HTTPConfig{Headers: map[string]string{"X-Test": "yes"}})

	stream, err := src.Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer stream.Close()

	if stream.MetaInt != 16000 {
		t.Errorf("expected metaint 16000, got %d", stream.MetaInt)
	}
	if stream.Name != "Radio X" {
		t.Errorf("expected name 'Radio X', got %q", stream.Name)
	}

	body, _ := io.ReadAll(stream.Body)
	if string(body) != "audio data" {
		t.Errorf("expected 'audio data', got %q", body)
	}
}

func TestHTTPSource_NoMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	stream, err := NewHTTP(HTTPConfig{}).Connect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer stream.Close()

	if stream.MetaInt != 0 {
		t.Errorf("expected metaint 0, got %d", stream.MetaInt)
	}
}

func TestHTTPSource_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := NewHTTP(HTTPConfig{}).Connect(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestHTTPSource_BadMetaInt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("icy-metaint", "lots")
		w.Write([]byte("audio"))
	}))
	defer server.Close()

	if _, err := NewHTTP(HTTPConfig{}).Connect(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for invalid icy-metaint")
	}
}
