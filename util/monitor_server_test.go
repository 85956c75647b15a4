package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewMonitorServer(t *testing.T) {
	server := NewMonitorServer()

	if server == nil {
		t.Fatal("NewMonitorServer should return non-nil server")
	}

	if server.Handler() == nil {
		t.Error("NewMonitorServer should initialize a mux")
	}

	if server.Addr() != nil {
		t.Error("a new server should not be listening")
	}
}

func TestMonitorServer_AddHandler(t *testing.T) {
	server := NewMonitorServer()

	server.AddHandler("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response")) //nolint:errcheck // test helper
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if body := w.Body.String(); body != "test response" {
		t.Errorf("Expected 'test response', got '%s'", body)
	}
}

func TestMonitorServer_AddRawHandler(t *testing.T) {
	server := NewMonitorServer()

	server.AddRawHandler("/raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("raw handler response")) //nolint:errcheck // test helper
	}))

	req := httptest.NewRequest("GET", "/raw", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	if body := w.Body.String(); body != "raw handler response" {
		t.Errorf("Expected 'raw handler response', got '%s'", body)
	}
}

func TestMonitorServer_Integration(t *testing.T) {
	server := NewMonitorServer()
	server.AddHandler("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy")) //nolint:errcheck // test helper
	})

	if err := server.StartOn("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	resp, err := http.Get(fmt.Sprintf("http://%s/health", server.Addr()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }() //nolint:errcheck // test cleanup

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "healthy" {
		t.Errorf("Expected 200 healthy, got %d %s", resp.StatusCode, body)
	}
}

func TestMonitorServer_StartTwice(t *testing.T) {
	server := NewMonitorServer()

	if err := server.StartOn("127.0.0.1:0"); err != nil {
		t.Fatalf("Start() should not return error, got: %v", err)
	}
	defer server.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	if err := server.StartOn("127.0.0.1:0"); err == nil {
		t.Error("Start() should return error when already running")
	}
}

func TestMonitorServer_ConcurrentStart(t *testing.T) {
	server := NewMonitorServer()
	defer server.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			results <- server.StartOn("127.0.0.1:0")
		}()
	}

	var successCount, errorCount int
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			errorCount++
		} else {
			successCount++
		}
	}

	if successCount != 1 {
		t.Errorf("Expected exactly 1 successful start, got %d", successCount)
	}
	if errorCount != 2 {
		t.Errorf("Expected exactly 2 'already running' errors, got %d", errorCount)
	}
}

func TestMonitorServer_ShutdownAndStartAgain(t *testing.T) {
	server := NewMonitorServer()

	if err := server.StartOn("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() returned error: %v", err)
	}
	if server.Addr() != nil {
		t.Error("Addr() should be nil after shutdown")
	}
	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() should be a no-op, got %v", err)
	}

	if err := server.StartOn("127.0.0.1:0"); err != nil {
		t.Errorf("server should start again after shutdown: %v", err)
	}
	_ = server.Shutdown(context.Background()) //nolint:errcheck // test cleanup
}

func TestMonitorServer_RestartUsesConfiguredPort(t *testing.T) {
	Config.Set("panel_port", 0)
	defer Config.Set("panel_port", 8080)

	server := NewMonitorServer()
	if err := server.StartOn("127.0.0.1:0"); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	server.Restart()
	defer server.Shutdown(context.Background()) //nolint:errcheck // test cleanup

	if server.Addr() == nil {
		t.Error("server should be listening after restart")
	}
}
