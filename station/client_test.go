package station

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elijahnyp/station_controller/state"
)

func TestClient_FetchState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		if r.URL.Path != "/getstate" {
			t.Errorf("Expected /getstate, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"antenna":1,"hf":0,"vuhf":0}`) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", time.Second)
	s, err := c.FetchState(context.Background())
	if err != nil {
		t.Fatalf("FetchState failed: %v", err)
	}
	if s != (state.DeviceState{Antenna: 1}) {
		t.Errorf("Expected {1 0 0}, got %v", s)
	}
}

func TestClient_Control(t *testing.T) {
	got := make(chan [2]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != "/control" {
			t.Errorf("Expected /control, got %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body) //nolint:errcheck // test helper
		got <- [2]string{string(b), r.Header.Get("Content-Type")}
		_, _ = io.WriteString(w, `{"antenna":0,"hf":3,"vuhf":0}`) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	s, err := c.Control(context.Background(), state.NewCommand(state.HF, 3))
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	req := <-got
	body, contentType := req[0], req[1]
	if body != "cmd=hf&val=3" {
		t.Errorf("Expected body cmd=hf&val=3, got %q", body)
	}
	if contentType != "application/x-www-form-urlencoded" {
		t.Errorf("Unexpected content type %q", contentType)
	}
	if s.HF != 3 {
		t.Errorf("Expected hf=3 in response, got %v", s)
	}
}

func TestClient_MasterOffBody(t *testing.T) {
	bodies := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body) //nolint:errcheck // test helper
		bodies <- string(b)
		_, _ = io.WriteString(w, `{"antenna":0,"hf":0,"vuhf":0}`) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	if _, err := c.Control(context.Background(), state.MasterOffCommand()); err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	if body := <-bodies; body != "cmd=master_off&val=0" {
		t.Errorf("Expected master_off body, got %q", body)
	}
}

func TestClient_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)

	_, err := c.FetchState(context.Background())
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != http.StatusServiceUnavailable {
		t.Errorf("Expected StatusError 503, got %v", err)
	}

	_, err = c.Control(context.Background(), state.NewCommand(state.VUHF, 5))
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("Expected ErrCommandFailed, got %v", err)
	}
	if errors.Is(err, ErrFetchFailed) {
		t.Error("Command error should not be a fetch error")
	}
}

func TestClient_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`) //nolint:errcheck // test helper
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	if _, err := c.FetchState(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed for undecodable body, got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewClient(url, time.Second)
	if _, err := c.FetchState(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed for closed server, got %v", err)
	}
}
