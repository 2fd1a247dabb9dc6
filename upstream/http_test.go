package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPInvoker_PostsJSONAndReturnsRawBody(t *testing.T) {
	var gotPath, gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2]}`))
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL + "/")
	raw, err := inv.Invoke(context.Background(), "tensor", "encode", map[string]string{"query": "hi"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}

	if gotPath != "/tensor/encode" {
		t.Fatalf("expected POST /tensor/encode, got %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", gotContentType)
	}
	if gotBody != `{"query":"hi"}` {
		t.Fatalf("unexpected request body %q", gotBody)
	}
	if string(raw) != `{"embedding":[0.1,0.2]}` {
		t.Fatalf("unexpected response %q", raw)
	}
}

func TestHTTPInvoker_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL)
	_, err := inv.Invoke(context.Background(), "tensor", "encode", nil)
	if err == nil {
		t.Fatalf("expected an error for a 500 response")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ue.Status != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", ue.Status)
	}
}

func TestHTTPInvoker_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	inv := NewHTTPInvoker(srv.URL, WithTimeout(time.Second))
	_, err := inv.Invoke(context.Background(), "tensor", "encode", nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPInvoker_ClientErrorIsNotUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	inv := NewHTTPInvoker(srv.URL)
	_, err := inv.Invoke(context.Background(), "tensor", "encode", nil)
	if err == nil {
		t.Fatalf("expected an error for a 422 response")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("a 4xx is a caller problem, not backend unavailability: %v", err)
	}

	var ue *Error
	if !errors.As(err, &ue) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ue.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", ue.Status)
	}
}
