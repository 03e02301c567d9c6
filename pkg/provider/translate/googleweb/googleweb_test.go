package googleweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslate_ParsesMultiSentenceResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sl"); got != "ru" {
			t.Errorf("sl = %q, want ru", got)
		}
		if got := r.URL.Query().Get("tl"); got != "en" {
			t.Errorf("tl = %q, want en", got)
		}
		if got := r.URL.Query().Get("q"); got != "Привет. Как дела?" {
			t.Errorf("q = %q", got)
		}
		w.Write([]byte(`[[["Hello. ","Привет. ",null,null,3],["How are you?","Как дела?",null,null,3]],null,"ru"]`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	got, err := p.Translate(context.Background(), "Привет. Как дела?", "ru", "en")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello. How are you?" {
		t.Fatalf("got %q", got)
	}
}

func TestTranslate_DefaultsToAutoDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sl"); got != "auto" {
			t.Errorf("sl = %q, want auto", got)
		}
		w.Write([]byte(`[[["hi","привет",null,null,3]],null,"ru"]`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	if _, err := p.Translate(context.Background(), "привет", "", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranslate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	if _, err := p.Translate(context.Background(), "hello", "en", "ru"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestTranslate_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	if _, err := p.Translate(context.Background(), "hello", "en", "ru"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestTranslate_EmptyText(t *testing.T) {
	p := New()
	if _, err := p.Translate(context.Background(), "   ", "en", "ru"); err == nil {
		t.Fatal("expected error for empty text")
	}
}
