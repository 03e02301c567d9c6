package direction

import (
	"context"
	"errors"
	"testing"
)

type fakeProber struct {
	result string
	err    error
	calls  int
}

func (f *fakeProber) Translate(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	return f.result, f.err
}

func TestResolve_CyrillicPrimaryNeverProbes(t *testing.T) {
	prober := &fakeProber{}
	r := NewResolver(prober)

	tests := []struct {
		name       string
		text       string
		wantSource string
		wantTarget string
	}{
		{"cyrillic text goes primary to secondary", "привет всем", "ru", "en"},
		{"latin text goes secondary to primary", "hello there", "en", "ru"},
		{"mixed text counts as primary", "привет John", "ru", "en"},
		{"digits only counts as secondary", "12345", "en", "ru"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := r.Resolve(context.Background(), tc.text, "ru", "en")
			if d.Source != tc.wantSource || d.Target != tc.wantTarget {
				t.Errorf("got %s->%s, want %s->%s", d.Source, d.Target, tc.wantSource, tc.wantTarget)
			}
			if d.Method != MethodScript {
				t.Errorf("method = %q, want %q", d.Method, MethodScript)
			}
		})
	}
	if prober.calls != 0 {
		t.Fatalf("prober called %d times for a Cyrillic primary, want 0", prober.calls)
	}
}

func TestResolve_ProbeUnchangedMeansPrimary(t *testing.T) {
	prober := &fakeProber{result: "Bonjour  tout le monde"}
	r := NewResolver(prober)

	d := r.Resolve(context.Background(), "bonjour tout le monde", "fr", "en")
	if d.Source != "fr" || d.Target != "en" {
		t.Fatalf("got %s->%s, want fr->en", d.Source, d.Target)
	}
	if d.Method != MethodProbe {
		t.Fatalf("method = %q, want %q", d.Method, MethodProbe)
	}
	if d.ProbeResult != "" {
		t.Fatalf("probe result should not be carried when direction is primary->secondary")
	}
	if prober.calls != 1 {
		t.Fatalf("prober called %d times, want 1", prober.calls)
	}
}

func TestResolve_ProbeChangedCarriesResult(t *testing.T) {
	prober := &fakeProber{result: "bonjour tout le monde"}
	r := NewResolver(prober)

	d := r.Resolve(context.Background(), "hello everyone out there", "fr", "en")
	if d.Source != "en" || d.Target != "fr" {
		t.Fatalf("got %s->%s, want en->fr", d.Source, d.Target)
	}
	if d.ProbeResult != "bonjour tout le monde" {
		t.Fatalf("probe result = %q, want the probe translation", d.ProbeResult)
	}
}

func TestResolve_ProbeErrorFallsBackToDefault(t *testing.T) {
	prober := &fakeProber{err: errors.New("all providers down")}
	r := NewResolver(prober)

	d := r.Resolve(context.Background(), "hello", "fr", "en")
	if d.Source != "en" || d.Target != "fr" {
		t.Fatalf("got %s->%s, want the default en->fr", d.Source, d.Target)
	}
	if d.Method != MethodDefault {
		t.Fatalf("method = %q, want %q", d.Method, MethodDefault)
	}
}

func TestResolve_SimilarityThreshold(t *testing.T) {
	// One substituted rune in a 20-rune string is 0.95 similar: unchanged at
	// the default threshold, changed at 0.99.
	original := "abcdefghijklmnopqrst"
	probed := "Xbcdefghijklmnopqrst"

	r := NewResolver(&fakeProber{result: probed})
	if d := r.Resolve(context.Background(), original, "fr", "en"); d.Source != "fr" {
		t.Fatalf("default threshold: got %s->%s, want fr->en", d.Source, d.Target)
	}

	strict := NewResolver(&fakeProber{result: probed}, WithSimilarityThreshold(0.99))
	if d := strict.Resolve(context.Background(), original, "fr", "en"); d.Source != "en" {
		t.Fatalf("strict threshold: got %s->%s, want en->fr", d.Source, d.Target)
	}
}
