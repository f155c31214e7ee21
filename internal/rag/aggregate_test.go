package rag

import (
	"errors"
	"math/rand"
	"testing"
)

func streamOf(frags ...Fragment) <-chan Fragment {
	ch := make(chan Fragment, len(frags))
	for _, f := range frags {
		ch <- f
	}
	close(ch)
	return ch
}

func texts(parts ...string) []Fragment {
	frags := make([]Fragment, len(parts))
	for i, p := range parts {
		frags[i] = Fragment{Text: p}
	}
	return frags
}

func TestAggregate(t *testing.T) {
	got, err := Aggregate(streamOf(texts("The s", "ky is", " bl", "ue.")...))
	if err != nil {
		t.Fatal(err)
	}
	if got != "The sky is blue." {
		t.Errorf("Aggregate = %q", got)
	}
}

func TestAggregate_empty(t *testing.T) {
	got, err := Aggregate(streamOf())
	if err != nil || got != "" {
		t.Errorf("Aggregate(empty) = %q, %v", got, err)
	}
}

func TestAggregate_error(t *testing.T) {
	boom := errors.New("boom")
	got, err := Aggregate(streamOf(Fragment{Text: "partial"}, Fragment{Err: boom}))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if got != "" {
		t.Errorf("partial answer %q returned alongside error", got)
	}
}

func TestAggregate_associative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"a", "é", " ", "日本", "", "xyz", "\n"}
	for trial := 0; trial < 50; trial++ {
		n := rng.Intn(12)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = alphabet[rng.Intn(len(alphabet))]
		}
		whole, err := Aggregate(streamOf(texts(parts...)...))
		if err != nil {
			t.Fatal(err)
		}
		for cut := 0; cut <= n; cut++ {
			left, err := Aggregate(streamOf(texts(parts[:cut]...)...))
			if err != nil {
				t.Fatal(err)
			}
			right, err := Aggregate(streamOf(texts(parts[cut:]...)...))
			if err != nil {
				t.Fatal(err)
			}
			if left+right != whole {
				t.Fatalf("split at %d of %q: %q + %q != %q", cut, parts, left, right, whole)
			}
		}
	}
}
