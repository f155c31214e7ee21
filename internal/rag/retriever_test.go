package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

func TestRetriever_Retrieve(t *testing.T) {
	e := colorEmbedder()
	idx := buildIndex(t, e, "The sky is blue.", "Grass is green.", "Blue sky, blue sea.")
	r := NewRetriever(e, idx, 2)
	got, err := r.Retrieve(context.Background(), "grass color", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want default top 2", len(got))
	}
	if got[0].Passage.Text != "Grass is green." {
		t.Errorf("top = %q", got[0].Passage.Text)
	}
	got, err = r.Retrieve(context.Background(), "grass", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("k beyond size: len = %d, want 3", len(got))
	}
}

func TestRetriever_propagatesErrors(t *testing.T) {
	empty, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRetriever(embedding.NewHashEmbedder(8), empty, 4)
	if _, err := r.Retrieve(context.Background(), "q", 0); !errors.Is(err, models.ErrEmptyIndex) {
		t.Errorf("empty index err = %v", err)
	}

	idx := buildIndex(t, embedding.NewHashEmbedder(8), "text")
	r = NewRetriever(embedding.NewHashEmbedder(16), idx, 4)
	if _, err := r.Retrieve(context.Background(), "q", 0); !errors.Is(err, models.ErrDimensionMismatch) {
		t.Errorf("mismatched embedder err = %v", err)
	}
	if _, err := r.Retrieve(context.Background(), "   ", 0); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("blank query err = %v", err)
	}
}
