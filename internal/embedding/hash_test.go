package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

func TestHashEmbedder_deterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "The sky is blue.")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "The sky is blue.")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	if n := math.Sqrt(utils.Dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestHashEmbedder_sharedTermsScoreHigher(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "What color is the sky?")
	sky, _ := e.Embed(ctx, "The sky is blue.")
	grass, _ := e.Embed(ctx, "Grass is green.")
	if utils.Dot(q, sky) <= utils.Dot(q, grass) {
		t.Errorf("sky passage should outscore grass: %f <= %f", utils.Dot(q, sky), utils.Dot(q, grass))
	}
}

func TestHashEmbedder_caseInsensitive(t *testing.T) {
	e := NewHashEmbedder(32)
	a, _ := e.Embed(context.Background(), "SKY Blue")
	b, _ := e.Embed(context.Background(), "sky blue")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should ignore case")
		}
	}
}

func TestHashEmbedder_rejectsEmpty(t *testing.T) {
	e := NewHashEmbedder(32)
	for _, text := range []string{"", "   \n\t"} {
		if _, err := e.Embed(context.Background(), text); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("Embed(%q) err = %v, want ErrInvalidInput", text, err)
		}
	}
}

func TestHashEmbedder_punctuationOnlyIsNonZero(t *testing.T) {
	e := NewHashEmbedder(32)
	v, err := e.Embed(context.Background(), "?!")
	if err != nil {
		t.Fatal(err)
	}
	if utils.Dot(v, v) == 0 {
		t.Error("punctuation-only text should not embed to the zero vector")
	}
}

func TestHashEmbedder_EmbedBatch(t *testing.T) {
	e := NewHashEmbedder(16)
	out, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a", " "}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("batch with blank text err = %v, want ErrInvalidInput", err)
	}
}

func TestHashEmbedder_canceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(8).Embed(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
