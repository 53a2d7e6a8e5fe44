package settings

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tldr/dbopen"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestGet_Defaults(t *testing.T) {
	s := newStore(t)
	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Settings{Provider: "openai", ShowCost: true}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := Settings{
		PrimaryAPIKey:   "  sk-primary \n",
		SecondaryAPIKey: "sk-ant-secondary",
		Provider:        ProviderAnthropic,
		ShowCost:        false,
	}
	if err := s.Save(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.PrimaryAPIKey != "sk-primary" {
		t.Errorf("primary key not trimmed: %q", got.PrimaryAPIKey)
	}
	if got.Provider != ProviderAnthropic || got.ShowCost {
		t.Errorf("got %+v", got)
	}
	if got.APIKey() != "sk-ant-secondary" {
		t.Errorf("APIKey() = %q", got.APIKey())
	}

	// Overwrite.
	in.Provider = ProviderOpenAI
	in.ShowCost = true
	if err := s.Save(ctx, in); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx)
	if got.Provider != ProviderOpenAI || !got.ShowCost || got.APIKey() != "sk-primary" {
		t.Errorf("after overwrite: %+v", got)
	}
}

func TestSave_UnknownProvider(t *testing.T) {
	s := newStore(t)
	err := s.Save(context.Background(), Settings{Provider: "gemini"})
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("got %v, want ErrUnknownProvider", err)
	}
	got, _ := s.Get(context.Background())
	if got != Defaults() {
		t.Fatalf("failed save must not write: %+v", got)
	}
}

func TestStatic(t *testing.T) {
	var src Source = Static{Provider: ProviderOpenAI, PrimaryAPIKey: "k"}
	got, err := src.Get(context.Background())
	if err != nil || got.APIKey() != "k" {
		t.Fatalf("got %+v, %v", got, err)
	}
}
