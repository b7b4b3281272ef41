// ABOUTME: Tests for the SQLite station catalog and cover cache
// ABOUTME: Each test opens a fresh database file in a temp directory
package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test_nowplaying.sqlite3")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s, dbPath
}

func ptr(s string) *string {
	return &s
}

func TestOpen(t *testing.T) {
	s, dbPath := setupTestStore(t)

	if s.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestSeedStations_UpsertsByStream(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	err := s.SeedStations(ctx, []Station{
		{Name: "Radio B", Stream: "http://b/stream", Img: ptr("//cdn.example.com/b.png")},
		{Name: "Radio A", Stream: "http://a/stream"},
		{Name: "", Stream: "http://skipped/stream"},
	})
	if err != nil {
		t.Fatalf("SeedStations: %v", err)
	}

	first, err := s.ListStations(ctx)
	if err != nil {
		t.Fatalf("ListStations: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(first))
	}
	if first[0].Name != "Radio A" || first[1].Name != "Radio B" {
		t.Errorf("expected stations ordered by name, got %v", first)
	}
	if first[1].Img == nil || *first[1].Img != "https://cdn.example.com/b.png" {
		t.Errorf("expected normalized image, got %v", first[1].Img)
	}

	err = s.SeedStations(ctx, []Station{{Name: "Radio B Renamed", Stream: "http://b/stream"}})
	if err != nil {
		t.Fatalf("SeedStations again: %v", err)
	}

	second, _ := s.ListStations(ctx)
	if len(second) != 2 {
		t.Fatalf("expected upsert to keep 2 stations, got %d", len(second))
	}

	var renamed Station
	for _, st := range second {
		if st.Stream == "http://b/stream" {
			renamed = st
		}
	}
	if renamed.Name != "Radio B Renamed" {
		t.Errorf("expected renamed station, got %q", renamed.Name)
	}
	if renamed.ID != first[1].ID {
		t.Errorf("expected ID to survive upsert, %s != %s", renamed.ID, first[1].ID)
	}
}

func TestSeedStations_Empty(t *testing.T) {
	s, _ := setupTestStore(t)

	if err := s.SeedStations(context.Background(), nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCoverCache(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LookupCover(ctx, "artist a|song a"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := s.SaveCover(ctx, "artist a|song a", "http://img/1"); err != nil {
		t.Fatalf("SaveCover: %v", err)
	}
	if err := s.SaveCover(ctx, "artist a|song a", "http://img/2"); err != nil {
		t.Fatalf("SaveCover overwrite: %v", err)
	}

	url, ok, err := s.LookupCover(ctx, "artist a|song a")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if url != "http://img/2" {
		t.Errorf("expected latest url, got %q", url)
	}
}

func TestNormalizeImage(t *testing.T) {
	cases := []struct {
		in   *string
		want *string
	}{
		{nil, nil},
		{ptr("  "), nil},
		{ptr("//cdn.example.com/x.png"), ptr("https://cdn.example.com/x.png")},
		{ptr("http://cdn.example.com/x.png"), ptr("https://cdn.example.com/x.png")},
		{ptr(" https://cdn.example.com/x.png "), ptr("https://cdn.example.com/x.png")},
		{ptr("/relative/x.png"), ptr("/relative/x.png")},
	}

	for _, c := range cases {
		got := NormalizeImage(c.in)
		if (got == nil) != (c.want == nil) || (got != nil && *got != *c.want) {
			t.Errorf("NormalizeImage(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSeedStations_DuplicateStreamsInOneBatch(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	err := s.SeedStations(ctx, []Station{
		{Name: "First", Stream: "http://a/stream"},
		{Name: "Second", Stream: " http://a/stream "},
	})
	if err != nil {
		t.Fatalf("SeedStations: %v", err)
	}

	stations, _ := s.ListStations(ctx)
	if len(stations) != 1 || stations[0].Name != "Second" {
		t.Errorf("expected last duplicate to win, got %v", stations)
	}
}
