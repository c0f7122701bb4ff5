package pubfront

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/eringen/pubfront/pager"
	"github.com/eringen/pubfront/richtext"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
}

func TestLoadListingEmpty(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.LoadListing(); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadListing on empty store = %v, want ErrNotFound", err)
	}
}

func TestSaveAndLoadListing(t *testing.T) {
	s := setupTestStore(t)

	date := time.Date(2021, 3, 25, 19, 25, 28, 0, time.UTC)
	page := pager.Page[PostSummary]{
		Items: []PostSummary{
			{UID: "b", Title: "B", Subtitle: "second", Author: "Ana", FirstPublicationDate: date},
			{UID: "a", Title: "A", Subtitle: "first", Author: "Rui", FirstPublicationDate: date.Add(-time.Hour)},
		},
		Next: "https://repo.cdn.example/api/v2/documents/search?page=2",
	}
	if err := s.SaveListing(page); err != nil {
		t.Fatalf("SaveListing failed: %v", err)
	}

	got, err := s.LoadListing()
	if err != nil {
		t.Fatalf("LoadListing failed: %v", err)
	}
	if got.Next != page.Next {
		t.Errorf("Next = %q, want %q", got.Next, page.Next)
	}
	if len(got.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(got.Items))
	}
	if got.Items[0].UID != "b" || got.Items[1].UID != "a" {
		t.Errorf("order = [%s %s], want [b a]", got.Items[0].UID, got.Items[1].UID)
	}
	if !got.Items[0].FirstPublicationDate.Equal(date) {
		t.Errorf("date = %v, want %v", got.Items[0].FirstPublicationDate, date)
	}
	if got.Items[1].Author != "Rui" || got.Items[1].Subtitle != "first" {
		t.Errorf("item = %+v", got.Items[1])
	}
}

func TestSaveListingReplaces(t *testing.T) {
	s := setupTestStore(t)

	first := pager.Page[PostSummary]{Items: []PostSummary{{UID: "x"}, {UID: "y"}, {UID: "z"}}, Next: "n1"}
	if err := s.SaveListing(first); err != nil {
		t.Fatalf("SaveListing failed: %v", err)
	}
	second := pager.Page[PostSummary]{Items: []PostSummary{{UID: "w"}}}
	if err := s.SaveListing(second); err != nil {
		t.Fatalf("SaveListing failed: %v", err)
	}

	got, err := s.LoadListing()
	if err != nil {
		t.Fatalf("LoadListing failed: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].UID != "w" {
		t.Errorf("Items = %+v, want only w", got.Items)
	}
	if got.Next != "" {
		t.Errorf("Next = %q, want empty", got.Next)
	}
}

func TestSaveAndGetPost(t *testing.T) {
	s := setupTestStore(t)

	post := Post{
		UID:                  "hello-world",
		Title:                "Hello",
		Author:               "Ana",
		BannerURL:            "https://images.example/banner.png",
		FirstPublicationDate: time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC),
		LastPublicationDate:  time.Date(2021, 3, 20, 10, 0, 0, 0, time.UTC),
		Content: []ContentSection{
			{Heading: "Intro", Body: richtext.Blocks{{Type: "paragraph", Text: "Lorem ipsum", Spans: []richtext.Span{{Start: 0, End: 5, Type: "strong"}}}}},
		},
	}
	if err := s.SavePost(post); err != nil {
		t.Fatalf("SavePost failed: %v", err)
	}

	got, err := s.GetPost("hello-world")
	if err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}
	if got.Title != post.Title || got.Author != post.Author || got.BannerURL != post.BannerURL {
		t.Errorf("GetPost = %+v", got)
	}
	if !got.LastPublicationDate.Equal(post.LastPublicationDate) {
		t.Errorf("LastPublicationDate = %v, want %v", got.LastPublicationDate, post.LastPublicationDate)
	}
	if len(got.Content) != 1 || got.Content[0].Heading != "Intro" {
		t.Fatalf("Content = %+v", got.Content)
	}
	body := got.Content[0].Body
	if len(body) != 1 || body[0].Text != "Lorem ipsum" || len(body[0].Spans) != 1 {
		t.Errorf("Body = %+v", body)
	}
}

func TestGetPostNotFound(t *testing.T) {
	s := setupTestStore(t)
	if _, err := s.GetPost("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPost missing = %v, want ErrNotFound", err)
	}
}

func TestListPostUIDs(t *testing.T) {
	s := setupTestStore(t)

	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, uid := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 48 * time.Hour, 24 * time.Hour}
		if err := s.SavePost(Post{UID: uid, Title: uid, FirstPublicationDate: base.Add(offsets[i])}); err != nil {
			t.Fatalf("SavePost(%s) failed: %v", uid, err)
		}
	}

	uids, err := s.ListPostUIDs()
	if err != nil {
		t.Fatalf("ListPostUIDs failed: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(uids) != len(want) {
		t.Fatalf("ListPostUIDs = %v, want %v", uids, want)
	}
	for i := range want {
		if uids[i] != want[i] {
			t.Errorf("ListPostUIDs[%d] = %q, want %q", i, uids[i], want[i])
		}
	}
}
