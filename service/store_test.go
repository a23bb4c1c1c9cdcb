package service_test

import (
	"testing"

	"github.com/lumeo-app/lumeo/domain"
	"github.com/lumeo-app/lumeo/service"
)

func TestStore_ViewsAreCopies(t *testing.T) {
	s := service.NewStore()
	s.ReplaceFeed(seedPosts())

	view, _ := s.Post("p1")
	view.Caption = "tampered"
	view.LikerIDs["intruder"] = struct{}{}

	fresh, _ := s.Post("p1")
	if fresh.Caption != "Beautiful scenery!" || fresh.LikedBy("intruder") {
		t.Fatalf("store state leaked through a view: %+v", fresh)
	}
}

func TestStore_RestoreAfterClearIsNoop(t *testing.T) {
	s := service.NewStore()
	s.ReplaceFeed(seedPosts())

	before, ok := s.UpdatePost("p1", func(p *domain.Post) {
		p.LikerIDs["u1"] = struct{}{}
	})
	if !ok {
		t.Fatal("update failed")
	}

	s.Clear()
	s.RestorePost(before)

	if _, ok := s.Post("p1"); ok {
		t.Fatal("restore must not resurrect a cleared post")
	}
	if got := len(s.Feed()); got != 0 {
		t.Fatalf("expected empty feed, got %d", got)
	}
}

func TestStore_ReplaceCommentGoneIsNoop(t *testing.T) {
	s := service.NewStore()
	s.ReplaceFeed(seedPosts())

	replaced := s.ReplaceComment("p1", "local-gone", domain.Comment{ID: "c5"})
	if replaced {
		t.Fatal("expected no-op for an absent provisional record")
	}
	post, _ := s.Post("p1")
	if len(post.Comments) != 1 || post.Comments[0].ID != "c1" {
		t.Fatalf("existing comments must be untouched: %+v", post.Comments)
	}
}

func TestStore_SubscribeObservesChanges(t *testing.T) {
	s := service.NewStore()
	var events int
	s.Subscribe(func() { events++ })

	s.ReplaceFeed(seedPosts())
	s.UpdatePost("p1", func(p *domain.Post) { p.Caption = "edited" })
	s.SetFollow("u2", true)
	s.Clear()

	if events != 4 {
		t.Fatalf("expected 4 change events, got %d", events)
	}
}
