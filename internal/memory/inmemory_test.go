package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestAppendTurnCapsHistoryFIFO(t *testing.T) {
	s := NewInMemoryStore(5)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		err := s.AppendTurn(ctx, Turn{
			UserID:  "u1",
			Role:    RoleUser,
			Content: fmt.Sprintf("msg-%d", i),
		})
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := s.Recent(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("len(turns) = %d, want 5", len(turns))
	}
	// Oldest entries evicted first: only msg-7..msg-11 survive.
	if turns[0].Content != "msg-7" || turns[4].Content != "msg-11" {
		t.Fatalf("unexpected window: first=%q last=%q", turns[0].Content, turns[4].Content)
	}
}

func TestRecentLimitsToTail(t *testing.T) {
	s := NewInMemoryStore(20)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_ = s.AppendTurn(ctx, Turn{UserID: "u1", Role: RoleAssistant, Content: fmt.Sprintf("r-%d", i)})
	}

	turns, err := s.Recent(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	if turns[0].Content != "r-7" || turns[2].Content != "r-9" {
		t.Fatalf("unexpected tail: %+v", turns)
	}
}

func TestRecentUnknownUser(t *testing.T) {
	s := NewInMemoryStore(20)
	turns, err := s.Recent(context.Background(), "nobody", 6)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns for unknown user, got %d", len(turns))
	}
}

func TestAppendTurnAssignsIDAndTimestamp(t *testing.T) {
	s := NewInMemoryStore(20)
	ctx := context.Background()
	if err := s.AppendTurn(ctx, Turn{UserID: "u1", Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	turns, _ := s.Recent(ctx, "u1", 1)
	if turns[0].ID == "" {
		t.Fatalf("turn ID should be assigned")
	}
	if turns[0].CreatedAt.IsZero() {
		t.Fatalf("turn timestamp should be assigned")
	}
}

func TestRenderContext(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "book tomorrow 2 PM"},
		{Role: RoleAssistant, Content: "Checking availability."},
	}
	got := RenderContext(turns)
	want := "Recent conversation:\nuser: book tomorrow 2 PM\nassistant: Checking availability.\n"
	if got != want {
		t.Fatalf("RenderContext() = %q, want %q", got, want)
	}
	if RenderContext(nil) != "" {
		t.Fatalf("RenderContext(nil) should be empty")
	}
}

func TestConcurrentUsersIndependent(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 4; u++ {
		userID := fmt.Sprintf("user-%d", u)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = s.AppendTurn(ctx, Turn{UserID: userID, Role: RoleUser, Content: "x"})
			}
		}()
	}
	wg.Wait()

	for u := 0; u < 4; u++ {
		userID := fmt.Sprintf("user-%d", u)
		turns, err := s.Recent(ctx, userID, 0)
		if err != nil {
			t.Fatalf("Recent(%s) error = %v", userID, err)
		}
		if len(turns) != 10 {
			t.Fatalf("len(turns) for %s = %d, want 10", userID, len(turns))
		}
		if !strings.HasPrefix(turns[0].UserID, "user-") {
			t.Fatalf("unexpected user id %q", turns[0].UserID)
		}
	}
}
