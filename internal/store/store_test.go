package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestAutoMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	for _, table := range Tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table.Name,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table.Name, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := openTestStore(t)
	repo := s.Conversations()
	ctx := context.Background()

	missing, err := repo.ByThread(ctx, "thread-unknown")
	if err != nil {
		t.Fatalf("by thread (missing): %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil conversation for unknown thread")
	}

	id, err := repo.Create(ctx, "user-1", "thread-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := repo.ByThread(ctx, "thread-1")
	if err != nil {
		t.Fatalf("by thread: %v", err)
	}
	if c == nil || c.ID != id {
		t.Fatalf("by thread = %+v, want id %d", c, id)
	}
	if c.UserID != "user-1" || c.HasWrong {
		t.Errorf("unexpected conversation: %+v", c)
	}

	if err := repo.MarkWrong(ctx, id); err != nil {
		t.Fatalf("mark wrong: %v", err)
	}
	c, err = repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !c.HasWrong {
		t.Error("expected has_wrong to be set")
	}

	list, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list len = %d, want 1", len(list))
	}
}

func TestTurnsKeepInsertionOrderAndGrading(t *testing.T) {
	s := openTestStore(t)
	repo := s.Conversations()
	ctx := context.Background()

	convID, err := repo.Create(ctx, "user-1", "thread-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	turns := []Turn{
		{ConversationID: convID, Role: RoleUser, Content: "teach me subtraction"},
		{ConversationID: convID, Role: RoleAssistant, Content: "story 1", Difficulty: "easy"},
		{ConversationID: convID, Role: RoleUser, Content: "seven", Difficulty: "easy"},
	}
	for _, tr := range turns {
		if _, err := repo.AppendTurn(ctx, tr); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := repo.GradeLatestUserTurn(ctx, convID, false); err != nil {
		t.Fatalf("grade: %v", err)
	}

	got, err := repo.Turns(ctx, convID)
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("turns len = %d, want 3", len(got))
	}
	for i, tr := range got {
		if tr.Content != turns[i].Content {
			t.Errorf("turn[%d] = %q, want %q", i, tr.Content, turns[i].Content)
		}
	}
	if got[0].Correct != nil {
		t.Error("first user turn should stay ungraded")
	}
	if got[2].Correct == nil || *got[2].Correct {
		t.Errorf("latest user turn correct = %v, want false", got[2].Correct)
	}
}

func TestGradeLatestUserTurnWithoutTurns(t *testing.T) {
	s := openTestStore(t)
	repo := s.Conversations()
	ctx := context.Background()

	convID, err := repo.Create(ctx, "user-1", "thread-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	err = repo.GradeLatestUserTurn(ctx, convID, true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExpectedAnswerOverwrite(t *testing.T) {
	s := openTestStore(t)
	repo := s.ExpectedAnswers()
	ctx := context.Background()

	got, err := repo.Get(ctx, "thread-1")
	if err != nil {
		t.Fatalf("get (empty): %v", err)
	}
	if got != nil {
		t.Fatal("expected nil entry for new thread")
	}

	first := ExpectedAnswer{ThreadID: "thread-1", Question: "What is 12 - 3?", Answer: "9", Hint: "count on your fingers", Difficulty: "easy"}
	if err := repo.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := ExpectedAnswer{ThreadID: "thread-1", Question: "What is 20 - 6?", Answer: "14", Difficulty: "medium"}
	if err := repo.Put(ctx, second); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err = repo.Get(ctx, "thread-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Question != second.Question || got.Answer != "14" || got.Hint != "" || got.Difficulty != "medium" {
		t.Errorf("entry = %+v, want full replacement with %+v", got, second)
	}
}

func TestGraphSaveIsFullReplace(t *testing.T) {
	s := openTestStore(t)
	repo := s.Graphs()
	ctx := context.Background()

	if data, err := repo.Load(ctx, "thread-1"); err != nil || data != nil {
		t.Fatalf("load (empty) = %s, %v", data, err)
	}

	if err := repo.Save(ctx, "thread-1", []byte(`{"current":"a"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, "thread-1", []byte(`{"current":"b"}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := repo.Load(ctx, "thread-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"current":"b"}` {
		t.Errorf("data = %s", data)
	}
}

func TestInstructionsActiveFilter(t *testing.T) {
	s := openTestStore(t)
	repo := s.Instructions()
	ctx := context.Background()

	if err := repo.Upsert(ctx, "tone", "Be playful.", true); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, "length", "Keep stories short.", true); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.SetActive(ctx, "tone", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := repo.SetActive(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("set active missing = %v, want ErrNotFound", err)
	}

	active, err := repo.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Name != "length" {
		t.Errorf("active = %+v, want only length", active)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all len = %d, want 2", len(all))
	}
}

func TestDocumentsRequireIndexedAndActive(t *testing.T) {
	s := openTestStore(t)
	repo := s.Documents()
	ctx := context.Background()

	docs := []Document{
		{Title: "Subtraction basics", Summary: "Taking away", Indexed: true, Active: true},
		{Title: "Fractions", Indexed: false, Active: true},
		{Title: "Division", Indexed: true, Active: false},
	}
	for _, d := range docs {
		if err := repo.Upsert(ctx, d); err != nil {
			t.Fatalf("upsert %s: %v", d.Title, err)
		}
	}

	active, err := repo.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Title != "Subtraction basics" {
		t.Errorf("active = %+v", active)
	}
}

func TestAssistantForUserIsStable(t *testing.T) {
	s := openTestStore(t)
	repo := s.Assistants()
	ctx := context.Background()

	a1, err := repo.ForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	a2, err := repo.ForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if a1 == "" || a1 != a2 {
		t.Errorf("assistant ids %q, %q should match", a1, a2)
	}

	other, err := repo.ForUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if other == a1 {
		t.Error("different users should get different assistants")
	}
}

func TestThreadMessagesRecent(t *testing.T) {
	s := openTestStore(t)
	repo := s.Threads()
	ctx := context.Background()

	if ok, _ := repo.Exists(ctx, "t1"); ok {
		t.Fatal("thread should not exist yet")
	}
	if err := repo.Create(ctx, "t1", "asst_1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ok, err := repo.Exists(ctx, "t1"); err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}

	err := repo.Append(ctx, "t1",
		ThreadMessage{Role: RoleUser, Content: "m1"},
		ThreadMessage{Role: RoleAssistant, Content: "m2"},
		ThreadMessage{Role: RoleUser, Content: "m3"},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	recent, err := repo.Recent(ctx, "t1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "m2" || recent[1].Content != "m3" {
		t.Errorf("recent = %+v, want [m2 m3]", recent)
	}
}

func TestLLMEventsQueryAndUsage(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "mock", Model: "mock", Purpose: "story", InputTokens: 10, OutputTokens: 20, LatencyMs: 100, Success: true},
		{Provider: "mock", Model: "mock", Purpose: "story", ThreadID: "thread-a", UserID: "alice", InputTokens: 30, OutputTokens: 40, LatencyMs: 300, Success: true},
		{Provider: "mock", Model: "mock", Purpose: "validation", InputTokens: 5, OutputTokens: 1, LatencyMs: 50, Success: false, ErrorMessage: "boom"},
	}
	for _, e := range events {
		if err := repo.AppendLLMRequest(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := repo.QueryLLMEvents(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("query len = %d, want 2", len(got))
	}
	if got[0].Purpose != "validation" || got[0].Sequence <= got[1].Sequence {
		t.Errorf("events not newest first: %+v", got)
	}

	filtered, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "story"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered len = %d, want 2", len(filtered))
	}

	byThread, err := repo.QueryLLMEvents(ctx, QueryOpts{Thread: "thread-a"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byThread) != 1 || byThread[0].UserID != "alice" || byThread[0].InputTokens != 30 {
		t.Errorf("thread events = %+v", byThread)
	}

	one, err := repo.GetLLMEvent(ctx, got[0].ID)
	if err != nil || one == nil {
		t.Fatalf("get: %v, %v", one, err)
	}
	if one.ErrorMessage != "boom" {
		t.Errorf("error message = %q", one.ErrorMessage)
	}
	if none, err := repo.GetLLMEvent(ctx, 9999); err != nil || none != nil {
		t.Errorf("get missing = %v, %v", none, err)
	}

	usage, err := repo.LLMUsageByPurpose(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("usage len = %d, want 2", len(usage))
	}
	story := usage[0]
	if story.Purpose != "story" || story.Calls != 2 || story.InputTokens != 40 || story.AvgLatencyMs != 200 {
		t.Errorf("story usage = %+v", story)
	}

	byModel, err := repo.LLMUsageByModel(ctx)
	if err != nil {
		t.Fatalf("usage by model: %v", err)
	}
	if len(byModel) != 1 || byModel[0].Calls != 2 {
		t.Errorf("usage by model = %+v, want successful calls only", byModel)
	}
}
