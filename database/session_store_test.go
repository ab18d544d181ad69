package database

import (
	"path/filepath"
	"testing"

	"vizchat/agent"
)

func openTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := OpenSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSnapshot(id string) agent.SessionSnapshot {
	return agent.SessionSnapshot{
		SessionID: id,
		Dataset:   []agent.Row{{"Region": "East", "Sales": "100"}},
		Headers:   []string{"Region", "Sales"},
		Profiles: []agent.ColumnProfile{
			{Name: "Region", Type: agent.ColumnTypeCategorical, UniqueValues: 1},
		},
		Cards: []agent.AnalysisCard{
			{
				ID: "card-1",
				Plan: agent.AnalysisPlan{
					ChartType: "bar", Aggregation: "sum",
					GroupByColumn: "Region", ValueColumn: "Sales",
				},
				Rows: []agent.AggregatedRow{{"Region": "East", "Sales": 100.0}},
			},
		},
		History: []agent.ChatMessage{
			{ID: "m1", Role: "user", Content: "hello", Timestamp: 1},
		},
	}
}

func TestSessionStore_SaveAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveSnapshot(sampleSnapshot("s1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := store.LoadSnapshot("s1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.SessionID != "s1" {
		t.Errorf("SessionID = %q", got.SessionID)
	}
	if len(got.Dataset) != 1 || got.Dataset[0]["Region"] != "East" {
		t.Errorf("Dataset = %v", got.Dataset)
	}
	if len(got.Cards) != 1 || got.Cards[0].Plan.GroupByColumn != "Region" {
		t.Errorf("Cards = %+v", got.Cards)
	}
	if len(got.History) != 1 || got.History[0].Content != "hello" {
		t.Errorf("History = %+v", got.History)
	}
}

func TestSessionStore_SaveIsUpsert(t *testing.T) {
	store := openTestStore(t)

	first := sampleSnapshot("s1")
	if err := store.SaveSnapshot(first); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	second := sampleSnapshot("s1")
	second.History = append(second.History, agent.ChatMessage{ID: "m2", Role: "assistant", Content: "hi", Timestamp: 2})
	if err := store.SaveSnapshot(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.LoadSnapshot("s1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got.History) != 2 {
		t.Errorf("expected the updated snapshot, got %d messages", len(got.History))
	}

	ids, err := store.ListSessions()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("upsert must not duplicate sessions: %v", ids)
	}
}

func TestSessionStore_LoadMissing(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.LoadSnapshot("nope"); err == nil {
		t.Error("missing session must error")
	}
}

func TestSessionStore_LatestSnapshot(t *testing.T) {
	store := openTestStore(t)

	empty, err := store.LatestSnapshot()
	if err != nil {
		t.Fatalf("latest on empty store: %v", err)
	}
	if empty != nil {
		t.Errorf("expected nil on empty store, got %+v", empty)
	}

	if err := store.SaveSnapshot(sampleSnapshot("s1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.LatestSnapshot()
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if got == nil || got.SessionID != "s1" {
		t.Errorf("latest = %+v", got)
	}
}
