// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gqlpilot/internal/wire"
)

func TestSession_StreamedTurn(t *testing.T) {
	s := New()

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, s.AppendUserTurn("find all friends of Bob"))
	require.NoError(t, s.BeginAssistantTurn())

	last, _ := s.Snapshot().Last()
	assert.True(t, last.Loading())

	for _, d := range []string{"MATCH", " (p", ")"} {
		require.NoError(t, s.ApplyDelta(d))
	}
	require.NoError(t, s.CompleteTurn())

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	last, _ = snap.Last()
	assert.Equal(t, "MATCH (p)", last.Content)
	assert.Equal(t, StatusDone, last.Status)
	assert.False(t, snap.Pending)

	doneCount := 0
	prevDone := false
	for _, sn := range snaps {
		l, _ := sn.Last()
		isDone := l.Role == wire.RoleAssistant && l.Status == StatusDone
		if isDone && !prevDone {
			doneCount++
		}
		prevDone = isDone
	}
	assert.Equal(t, 1, doneCount, "status must transition to done exactly once")
	assert.Len(t, snaps, 6)
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i].Version, snaps[i-1].Version)
	}

	assert.ErrorIs(t, s.CompleteTurn(), ErrNoPendingTurn)
}

func TestSession_DeltaConcatenationIsAssociative(t *testing.T) {
	splits := [][]string{
		{"a", "b", "c"},
		{"ab", "c"},
		{"a", "bc"},
		{"abc"},
	}
	for _, deltas := range splits {
		s := New()
		require.NoError(t, s.AppendUserTurn("q"))
		require.NoError(t, s.BeginAssistantTurn())
		for _, d := range deltas {
			require.NoError(t, s.ApplyDelta(d))
		}
		require.NoError(t, s.CompleteTurn())
		last, _ := s.Snapshot().Last()
		assert.Equal(t, "abc", last.Content, "deltas %q", deltas)
	}
}

func TestSession_SinglePendingTurn(t *testing.T) {
	s := New()
	require.NoError(t, s.AppendUserTurn("q"))
	require.NoError(t, s.BeginAssistantTurn())

	assert.ErrorIs(t, s.BeginAssistantTurn(), ErrTurnPending)
	assert.ErrorIs(t, s.AppendUserTurn("another"), ErrTurnPending)
	assert.ErrorIs(t, New().ApplyDelta("x"), ErrNoPendingTurn)
	assert.ErrorIs(t, s.AppendUserTurn("   "), ErrEmptyTurn)
}

func TestSession_BeginExchange(t *testing.T) {
	s := New()
	require.NoError(t, s.AppendUserTurn("earlier"))
	require.NoError(t, s.BeginAssistantTurn())
	require.NoError(t, s.ApplyDelta("answer"))
	require.NoError(t, s.CompleteTurn())

	history, err := s.BeginExchange("next")
	require.NoError(t, err)
	assert.Equal(t, []wire.Message{
		{Role: wire.RoleUser, Content: "earlier"},
		{Role: wire.RoleAssistant, Content: "answer"},
	}, history)

	_, err = s.BeginExchange("racing")
	assert.ErrorIs(t, err, ErrTurnPending)
	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 4, "a rejected exchange adds nothing")
	assert.Equal(t, "next", msgs[2].Content)
	assert.Equal(t, StatusPending, msgs[3].Status)

	_, err = New().BeginExchange("  ")
	assert.ErrorIs(t, err, ErrEmptyTurn)
}

func TestSession_FailTurnKeepsPartialText(t *testing.T) {
	s := New()
	require.NoError(t, s.AppendUserTurn("q"))
	require.NoError(t, s.BeginAssistantTurn())
	require.NoError(t, s.ApplyDelta("GO FROM"))
	require.NoError(t, s.FailTurn(errors.New("connection reset")))

	snap := s.Snapshot()
	last, _ := snap.Last()
	assert.False(t, snap.Pending)
	assert.Equal(t, StatusDone, last.Status)
	assert.Equal(t, "GO FROM", last.Content)
	assert.Equal(t, "connection reset", last.Error)
	assert.True(t, last.Failed())

	require.NoError(t, s.AppendUserTurn("next"), "a failed turn must not block the session")
}

func TestSession_History(t *testing.T) {
	s := New()
	require.NoError(t, s.AppendUserTurn("first"))
	require.NoError(t, s.BeginAssistantTurn())
	require.NoError(t, s.FailTurn(nil))
	require.NoError(t, s.AppendUserTurn("second"))
	require.NoError(t, s.BeginAssistantTurn())
	require.NoError(t, s.ApplyDelta("answer"))
	require.NoError(t, s.CompleteTurn())
	require.NoError(t, s.AppendUserTurn("third"))
	require.NoError(t, s.BeginAssistantTurn())
	require.NoError(t, s.ApplyDelta("partial"))

	assert.Equal(t, []wire.Message{
		{Role: wire.RoleUser, Content: "first"},
		{Role: wire.RoleUser, Content: "second"},
		{Role: wire.RoleAssistant, Content: "answer"},
		{Role: wire.RoleUser, Content: "third"},
	}, s.History())
}

func TestSession_ResetAndRestore(t *testing.T) {
	s := New()
	oldID := s.ID()
	require.NoError(t, s.AppendUserTurn("q"))
	require.NoError(t, s.BeginAssistantTurn())
	s.Reset()

	assert.Empty(t, s.Snapshot().Messages)
	assert.NotEqual(t, oldID, s.ID())
	require.NoError(t, s.BeginAssistantTurn(), "reset clears the pending turn")

	s.Restore("saved", []Message{
		{Role: wire.RoleUser, Content: "q"},
		{Role: wire.RoleAssistant, Content: "a", Status: StatusPending},
	})
	snap := s.Snapshot()
	assert.Equal(t, "saved", s.ID())
	assert.False(t, snap.Pending)
	assert.Equal(t, StatusDone, snap.Messages[1].Status)
}

func TestSession_Unsubscribe(t *testing.T) {
	s := New()
	calls := 0
	cancel := s.Subscribe(func(Snapshot) { calls++ })
	require.NoError(t, s.AppendUserTurn("one"))
	cancel()
	require.NoError(t, s.BeginAssistantTurn())
	assert.Equal(t, 1, calls)
}

func TestSession_ConcurrentReaders(t *testing.T) {
	s := New()
	require.NoError(t, s.AppendUserTurn("q"))
	require.NoError(t, s.BeginAssistantTurn())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
				_ = s.History()
			}
		}()
	}
	for i := 0; i < 100; i++ {
		require.NoError(t, s.ApplyDelta("x"))
	}
	wg.Wait()

	last, _ := s.Snapshot().Last()
	assert.Equal(t, strings.Repeat("x", 100), last.Content)
}

// =============================================================================
// RENDERING
// =============================================================================

func TestSegments(t *testing.T) {
	content := "Here you go:\n```ngql\nGO FROM \"player100\" OVER follow;\n```\nand\n```cypher\nMATCH (v) RETURN v;\n```"
	got := Segments(content)
	require.Len(t, got, 4)
	assert.Equal(t, Segment{Kind: SegmentProse, Text: "Here you go:\n"}, got[0])
	assert.Equal(t, Segment{Kind: SegmentCode, Text: "GO FROM \"player100\" OVER follow;"}, got[1])
	assert.Equal(t, Segment{Kind: SegmentProse, Text: "\nand\n"}, got[2])
	assert.Equal(t, Segment{Kind: SegmentCode, Text: "MATCH (v) RETURN v;"}, got[3])
}

func TestSegments_Edges(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Segment
	}{
		{"empty", "", nil},
		{"prose only", "no code", []Segment{{SegmentProse, "no code"}}},
		{"bare fence", "```\nSHOW TAGS;\n```", []Segment{{SegmentCode, "SHOW TAGS;"}}},
		{"gql tag", "```gql\nSHOW HOSTS;```", []Segment{{SegmentCode, "SHOW HOSTS;"}}},
		{"unterminated", "```ngql\nGO FR", []Segment{{SegmentProse, "```ngql\nGO FR"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Segments(tt.content))
		})
	}
}

func TestRunInConsole(t *testing.T) {
	var ran []string
	console := ConsoleFunc(func(gql string) { ran = append(ran, gql) })

	done := Message{Role: wire.RoleAssistant, Status: StatusDone, Content: "```ngql\nSHOW TAGS;\n```\n```\nSHOW EDGES;\n```"}
	require.NoError(t, RunInConsole(console, done, 1))
	assert.Equal(t, []string{"SHOW EDGES;"}, ran)

	assert.ErrorIs(t, RunInConsole(console, done, 2), ErrNotRunnable)

	streaming := done
	streaming.Status = StatusPending
	assert.ErrorIs(t, RunInConsole(console, streaming, 0), ErrNotRunnable)
	assert.Empty(t, CodeSpans(streaming))
	assert.Len(t, ran, 1)

	question := Message{Role: wire.RoleUser, Content: "why does ```\nSHOW TAGS;\n``` fail?"}
	assert.Empty(t, CodeSpans(question))
	assert.ErrorIs(t, RunInConsole(console, question, 0), ErrNotRunnable)
}
