// Package performance derives a learner's standing in a conversation from
// its turn history. Nothing here is stored; snapshots are recomputed on
// every read.
package performance

import (
	"context"
	"fmt"
	"math"

	"github.com/abhisek/storyteller/internal/store"
)

// Snapshot summarizes graded answers in one conversation.
type Snapshot struct {
	Total         int            `json:"total"`
	Correct       int            `json:"correct"`
	Wrong         int            `json:"wrong"`
	AccuracyPct   float64        `json:"accuracy_pct"`
	CorrectStreak int            `json:"correct_streak"`
	WrongStreak   int            `json:"wrong_streak"`
	Difficulties  map[string]int `json:"difficulty_histogram"`
}

// FromTurns computes a snapshot from turns in insertion order. Only
// graded user turns count as answers; the difficulty histogram counts the
// labels on assistant turns.
func FromTurns(turns []store.Turn) Snapshot {
	s := Snapshot{Difficulties: make(map[string]int)}

	for _, t := range turns {
		if t.Role == store.RoleAssistant && t.Difficulty != "" {
			s.Difficulties[t.Difficulty]++
		}
		if t.Role != store.RoleUser || t.Correct == nil {
			continue
		}
		s.Total++
		if *t.Correct {
			s.Correct++
		} else {
			s.Wrong++
		}
	}
	if s.Total > 0 {
		s.AccuracyPct = math.Round(float64(s.Correct)*1000/float64(s.Total)) / 10
	}

	// Streaks run backwards from the most recent graded answer and stop at
	// the first answer that breaks them.
	var streakOf *bool
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.Role != store.RoleUser || t.Correct == nil {
			continue
		}
		if streakOf == nil {
			streakOf = t.Correct
		}
		if *t.Correct != *streakOf {
			break
		}
		if *t.Correct {
			s.CorrectStreak++
		} else {
			s.WrongStreak++
		}
	}
	return s
}

// Tracker computes snapshots from stored turns.
type Tracker struct {
	conversations store.ConversationRepo
}

func NewTracker(conversations store.ConversationRepo) *Tracker {
	return &Tracker{conversations: conversations}
}

// Snapshot reads the conversation's turns and summarizes them.
func (t *Tracker) Snapshot(ctx context.Context, conversationID int64) (Snapshot, error) {
	turns, err := t.conversations.Turns(ctx, conversationID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load turns: %w", err)
	}
	return FromTurns(turns), nil
}

// Summary renders the snapshot as one line for prompts.
func (s Snapshot) Summary() string {
	if s.Total == 0 {
		return "No answers graded yet."
	}
	return fmt.Sprintf("%d answered, %d correct, %d wrong (%.1f%% accuracy); current streak: %d correct, %d wrong.",
		s.Total, s.Correct, s.Wrong, s.AccuracyPct, s.CorrectStreak, s.WrongStreak)
}
