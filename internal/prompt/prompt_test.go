package prompt

import (
	"strings"
	"testing"

	"github.com/abhisek/storyteller/internal/performance"
)

func TestInitial_MinimalContext(t *testing.T) {
	msg, err := Initial(Context{}, "  teach me subtraction ")
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}

	if !strings.Contains(msg, "Learner's request: teach me subtraction\n") {
		t.Error("missing trimmed topic")
	}
	if !strings.Contains(msg, "The scope is the topic the learner named.") {
		t.Error("missing topic scope when no documents are active")
	}
	if !strings.Contains(msg, `Start at "easy" difficulty.`) {
		t.Error("missing easy start")
	}
	if !strings.Contains(msg, StoryShape()) {
		t.Error("missing JSON shape")
	}
	if !strings.HasSuffix(msg, "\n\nTeacher instructions:\n") {
		t.Errorf("instruction block must be present with an empty body, got suffix %q", msg[len(msg)-40:])
	}
}

func TestInitial_DocumentsAndInstructions(t *testing.T) {
	c := Context{
		Documents: []Document{
			{Title: "Subtraction within 20", Summary: "Taking away with objects"},
			{Title: "Number bonds"},
		},
		Instructions: []Instruction{
			{Name: "tone", Value: "use animals"},
			{Name: "length", Value: "under 120 words"},
		},
	}
	msg, err := Initial(c, "subtraction")
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}

	if !strings.Contains(msg, "- Subtraction within 20: Taking away with objects\n- Number bonds") {
		t.Error("missing document scope")
	}
	if !strings.HasSuffix(msg, "Teacher instructions:\n- tone: use animals\n- length: under 120 words") {
		t.Error("instructions must be appended verbatim as the final block")
	}
}

func TestInstructionBlockKeepsStructure(t *testing.T) {
	with := AfterIncorrect(Context{Instructions: []Instruction{{Name: "a", Value: "b"}}}, Previous{Question: "q"}, "x")
	without := AfterIncorrect(Context{}, Previous{Question: "q"}, "x")

	if strings.TrimSuffix(with, "- a: b") != without {
		t.Error("prompts with and without instructions should differ only in the block body")
	}
}

func TestAfterCorrect(t *testing.T) {
	c := Context{Performance: performance.Snapshot{Total: 2, Correct: 2, AccuracyPct: 100, CorrectStreak: 2}}
	msg := AfterCorrect(c, Previous{Question: "How many geese?", Difficulty: DifficultyMedium}, "3")

	for _, want := range []string{
		`The learner answered "3" to the question "How many geese?". That is correct.`,
		"Previous difficulty: medium",
		"Suggested next difficulty: hard",
		"2 answered, 2 correct",
		StoryShape(),
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestResume(t *testing.T) {
	msg := Resume(Context{}, DifficultyMedium, " seven ")

	for _, want := range []string{
		`The learner's latest message: "seven"`,
		"Current difficulty: medium",
		StoryShape(),
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(msg, "start a new story") {
		t.Error("resume must not restart the story")
	}
}

func TestAfterIncorrect_NoJSON(t *testing.T) {
	msg := AfterIncorrect(Context{}, Previous{Question: "How many geese?", Hint: "count the wings"}, "seven")

	if !strings.Contains(msg, "Hint you may build on: count the wings") {
		t.Error("missing hint")
	}
	if strings.Contains(msg, StoryShape()) {
		t.Error("wrong-answer prompt must not request the JSON shape")
	}
	if !strings.Contains(msg, "Do NOT reveal the answer.") {
		t.Error("missing answer guard")
	}
}

func TestNextDifficulty(t *testing.T) {
	tests := map[string]string{
		"":               DifficultyMedium,
		DifficultyEasy:   DifficultyMedium,
		DifficultyMedium: DifficultyHard,
		DifficultyHard:   DifficultyHard,
	}
	for in, want := range tests {
		if got := NextDifficulty(in); got != want {
			t.Errorf("NextDifficulty(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidation(t *testing.T) {
	msg := Validation("What animal?", "blue whale", "the big blue one")
	if !strings.Contains(msg, "Expected answer: blue whale") || !strings.Contains(msg, "Learner's answer: the big blue one") {
		t.Errorf("unexpected validation prompt: %s", msg)
	}
	if !strings.Contains(msg, `{"correct": true}`) {
		t.Error("validation prompt must request a boolean JSON reply")
	}
}

func TestRepair(t *testing.T) {
	msg := Repair(`{"story": "x",}`, StoryShape())
	if !strings.Contains(msg, `{"story": "x",}`) {
		t.Error("missing broken text")
	}
	if !strings.Contains(msg, StoryShape()) {
		t.Error("missing shape")
	}
}

func TestGraphPrompts(t *testing.T) {
	batch := GraphBatch(Context{}, "fractions", 6)
	if !strings.Contains(batch, "Produce about 6 nodes") || !strings.Contains(batch, `"GENERATE"`) {
		t.Errorf("unexpected batch prompt: %s", batch)
	}

	exp := GraphExpansion(Context{}, Expansion{
		Outcome:    "correct",
		Difficulty: DifficultyEasy,
		Recent:     []string{"The fox found a bridge."},
	}, 4)
	for _, want := range []string{
		"answered a challenge correctly",
		"Suggested next difficulty: medium",
		"> The fox found a bridge.",
		"Produce about 4 nodes",
		"Teacher instructions:\n",
	} {
		if !strings.Contains(exp, want) {
			t.Errorf("expansion prompt missing %q", want)
		}
	}
}
