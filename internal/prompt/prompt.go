// Package prompt builds the prompts sent to the story model. Every
// builder is a pure function of its inputs.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/abhisek/storyteller/internal/performance"
)

// Difficulty labels, easiest first.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Instruction is a teacher directive appended to every task prompt.
type Instruction struct {
	Name  string
	Value string
}

// Document is an uploaded lesson the story must stay within.
type Document struct {
	Title   string
	Summary string
}

// Context carries what every task prompt may draw on.
type Context struct {
	Instructions []Instruction
	Documents    []Document
	Performance  performance.Snapshot
}

// Previous is the question the learner just answered.
type Previous struct {
	Question   string
	Answer     string
	Hint       string
	Difficulty string
}

const systemPrompt = `You are a storyteller who teaches a young learner one narrow skill through a short, vivid story.

Rules:
- Stay within the scope of the uploaded lesson material. If there is none, stay within the topic the learner named.
- Every story ends with exactly one question that practices the skill.
- Never reveal the answer in the story or in the question.
- Keep language simple and encouraging.
- Use plain text. No markdown headings, no LaTeX.`

// storyShape is the JSON contract for question-bearing replies.
const storyShape = `{"story": string, "question": string, "expected_answer": string, "difficulty": "easy" | "medium" | "hard", "hint": string}`

const jsonOnly = `Respond with ONLY a JSON object of this exact shape and nothing else:
` + storyShape + `
Put the narrative in "story" and the single question in "question". The question must not appear inside "story".`

// System returns the system prompt shared by all story turns.
func System() string {
	return systemPrompt
}

// StoryShape describes the JSON object story turns must return.
func StoryShape() string {
	return storyShape
}

var initialTemplate = template.Must(template.New("initial").Parse(`The learner wants to start a new story.
Learner's request: {{.Topic}}

{{.Scope}}

Start at "easy" difficulty. Ask exactly one question and do not reveal its answer.

{{.JSONOnly}}`))

// Initial builds the prompt for the first story of a thread.
func Initial(c Context, topic string) (string, error) {
	var buf bytes.Buffer
	err := initialTemplate.Execute(&buf, struct {
		Topic    string
		Scope    string
		JSONOnly string
	}{
		Topic:    strings.TrimSpace(topic),
		Scope:    scope(c.Documents),
		JSONOnly: jsonOnly,
	})
	if err != nil {
		return "", fmt.Errorf("render initial prompt: %w", err)
	}
	return withInstructions(buf.String(), c.Instructions), nil
}

// AfterCorrect builds the prompt that continues the story after a
// correct answer. The raise in difficulty is a suggestion; the model's
// chosen difficulty is kept.
func AfterCorrect(c Context, prev Previous, studentAnswer string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The learner answered %q to the question %q. That is correct.\n", studentAnswer, prev.Question)
	b.WriteString("Congratulate them briefly inside the story, then continue it.\n\n")

	fmt.Fprintf(&b, "Previous difficulty: %s\n", orDefault(prev.Difficulty, DifficultyEasy))
	fmt.Fprintf(&b, "Suggested next difficulty: %s\n", NextDifficulty(prev.Difficulty))
	fmt.Fprintf(&b, "Performance so far: %s\n", c.Performance.Summary())
	b.WriteString("Consider raising the difficulty if the learner is doing well, but stay within scope.\n\n")

	b.WriteString(scope(c.Documents))
	b.WriteString("\n\nWrite the next part of the story ending in one new question.\n\n")
	b.WriteString(jsonOnly)

	return withInstructions(b.String(), c.Instructions)
}

// Resume continues a running story whose open question was lost. The
// learner's message cannot be graded, so the story simply moves on.
func Resume(c Context, difficulty, message string) string {
	var b strings.Builder

	b.WriteString("The story is already under way, but the last question can no longer be checked.\n")
	fmt.Fprintf(&b, "The learner's latest message: %q\n", strings.TrimSpace(message))
	b.WriteString("Acknowledge it briefly inside the story without saying whether it was right, then continue the story.\n\n")

	fmt.Fprintf(&b, "Current difficulty: %s\n", orDefault(difficulty, DifficultyEasy))
	fmt.Fprintf(&b, "Performance so far: %s\n\n", c.Performance.Summary())

	b.WriteString(scope(c.Documents))
	b.WriteString("\n\nWrite the next part of the story ending in one new question.\n\n")
	b.WriteString(jsonOnly)

	return withInstructions(b.String(), c.Instructions)
}

// AfterIncorrect builds the prompt for a wrong answer. The reply is plain
// text: a short encouragement that points toward the hint without giving
// the answer. The question itself is repeated by the caller.
func AfterIncorrect(c Context, prev Previous, studentAnswer string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The learner answered %q to the question %q. That is not correct.\n", studentAnswer, prev.Question)
	if prev.Hint != "" {
		fmt.Fprintf(&b, "Hint you may build on: %s\n", prev.Hint)
	}
	fmt.Fprintf(&b, "Performance so far: %s\n\n", c.Performance.Summary())
	b.WriteString("In two or three sentences, stay in the story and gently encourage the learner to try again.\n")
	b.WriteString("Do NOT reveal the answer. Do NOT ask a new question. Reply with plain text, not JSON.")

	return withInstructions(b.String(), c.Instructions)
}

// NextDifficulty suggests the label one step above current.
func NextDifficulty(current string) string {
	switch current {
	case DifficultyEasy, "":
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

func scope(docs []Document) string {
	if len(docs) == 0 {
		return "Lesson material: none uploaded. The scope is the topic the learner named."
	}
	var b strings.Builder
	b.WriteString("Lesson material (stay within this scope):\n")
	for _, d := range docs {
		if d.Summary == "" {
			fmt.Fprintf(&b, "- %s\n", d.Title)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", d.Title, d.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// withInstructions appends the teacher instruction block. The block is
// always present so prompts keep one structure; with no instructions its
// body is empty.
func withInstructions(prompt string, instructions []Instruction) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nTeacher instructions:\n")
	b.WriteString(Instructions(instructions))
	return b.String()
}

// Instructions renders instructions as "- name: value" lines.
func Instructions(instructions []Instruction) string {
	var b strings.Builder
	for _, in := range instructions {
		fmt.Fprintf(&b, "- %s: %s\n", in.Name, in.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
