package prompt

import (
	"fmt"
	"strings"
)

// ValidationSystem is the system prompt for semantic answer checks.
const ValidationSystem = `You grade a single answer from a young learner. Decide only whether the learner's answer means the same thing as the expected answer in the context of the question. Ignore spelling, capitalization and extra words. Reply with the JSON object {"correct": true} or {"correct": false} and nothing else.`

// Validation asks whether a student answer satisfies the expected answer.
func Validation(question, expected, studentAnswer string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Expected answer: %s\n", expected)
	fmt.Fprintf(&b, "Learner's answer: %s\n\n", studentAnswer)
	b.WriteString(`Is the learner's answer correct? Reply {"correct": true} or {"correct": false}.`)
	return b.String()
}

// RepairSystem is the system prompt for JSON repair requests.
const RepairSystem = `You fix malformed JSON. Return only the corrected JSON object with no explanation and no code fences.`

// Repair asks the model to return corrected JSON of the given shape.
func Repair(broken, shape string) string {
	var b strings.Builder
	b.WriteString("The following reply was supposed to be a JSON object but could not be parsed.\n")
	fmt.Fprintf(&b, "Required shape:\n%s\n\n", shape)
	b.WriteString("Broken reply:\n")
	b.WriteString(broken)
	b.WriteString("\n\nReturn ONLY the corrected JSON object. Keep all of the original content.")
	return b.String()
}

// GenerateMarker is the successor value meaning "generate more here".
const GenerateMarker = "GENERATE"

const graphShape = `{"<node id>": {"id": "<node id>", "kind": "narrative" | "challenge", "goal": string, "text": string, "question": string, "expected_answer": string, "hint": string, "difficulty": "easy" | "medium" | "hard", "next": string, "next_on_success": string, "next_on_failure": string}, ...}`

// GraphShape describes the JSON object graph batches must return.
func GraphShape() string {
	return graphShape
}

func graphRules(size int) string {
	return fmt.Sprintf(`Return ONLY a JSON object mapping node ids to nodes, of this shape:
%s

Rules for the nodes:
- Produce about %d nodes. The entry node has id "start".
- "narrative" nodes carry story text in "text" and continue via "next".
- "challenge" nodes carry story text, one "question", its "expected_answer", a "hint" and a "difficulty". They continue via "next_on_success" and "next_on_failure".
- "next_on_failure" points at a short narrative node that helps the learner, or is empty.
- Every successor is the id of another node in this object, %q to ask for more story later, or empty to end the story.
- Never reveal a challenge's answer in any text.`, graphShape, size, GenerateMarker)
}

// GraphBatch builds the prompt for the first batch of a story graph.
func GraphBatch(c Context, topic string, size int) string {
	var b strings.Builder
	b.WriteString("The learner wants to start a new branching story.\n")
	fmt.Fprintf(&b, "Learner's request: %s\n\n", strings.TrimSpace(topic))
	b.WriteString(scope(c.Documents))
	b.WriteString("\n\nThe first challenge should be \"easy\".\n\n")
	b.WriteString(graphRules(size))
	return withInstructions(b.String(), c.Instructions)
}

// Expansion describes where a story graph ran out of content.
type Expansion struct {
	// Recent is the story text leading up to the expansion point.
	Recent []string

	// Outcome is how the learner got here: "correct", "continue" or "ended".
	Outcome string

	// Difficulty is the last challenge difficulty.
	Difficulty string
}

// GraphExpansion builds the prompt for a batch that continues a graph.
func GraphExpansion(c Context, e Expansion, size int) string {
	var b strings.Builder
	switch e.Outcome {
	case "correct":
		b.WriteString("The learner just answered a challenge correctly. Continue the story from here.\n")
		fmt.Fprintf(&b, "Previous difficulty: %s. Suggested next difficulty: %s.\n",
			orDefault(e.Difficulty, DifficultyEasy), NextDifficulty(e.Difficulty))
	case "ended":
		b.WriteString("The previous story arc has ended. Begin a new arc with the same characters.\n")
	default:
		b.WriteString("Continue the story from here.\n")
	}
	fmt.Fprintf(&b, "Performance so far: %s\n\n", c.Performance.Summary())

	if len(e.Recent) > 0 {
		b.WriteString("Story so far (most recent last):\n")
		for _, t := range e.Recent {
			fmt.Fprintf(&b, "> %s\n", t)
		}
		b.WriteString("\n")
	}

	b.WriteString(scope(c.Documents))
	b.WriteString("\n\n")
	b.WriteString(graphRules(size))
	return withInstructions(b.String(), c.Instructions)
}
