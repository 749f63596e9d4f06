package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/storyteller/internal/extract"
	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/prompt"
	"github.com/abhisek/storyteller/internal/store"
	"github.com/abhisek/storyteller/internal/thread"
)

// placeholderQuestion is asked when the model's reply carried no usable
// question. Its expected answer is empty, so any reply moves the story on.
const placeholderQuestion = "What do you think happens next?"

// storyReply is a question-bearing reply after extraction.
type storyReply struct {
	Story      string
	Question   string
	Expected   string
	Hint       string
	Difficulty string
}

// linearTurn is one turn of the linear story: the story is a flat run of
// story/question pairs and the answer cache holds the open question.
func (e *Engine) linearTurn(ctx context.Context, t *turn) (string, error) {
	cached, err := e.deps.Answers.Get(ctx, t.threadID)
	if err != nil {
		return "", fmt.Errorf("load expected answer: %w", err)
	}

	if cached == nil {
		prior, err := e.lastAssistantTurn(ctx, t)
		if err != nil {
			return "", err
		}
		if prior == nil {
			p, err := prompt.Initial(t.pctx, t.req.Message)
			if err != nil {
				return "", err
			}
			return OutcomeFirst, e.tellStory(ctx, t, p, prompt.DifficultyEasy)
		}
		// The story is running but its open question is gone, for example
		// after the cache entry expired. Move on with a new question.
		e.log.Warn("expected answer missing for a running conversation, asking a new question",
			"thread_id", t.threadID, "conversation_id", t.conv.ID)
		p := prompt.Resume(t.pctx, prior.Difficulty, t.req.Message)
		return OutcomeContinue, e.tellStory(ctx, t, p, prior.Difficulty)
	}

	correct, err := e.grade(ctx, t, cached.Question, cached.Answer)
	if err != nil {
		return "", err
	}
	prev := prompt.Previous{
		Question:   cached.Question,
		Answer:     cached.Answer,
		Hint:       cached.Hint,
		Difficulty: cached.Difficulty,
	}
	if correct {
		p := prompt.AfterCorrect(t.pctx, prev, t.req.Message)
		return OutcomeCorrect, e.tellStory(ctx, t, p, cached.Difficulty)
	}
	return OutcomeWrong, e.retell(ctx, t, prev)
}

// tellStory streams a new story part, caches its question and records it.
// prevDifficulty is used when the model names none.
func (e *Engine) tellStory(ctx context.Context, t *turn, p, prevDifficulty string) error {
	ctx = llm.WithPurpose(ctx, "story-turn")

	fs := extract.NewFieldStreamer("story")
	raw, err := e.send(ctx, t, p, storyMaxTokens, func(delta string) error {
		return t.say(fs.Write(delta))
	})
	if err != nil {
		return err
	}

	pipeline := extract.Pipeline{
		Shape:  extract.StoryShape,
		Repair: e.repairer(prompt.StoryShape(), e.model(t.req.Model)),
	}
	res, err := pipeline.Run(ctx, raw)
	if err != nil {
		return &UpstreamError{Stage: "repair", Err: err}
	}
	e.observeExtraction(string(res.Method))

	var reply storyReply
	if res.Fallback {
		e.log.Warn("story reply unusable, falling back to narrative",
			"thread_id", t.threadID, "error", res.Err)
		reply = storyReply{Story: strings.TrimSpace(raw), Question: placeholderQuestion}
		if fs.Found() {
			reply.Story = fs.Emitted()
		}
	} else {
		reply = parseStoryReply(res.Value)
	}
	if reply.Difficulty == "" {
		reply.Difficulty = orDefault(prevDifficulty, prompt.DifficultyEasy)
	}

	rest := reply.Story
	if fs.Emitted() != "" {
		rest = fs.Remainder(reply.Story)
	}
	if err := t.say(rest); err != nil {
		return err
	}
	if err := t.paragraph(reply.Question); err != nil {
		return err
	}

	if err := e.deps.Answers.Put(ctx, store.ExpectedAnswer{
		ThreadID:   t.threadID,
		Question:   reply.Question,
		Answer:     reply.Expected,
		Hint:       reply.Hint,
		Difficulty: reply.Difficulty,
	}); err != nil {
		return fmt.Errorf("cache expected answer: %w", err)
	}
	return e.finish(ctx, t, reply.Difficulty)
}

// retell answers a wrong reply: a short in-story encouragement from the
// model, then the hint and the same question again. The cached answer
// stays in place.
func (e *Engine) retell(ctx context.Context, t *turn, prev prompt.Previous) error {
	ctx = llm.WithPurpose(ctx, "story-hint")

	p := prompt.AfterIncorrect(t.pctx, prev, t.req.Message)
	if _, err := e.send(ctx, t, p, hintMaxTokens, t.say); err != nil {
		return err
	}
	if prev.Hint != "" {
		if err := t.paragraph("Hint: " + prev.Hint); err != nil {
			return err
		}
	}
	if err := t.paragraph(prev.Question); err != nil {
		return err
	}
	return e.finish(ctx, t, prev.Difficulty)
}

// send streams a message on the turn's thread, handing each delta to
// onDelta, and returns the complete reply text.
func (e *Engine) send(ctx context.Context, t *turn, content string, maxTokens int, onDelta func(string) error) (string, error) {
	var (
		text     strings.Builder
		complete string
		done     bool
	)
	chunks := e.deps.Threads.SendMessage(ctx, t.threadID, thread.SendRequest{
		Content:     content,
		System:      prompt.System(),
		Model:       e.model(t.req.Model),
		Stream:      true,
		MaxTokens:   maxTokens,
		Temperature: storyTemperature,
		Deferred:    true,
	})
	for chunk, err := range chunks {
		if err != nil {
			return "", &UpstreamError{Stage: "generation", Err: err}
		}
		if chunk.Type == thread.MessageComplete {
			complete, done = chunk.Content, true
			break
		}
		text.WriteString(chunk.Content)
		if err := onDelta(chunk.Content); err != nil {
			return "", err
		}
	}
	if !done {
		complete = text.String()
	}
	if strings.TrimSpace(complete) == "" {
		return "", &UpstreamError{Stage: "generation", Err: errEmptyReply}
	}
	t.exchanges = append(t.exchanges, thread.Exchange{User: content, Reply: complete})
	return complete, nil
}

// lastAssistantTurn is the latest assistant turn of the conversation, or
// nil before the first reply.
func (e *Engine) lastAssistantTurn(ctx context.Context, t *turn) (*store.Turn, error) {
	turns, err := e.deps.Conversations.Turns(ctx, t.conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == store.RoleAssistant {
			return &turns[i], nil
		}
	}
	return nil, nil
}

var errEmptyReply = errors.New("model returned an empty reply")

func parseStoryReply(obj map[string]any) storyReply {
	return storyReply{
		Story:      stringField(obj, "story"),
		Question:   strings.TrimSpace(stringField(obj, "question")),
		Expected:   strings.TrimSpace(stringField(obj, "expected_answer")),
		Hint:       strings.TrimSpace(stringField(obj, "hint")),
		Difficulty: difficultyLabel(stringField(obj, "difficulty")),
	}
}

// stringField reads a string or number field.
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprint(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// difficultyLabel keeps known labels and drops anything else.
func difficultyLabel(s string) string {
	switch d := strings.ToLower(strings.TrimSpace(s)); d {
	case prompt.DifficultyEasy, prompt.DifficultyMedium, prompt.DifficultyHard:
		return d
	default:
		return ""
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
