// Package dialogue runs tutoring turns: it grades the learner's reply to
// the last question, asks the model for the next part of the story and
// streams it back as events.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/abhisek/storyteller/internal/answer"
	"github.com/abhisek/storyteller/internal/answercache"
	"github.com/abhisek/storyteller/internal/config"
	"github.com/abhisek/storyteller/internal/extract"
	"github.com/abhisek/storyteller/internal/identity"
	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/logger"
	"github.com/abhisek/storyteller/internal/performance"
	"github.com/abhisek/storyteller/internal/prompt"
	"github.com/abhisek/storyteller/internal/store"
	"github.com/abhisek/storyteller/internal/thread"
)

// Turn outcomes.
const (
	OutcomeFirst     = "first"
	OutcomeCorrect   = "correct"
	OutcomeWrong     = "wrong"
	OutcomeContinue  = "continue"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"
)

// Token limits per call kind.
const (
	storyMaxTokens  = 1024
	hintMaxTokens   = 400
	repairMaxTokens = 2048
	graphMaxTokens  = 4096
)

const storyTemperature = 0.7

// maxNodesPerTurn bounds how many graph nodes a single turn walks.
const maxNodesPerTurn = 16

// Metrics receives turn and extraction outcomes. Nil disables recording.
type Metrics interface {
	TurnCompleted(mode, outcome string, elapsed time.Duration)
	ExtractionCompleted(method string)
}

// TurnRequest is one learner message.
type TurnRequest struct {
	ThreadID       string
	ConversationID int64
	Message        string
	UserID         string
	Model          string
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Threads       thread.Client
	Provider      llm.Provider // one-shot calls: repair and graph batches
	Conversations store.ConversationRepo
	Answers       answercache.Cache
	Graphs        store.GraphRepo
	Instructions  store.InstructionRepo
	Documents     store.DocumentRepo
	Assistants    store.AssistantRepo
	Grader        *answer.Grader
	Log           *logger.Logger
	Metrics       Metrics
}

// Engine is the dialogue state machine. It holds no per-thread state of
// its own; all of it lives in the store and the answer cache. Concurrent
// turns on the same thread are not serialized.
type Engine struct {
	cfg     config.EngineConfig
	deps    Deps
	tracker *performance.Tracker
	log     *logger.Logger
}

func New(cfg config.EngineConfig, deps Deps) *Engine {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Grader == nil {
		deps.Grader = answer.NewGrader(nil)
	}
	if cfg.Mode == "" {
		cfg.Mode = config.ModeLinear
	}
	if cfg.GraphBatch < 2 {
		cfg.GraphBatch = 6
	}
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		tracker: performance.NewTracker(deps.Conversations),
		log:     deps.Log.With("service", "DialogueEngine", "mode", cfg.Mode),
	}
}

// Mode returns "linear" or "graph".
func (e *Engine) Mode() string {
	return e.cfg.Mode
}

// turn is the state of one HandleTurn call.
type turn struct {
	req      TurnRequest
	threadID string
	conv     *store.Conversation
	pctx     prompt.Context
	wasWrong bool

	emit       func(Event) bool
	transcript strings.Builder
	recent     []string

	// exchanges sent on the thread, recorded once the turn is persisted.
	exchanges []thread.Exchange
}

// say streams text and records it in the transcript.
func (t *turn) say(text string) error {
	if text == "" {
		return nil
	}
	if !t.emit(Event{Type: EventContent, Content: text}) {
		return errAbandoned
	}
	t.transcript.WriteString(text)
	return nil
}

// paragraph is say with a blank line before it unless it opens the reply.
func (t *turn) paragraph(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if t.transcript.Len() > 0 {
		text = "\n\n" + text
	}
	return t.say(text)
}

func (t *turn) status(s string) error {
	if !t.emit(Event{Type: EventStatus, Status: s}) {
		return errAbandoned
	}
	return nil
}

// HandleTurn runs one turn and yields its events. The stream ends with
// exactly one done or error event unless the consumer stops early, in
// which case nothing further is persisted.
func (e *Engine) HandleTurn(ctx context.Context, req TurnRequest) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		start := time.Now()
		stopped := false
		t := &turn{req: req}
		t.emit = func(ev Event) bool {
			if stopped {
				return false
			}
			if !yield(ev) {
				stopped = true
			}
			return !stopped
		}

		outcome, err := e.run(ctx, t)
		switch {
		case stopped || errors.Is(err, errAbandoned):
			outcome = OutcomeAbandoned
		case err != nil:
			outcome = OutcomeError
		}
		if e.deps.Metrics != nil {
			e.deps.Metrics.TurnCompleted(e.cfg.Mode, outcome, time.Since(start))
		}

		switch {
		case stopped || errors.Is(err, errAbandoned):
			e.log.Info("turn abandoned", "thread_id", t.threadID)
		case err != nil:
			e.log.Error("turn failed", "thread_id", t.threadID, "error", err)
			t.emit(Event{Type: EventError, Message: describe(err)})
		default:
			wasWrong := t.wasWrong
			var convID int64
			if t.conv != nil {
				convID = t.conv.ID
			}
			t.emit(Event{Type: EventDone, WasWrong: &wasWrong, ConversationID: convID})
		}
	}
}

// run converts panics into errors so the stream always terminates.
func (e *Engine) run(ctx context.Context, t *turn) (outcome string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn panicked: %v", r)
		}
	}()

	if t.req.UserID == "" {
		return "", identity.ErrAuthenticationRequired
	}
	if strings.TrimSpace(t.req.Message) == "" {
		return "", errEmptyMessage
	}

	if e.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TurnTimeout)
		defer cancel()
	}

	if err := e.resolve(ctx, t); err != nil {
		return "", err
	}
	ctx = llm.WithThread(ctx, t.req.UserID, t.threadID)
	if _, err := e.deps.Conversations.AppendTurn(ctx, store.Turn{
		ConversationID: t.conv.ID,
		Role:           store.RoleUser,
		Content:        t.req.Message,
	}); err != nil {
		return "", fmt.Errorf("record user turn: %w", err)
	}
	if err := e.loadContext(ctx, t); err != nil {
		return "", err
	}

	if e.cfg.Mode == config.ModeGraph {
		return e.graphTurn(ctx, t)
	}
	return e.linearTurn(ctx, t)
}

var errEmptyMessage = errors.New("empty message")

// resolve finds or creates the thread and conversation for the turn.
func (e *Engine) resolve(ctx context.Context, t *turn) error {
	conversations := e.deps.Conversations
	t.threadID = t.req.ThreadID

	if t.req.ConversationID != 0 {
		conv, err := conversations.Get(ctx, t.req.ConversationID)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		if conv != nil {
			if conv.UserID != t.req.UserID {
				return ErrNotOwner
			}
			if t.threadID == "" || t.threadID == conv.ThreadID {
				t.conv = conv
				t.threadID = conv.ThreadID
			}
		}
	}

	if t.threadID == "" {
		assistantID, err := e.deps.Assistants.ForUser(ctx, t.req.UserID)
		if err != nil {
			return fmt.Errorf("look up assistant: %w", err)
		}
		threadID, err := e.deps.Threads.CreateThread(ctx, assistantID)
		if err != nil {
			return &UpstreamError{Stage: "create thread", Err: err}
		}
		t.threadID = threadID
		if !t.emit(Event{Type: EventThreadID, ThreadID: threadID}) {
			return errAbandoned
		}
	}

	if t.conv == nil {
		conv, err := conversations.ByThread(ctx, t.threadID)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		if conv != nil && conv.UserID != t.req.UserID {
			return ErrNotOwner
		}
		t.conv = conv
	}
	if t.conv == nil {
		id, err := conversations.Create(ctx, t.req.UserID, t.threadID)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		conv, err := conversations.Get(ctx, id)
		if err != nil || conv == nil {
			return fmt.Errorf("load created conversation %d: %w", id, errors.Join(err, store.ErrNotFound))
		}
		t.conv = conv
	}
	return nil
}

// loadContext gathers instructions, documents and the performance
// snapshot every prompt may draw on.
func (e *Engine) loadContext(ctx context.Context, t *turn) error {
	var pctx prompt.Context
	if e.deps.Instructions != nil {
		ins, err := e.deps.Instructions.Active(ctx)
		if err != nil {
			return fmt.Errorf("load instructions: %w", err)
		}
		for _, in := range ins {
			pctx.Instructions = append(pctx.Instructions, prompt.Instruction{Name: in.Name, Value: in.Value})
		}
	}
	if e.deps.Documents != nil {
		docs, err := e.deps.Documents.Active(ctx)
		if err != nil {
			return fmt.Errorf("load documents: %w", err)
		}
		for _, d := range docs {
			pctx.Documents = append(pctx.Documents, prompt.Document{Title: d.Title, Summary: d.Summary})
		}
	}
	t.pctx = pctx
	return e.refreshPerformance(ctx, t)
}

func (e *Engine) refreshPerformance(ctx context.Context, t *turn) error {
	snap, err := e.tracker.Snapshot(ctx, t.conv.ID)
	if err != nil {
		return err
	}
	t.pctx.Performance = snap
	return nil
}

// grade records the verdict on the learner's last turn.
func (e *Engine) grade(ctx context.Context, t *turn, question, expected string) (bool, error) {
	verdict, err := e.deps.Grader.Grade(ctx, question, expected, t.req.Message)
	if err != nil {
		return false, &UpstreamError{Stage: "answer validation", Err: err}
	}
	e.log.Debug("graded answer", "thread_id", t.threadID, "correct", verdict.Correct, "method", string(verdict.Method))

	if err := e.deps.Conversations.GradeLatestUserTurn(ctx, t.conv.ID, verdict.Correct); err != nil {
		return false, fmt.Errorf("grade user turn: %w", err)
	}
	if !verdict.Correct {
		t.wasWrong = true
		if err := e.deps.Conversations.MarkWrong(ctx, t.conv.ID); err != nil {
			return false, fmt.Errorf("mark conversation wrong: %w", err)
		}
	}
	return verdict.Correct, e.refreshPerformance(ctx, t)
}

// finish persists the assistant turn once all of its content was sent,
// then adds the turn's exchanges to the thread history.
func (e *Engine) finish(ctx context.Context, t *turn, difficulty string) error {
	if _, err := e.deps.Conversations.AppendTurn(ctx, store.Turn{
		ConversationID: t.conv.ID,
		Role:           store.RoleAssistant,
		Content:        t.transcript.String(),
		Difficulty:     difficulty,
	}); err != nil {
		return fmt.Errorf("record assistant turn: %w", err)
	}
	if err := e.deps.Conversations.Touch(ctx, t.conv.ID); err != nil {
		return err
	}
	if len(t.exchanges) > 0 {
		if err := e.deps.Threads.Record(ctx, t.threadID, t.exchanges...); err != nil {
			return fmt.Errorf("record thread history: %w", err)
		}
	}
	return nil
}

func (e *Engine) observeExtraction(method string) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.ExtractionCompleted(method)
	}
}

// repairer asks the model to fix a reply that should have had shape.
func (e *Engine) repairer(shape, model string) extract.RepairFunc {
	return func(ctx context.Context, broken string) (string, error) {
		ctx = llm.WithPurpose(ctx, "json-repair")
		resp, err := e.deps.Provider.Generate(ctx, llm.Request{
			System: prompt.RepairSystem,
			Messages: []llm.Message{
				{Role: llm.RoleUser, Content: prompt.Repair(broken, shape)},
			},
			Model:     model,
			MaxTokens: repairMaxTokens,
		})
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
}

func (e *Engine) model(requested string) string {
	if requested != "" {
		return requested
	}
	return e.cfg.Model
}

func describe(err error) string {
	switch {
	case errors.Is(err, identity.ErrAuthenticationRequired):
		return "Please sign in to continue the story."
	case errors.Is(err, ErrNotOwner):
		return "This story belongs to someone else."
	case errors.Is(err, errEmptyMessage):
		return "Please type a message."
	}
	var up *UpstreamError
	if errors.As(err, &up) || errors.Is(err, context.DeadlineExceeded) {
		return llm.Describe(err)
	}
	return "Something went wrong. Please try again."
}
