package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/storyteller/internal/extract"
	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/prompt"
	"github.com/abhisek/storyteller/internal/store"
	"github.com/abhisek/storyteller/internal/story"
)

// recentContext is how many story paragraphs an expansion prompt sees.
const recentContext = 6

// graphTurn is one turn of the branching story. The graph is loaded,
// advanced and saved as a whole.
func (e *Engine) graphTurn(ctx context.Context, t *turn) (string, error) {
	g, err := e.loadGraph(ctx, t)
	if err != nil {
		return "", err
	}

	var outcome string
	difficulty := ""
	switch cur := g.CurrentNode(); {
	case g.Empty():
		outcome = OutcomeFirst
		entry, err := e.expand(ctx, t, g, prompt.GraphBatch(t.pctx, t.req.Message, e.cfg.GraphBatch))
		if err != nil {
			return "", err
		}
		difficulty, err = e.walk(ctx, t, g, entry)
		if err != nil {
			return "", err
		}

	case cur.Kind == story.KindChallenge:
		correct, err := e.grade(ctx, t, cur.Question, cur.ExpectedAnswer)
		if err != nil {
			return "", err
		}
		if !correct {
			if err := e.remediate(t, g, cur); err != nil {
				return "", err
			}
			if err := e.finish(ctx, t, cur.Difficulty); err != nil {
				return "", err
			}
			return OutcomeWrong, nil
		}
		outcome = OutcomeCorrect
		next, err := e.follow(ctx, t, g, cur, story.EdgeSuccess, OutcomeCorrect)
		if err != nil {
			return "", err
		}
		difficulty, err = e.walk(ctx, t, g, next)
		if err != nil {
			return "", err
		}

	default:
		// The last turn stopped on a narrative node; pick up after it.
		outcome = OutcomeContinue
		t.recent = append(t.recent, cur.Text)
		next, err := e.follow(ctx, t, g, cur, story.EdgeNext, OutcomeContinue)
		if err != nil {
			return "", err
		}
		difficulty, err = e.walk(ctx, t, g, next)
		if err != nil {
			return "", err
		}
	}

	if err := e.saveGraph(ctx, t, g); err != nil {
		return "", err
	}
	return outcome, e.finish(ctx, t, difficulty)
}

func (e *Engine) loadGraph(ctx context.Context, t *turn) (*story.Graph, error) {
	raw, err := e.deps.Graphs.Load(ctx, t.threadID)
	if err != nil {
		return nil, fmt.Errorf("load story graph: %w", err)
	}
	if raw == nil {
		return story.New(), nil
	}
	g, err := story.Unmarshal(raw)
	if err != nil {
		e.log.Warn("story graph unreadable, starting over", "thread_id", t.threadID, "error", err)
		return story.New(), nil
	}
	if g.Recover() {
		e.log.Warn("story graph pointer named a missing node, reset to start",
			"thread_id", t.threadID, "start", g.Start())
	}
	return g, nil
}

func (e *Engine) saveGraph(ctx context.Context, t *turn, g *story.Graph) error {
	data, err := g.Marshal()
	if err != nil {
		return fmt.Errorf("encode story graph: %w", err)
	}
	if err := e.deps.Graphs.Save(ctx, t.threadID, data); err != nil {
		return fmt.Errorf("save story graph: %w", err)
	}
	return nil
}

// walk shows nodes from id onward until a challenge is asked, the story
// ends or the per-turn limit is reached. It leaves the pointer on the last
// node shown and returns the difficulty of the challenge asked, if any.
func (e *Engine) walk(ctx context.Context, t *turn, g *story.Graph, id string) (string, error) {
	for range maxNodesPerTurn {
		if id == "" {
			return "", nil
		}
		n := g.Node(id)
		if n == nil {
			return "", fmt.Errorf("story graph: node %q vanished", id)
		}
		g.Current = id
		if err := t.paragraph(n.Text); err != nil {
			return "", err
		}
		t.recent = append(t.recent, n.Text)

		if n.Kind == story.KindChallenge {
			return n.Difficulty, e.ask(ctx, t, n)
		}

		next, err := e.follow(ctx, t, g, n, story.EdgeNext, OutcomeContinue)
		if err != nil {
			return "", err
		}
		id = next
	}
	return "", nil
}

// ask shows a challenge's question and caches its answer.
func (e *Engine) ask(ctx context.Context, t *turn, n *story.Node) error {
	question := n.Question
	if strings.TrimSpace(question) == "" {
		question = placeholderQuestion
	}
	if err := t.paragraph(question); err != nil {
		return err
	}
	if err := e.deps.Answers.Put(ctx, store.ExpectedAnswer{
		ThreadID:   t.threadID,
		Question:   question,
		Answer:     n.ExpectedAnswer,
		Hint:       n.Hint,
		Difficulty: n.Difficulty,
	}); err != nil {
		return fmt.Errorf("cache expected answer: %w", err)
	}
	return nil
}

// follow resolves edge e of n, generating and linking a new batch when
// the edge asks for more story or ends it. The story never ends for the
// learner: an ended arc starts a new one.
func (e *Engine) follow(ctx context.Context, t *turn, g *story.Graph, n *story.Node, edge story.Edge, outcome string) (string, error) {
	next, ok := g.Resolve(n.ID, edge)
	if ok && next != "" {
		return next, nil
	}
	if ok {
		outcome = "ended"
	}

	p := prompt.GraphExpansion(t.pctx, prompt.Expansion{
		Recent:     lastN(t.recent, recentContext),
		Outcome:    outcome,
		Difficulty: lastDifficulty(g, n),
	}, e.cfg.GraphBatch)
	entry, err := e.expand(ctx, t, g, p)
	if err != nil {
		return "", err
	}
	if err := g.Link(n.ID, edge, entry); err != nil {
		return "", err
	}
	return entry, nil
}

// expand generates a batch from prompt p, appends it and returns its entry
// node. An unusable reply becomes a single open challenge carrying the
// raw text.
func (e *Engine) expand(ctx context.Context, t *turn, g *story.Graph, p string) (string, error) {
	if err := t.status(StatusGenerating); err != nil {
		return "", err
	}
	ctx = llm.WithPurpose(ctx, "graph-expansion")
	model := e.model(t.req.Model)

	resp, err := e.deps.Provider.Generate(ctx, llm.Request{
		System:      prompt.System(),
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: p}},
		Model:       model,
		MaxTokens:   graphMaxTokens,
		Temperature: storyTemperature,
	})
	if err != nil {
		return "", &UpstreamError{Stage: "graph expansion", Err: err}
	}
	raw := resp.Text()

	pipeline := extract.Pipeline{
		Shape:  extract.GraphShape,
		Repair: e.repairer(prompt.GraphShape(), model),
	}
	res, err := pipeline.Run(ctx, raw)
	if err != nil {
		return "", &UpstreamError{Stage: "repair", Err: err}
	}

	var nodes []*story.Node
	if !res.Fallback {
		nodes, err = story.ParseBatch(res.Value)
		if err != nil {
			res.Fallback, res.Err, res.Method = true, err, extract.MethodFallback
		}
	}
	e.observeExtraction(string(res.Method))
	if res.Fallback {
		e.log.Warn("story batch unusable, falling back to narrative",
			"thread_id", t.threadID, "error", res.Err)
		nodes = []*story.Node{{
			ID:            "start",
			Kind:          story.KindChallenge,
			Text:          strings.TrimSpace(raw),
			Question:      placeholderQuestion,
			NextOnSuccess: story.Generate,
		}}
	}

	entry, err := g.AppendBatch(nodes)
	if err != nil {
		return "", fmt.Errorf("append story batch: %w", err)
	}
	return entry, nil
}

// remediate answers a wrong reply in the graph: the hint, the narrative
// nodes along the failure edge that already exist, then the same
// question. Nothing is generated and the pointer stays on the challenge.
func (e *Engine) remediate(t *turn, g *story.Graph, cur *story.Node) error {
	if cur.Hint != "" {
		if err := t.paragraph("Hint: " + cur.Hint); err != nil {
			return err
		}
	}
	id, ok := g.Resolve(cur.ID, story.EdgeFailure)
	for range maxNodesPerTurn {
		if !ok || id == "" || id == cur.ID {
			break
		}
		n := g.Node(id)
		if n == nil || n.Kind != story.KindNarrative {
			break
		}
		if err := t.paragraph(n.Text); err != nil {
			return err
		}
		id, ok = g.Resolve(id, story.EdgeNext)
	}
	question := cur.Question
	if strings.TrimSpace(question) == "" {
		question = placeholderQuestion
	}
	return t.paragraph(question)
}

// lastDifficulty is n's difficulty, or that of the latest challenge.
func lastDifficulty(g *story.Graph, n *story.Node) string {
	if n.Difficulty != "" {
		return n.Difficulty
	}
	for i := len(g.Order) - 1; i >= 0; i-- {
		if c := g.Node(g.Order[i]); c != nil && c.Kind == story.KindChallenge && c.Difficulty != "" {
			return c.Difficulty
		}
	}
	return ""
}

func lastN(s []string, n int) []string {
	var out []string
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
