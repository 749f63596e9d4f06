// Package story holds the branching story graph: an append-only arena of
// nodes with a movable current position.
package story

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind classifies a node.
type Kind string

const (
	KindNarrative Kind = "narrative"
	KindChallenge Kind = "challenge"
)

// Generate as a successor means "generate more content here".
const Generate = "GENERATE"

// Edge names a successor reference of a node.
type Edge string

const (
	EdgeNext    Edge = "next"
	EdgeSuccess Edge = "next_on_success"
	EdgeFailure Edge = "next_on_failure"
)

// Node is one unit of story content. Nodes are immutable once appended.
type Node struct {
	ID             string `json:"id"`
	Kind           Kind   `json:"kind"`
	Goal           string `json:"goal,omitempty"`
	Text           string `json:"text,omitempty"`
	Question       string `json:"question,omitempty"`
	ExpectedAnswer string `json:"expected_answer,omitempty"`
	Hint           string `json:"hint,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
	Next           string `json:"next,omitempty"`
	NextOnSuccess  string `json:"next_on_success,omitempty"`
	NextOnFailure  string `json:"next_on_failure,omitempty"`
}

// Successor returns the raw reference stored on the node for edge.
func (n *Node) Successor(e Edge) string {
	switch e {
	case EdgeSuccess:
		return n.NextOnSuccess
	case EdgeFailure:
		return n.NextOnFailure
	default:
		return n.Next
	}
}

func (n *Node) setSuccessor(e Edge, id string) {
	switch e {
	case EdgeSuccess:
		n.NextOnSuccess = id
	case EdgeFailure:
		n.NextOnFailure = id
	default:
		n.Next = id
	}
}

// Graph is a conversation's story graph. Links records where edges that
// pointed at Generate were later resolved to, keyed "<node>#<edge>".
type Graph struct {
	Nodes   map[string]*Node  `json:"nodes"`
	Order   []string          `json:"order"`
	Current string            `json:"current"`
	Links   map[string]string `json:"links"`
	Batches int               `json:"batches"`
}

var (
	ErrDuplicateNode = errors.New("node already exists")
	ErrEmptyBatch    = errors.New("batch has no nodes")
)

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: map[string]*Node{}, Links: map[string]string{}}
}

// Unmarshal decodes a stored graph.
func Unmarshal(data []byte) (*Graph, error) {
	g := New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("decode story graph: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = map[string]*Node{}
	}
	if g.Links == nil {
		g.Links = map[string]string{}
	}
	return g, nil
}

// Marshal encodes the graph for storage.
func (g *Graph) Marshal() ([]byte, error) {
	return json.Marshal(g)
}

// Empty reports whether no batch has been appended.
func (g *Graph) Empty() bool {
	return len(g.Order) == 0
}

// Node returns the node with id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// CurrentNode returns the node at the current position, or nil.
func (g *Graph) CurrentNode() *Node {
	return g.Nodes[g.Current]
}

// Start returns the id of the first node of the first batch.
func (g *Graph) Start() string {
	if len(g.Order) == 0 {
		return ""
	}
	return g.Order[0]
}

// Recover resets a current position that names no node back to the start
// node. It reports whether a reset happened.
func (g *Graph) Recover() bool {
	if g.Empty() {
		return false
	}
	if _, ok := g.Nodes[g.Current]; ok {
		return false
	}
	g.Current = g.Start()
	return true
}

// Resolve follows edge from node id. It returns the successor id and
// whether it is usable: ok is false when the edge asks for generation or
// points at a node that does not exist. An empty id with ok set means the
// story ends here.
func (g *Graph) Resolve(id string, e Edge) (next string, ok bool) {
	if linked, found := g.Links[linkKey(id, e)]; found {
		return linked, true
	}
	n := g.Nodes[id]
	if n == nil {
		return "", false
	}
	ref := n.Successor(e)
	switch {
	case ref == "":
		return "", true
	case ref == Generate:
		return "", false
	}
	_, exists := g.Nodes[ref]
	return ref, exists
}

// Link resolves edge of node from to an appended node.
func (g *Graph) Link(from string, e Edge, to string) error {
	if _, ok := g.Nodes[to]; !ok {
		return fmt.Errorf("link %s#%s: unknown target %q", from, e, to)
	}
	g.Links[linkKey(from, e)] = to
	return nil
}

func linkKey(id string, e Edge) string {
	return id + "#" + string(e)
}

// AppendBatch adds a generated batch under a fresh namespace and returns
// the namespaced id of its entry node. References inside the batch are
// rewritten into the namespace; references to nodes that exist in neither
// the batch nor the graph become Generate.
func (g *Graph) AppendBatch(nodes []*Node) (string, error) {
	if len(nodes) == 0 {
		return "", ErrEmptyBatch
	}
	prefix := fmt.Sprintf("b%d.", g.Batches)

	local := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if local[n.ID] {
			return "", fmt.Errorf("%w: %q twice in batch", ErrDuplicateNode, n.ID)
		}
		local[n.ID] = true
	}
	for _, n := range nodes {
		if _, exists := g.Nodes[prefix+n.ID]; exists {
			return "", fmt.Errorf("%w: %q", ErrDuplicateNode, prefix+n.ID)
		}
	}

	rewrite := func(ref string) string {
		switch {
		case ref == "" || ref == Generate:
			return ref
		case local[ref]:
			return prefix + ref
		case g.Nodes[ref] != nil:
			return ref
		default:
			return Generate
		}
	}

	for _, n := range nodes {
		c := *n
		c.ID = prefix + n.ID
		if c.Kind != KindChallenge {
			c.Kind = KindNarrative
		}
		for _, e := range []Edge{EdgeNext, EdgeSuccess, EdgeFailure} {
			c.setSuccessor(e, rewrite(n.Successor(e)))
		}
		g.Nodes[c.ID] = &c
		g.Order = append(g.Order, c.ID)
	}
	g.Batches++
	return prefix + nodes[0].ID, nil
}

// scalarStrings renders number and boolean fields as text. Models often
// write answers and ids as bare numbers ("expected_answer": 7).
func scalarStrings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			out[k] = v.String()
		case bool:
			out[k] = strconv.FormatBool(v)
		default:
			out[k] = v
		}
	}
	return out
}

// ParseBatch turns an extracted graph object into nodes, entry first.
// The entry is the node with id "start"; failing that, the node no other
// node points at. Remaining nodes follow in breadth-first order from the
// entry, then by id.
func ParseBatch(obj map[string]any) ([]*Node, error) {
	byID := map[string]*Node{}
	for key, v := range obj {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		raw, err := json.Marshal(scalarStrings(m))
		if err != nil {
			return nil, err
		}
		var n Node
		if err := json.Unmarshal(raw, &n); err != nil {
			// Objects or arrays where text belongs make the node unusable.
			continue
		}
		if n.ID == "" {
			n.ID = key
		}
		n.ID = strings.TrimSpace(n.ID)
		if n.ID == "" || n.ID == Generate {
			continue
		}
		byID[n.ID] = &n
	}
	if len(byID) == 0 {
		return nil, ErrEmptyBatch
	}

	ids := slices.Sorted(maps.Keys(byID))
	entry := "start"
	if byID[entry] == nil {
		referenced := map[string]bool{}
		for _, n := range byID {
			for _, e := range []Edge{EdgeNext, EdgeSuccess, EdgeFailure} {
				referenced[n.Successor(e)] = true
			}
		}
		entry = ids[0]
		for _, id := range ids {
			if !referenced[id] {
				entry = id
				break
			}
		}
	}

	seen := map[string]bool{entry: true}
	order := []string{entry}
	for i := 0; i < len(order); i++ {
		n := byID[order[i]]
		for _, e := range []Edge{EdgeNext, EdgeSuccess, EdgeFailure} {
			ref := n.Successor(e)
			if byID[ref] != nil && !seen[ref] {
				seen[ref] = true
				order = append(order, ref)
			}
		}
	}
	order = append(order, slices.DeleteFunc(ids, func(id string) bool { return seen[id] })...)

	out := make([]*Node, len(order))
	for i, id := range order {
		out[i] = byID[id]
	}
	return out, nil
}
