package query

import (
	"sort"
	"time"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/store"
)

// GraphMeta describes a graph snapshot
type GraphMeta struct {
	GeneratedAt time.Time `json:"generated_at"`
}

// GraphNode is one subject or object in the knowledge graph
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// GraphEdge is one knowledge record between two nodes
type GraphEdge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Predicate  string  `json:"predicate"`
	Confidence float64 `json:"confidence"`
}

// Graph is the knowledge graph model
type Graph struct {
	Meta  GraphMeta   `json:"meta"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Graph returns every non-deprecated record with full confidence as an edge.
// Nodes are deduplicated by id; the first record to mention a node names it.
func (r *Reader) Graph() (*Graph, error) {
	var out Graph
	err := r.cached("graph", []string{r.knowledgePath()}, &out, func() (any, error) {
		return r.buildGraph()
	})
	if err != nil {
		return nil, err
	}
	out.Meta.GeneratedAt = time.Now().UTC()
	return &out, nil
}

func (r *Reader) buildGraph() (*Graph, error) {
	knowledge, err := store.LoadKnowledgeStore(r.DataRoot)
	if err != nil {
		return nil, err
	}

	nodes := map[string]GraphNode{}
	edges := []GraphEdge{}
	addNode := func(n GraphNode) {
		if _, ok := nodes[n.ID]; !ok {
			nodes[n.ID] = n
		}
	}

	for _, rec := range knowledge.All() {
		if rec.Status == model.StatusDeprecated || rec.Confidence < 1.0 {
			continue
		}

		from := nodeID(rec.SubjectType, rec.SubjectValue)
		to := nodeID("object", rec.ObjectValue)
		addNode(GraphNode{ID: from, Label: rec.SubjectValue, Type: rec.SubjectType})
		addNode(GraphNode{ID: to, Label: rec.ObjectValue, Type: objectType(rec)})

		edges = append(edges, GraphEdge{
			From:       from,
			To:         to,
			Predicate:  rec.Predicate,
			Confidence: rec.Confidence,
		})
	}

	out := &Graph{Nodes: make([]GraphNode, 0, len(nodes)), Edges: edges}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, n)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	return out, nil
}
