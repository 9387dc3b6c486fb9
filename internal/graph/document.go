package graph

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// SchemaVersion identifies the persisted graph document layout.
const SchemaVersion = 1

// Document is the serialized form of a Graph: the node map, the primary
// edge lists keyed by source ticker, and bookkeeping metadata. The reverse
// adjacency index is never persisted; it is rebuilt from the primary lists
// on load so the two can not diverge.
type Document struct {
	Nodes    map[string]*Node   `json:"nodes"`
	Edges    map[string][]*Edge `json:"edges"`
	Metadata DocumentMetadata   `json:"metadata"`
}

// DocumentMetadata carries bookkeeping for a persisted graph document.
type DocumentMetadata struct {
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	NodeCount     int       `json:"node_count"`
	EdgeCount     int       `json:"edge_count"`
}

// Document snapshots the graph for persistence. The returned document owns
// deep copies and stays valid after further graph mutation.
func (g *Graph) Document() *Document {
	doc := &Document{
		Nodes: make(map[string]*Node, len(g.nodes)),
		Edges: make(map[string][]*Edge, len(g.out)),
		Metadata: DocumentMetadata{
			SchemaVersion: SchemaVersion,
			CreatedAt:     g.createdAt,
			UpdatedAt:     g.updatedAt,
			NodeCount:     len(g.nodes),
			EdgeCount:     g.EdgeCount(),
		},
	}

	for t, n := range g.nodes {
		doc.Nodes[t] = n.clone()
	}

	for s, edges := range g.out {
		if len(edges) == 0 {
			continue
		}

		out := make([]*Edge, 0, len(edges))
		for _, e := range edges {
			out = append(out, e.clone())
		}

		doc.Edges[s] = out
	}

	return doc
}

// FromDocument reconstructs a graph from its serialized form, rebuilding the
// reverse adjacency index from the primary edge lists. A nil document yields
// an empty graph. Malformed entries are normalized rather than rejected:
// unknown relationship types coerce to adjacent, duplicate triples keep the
// first occurrence, and missing endpoint nodes are created.
func FromDocument(doc *Document, logger *zerolog.Logger) *Graph {
	g := New(logger)
	if doc == nil {
		return g
	}

	if !doc.Metadata.CreatedAt.IsZero() {
		g.createdAt = doc.Metadata.CreatedAt
	}

	if !doc.Metadata.UpdatedAt.IsZero() {
		g.updatedAt = doc.Metadata.UpdatedAt
	}

	for t, n := range doc.Nodes {
		if n == nil {
			continue
		}

		c := n.clone()
		if c.Ticker == "" {
			c.Ticker = t
		}

		g.nodes[c.Ticker] = c
	}

	sources := make([]string, 0, len(doc.Edges))
	for s := range doc.Edges {
		sources = append(sources, s)
	}

	sort.Strings(sources)

	for _, src := range sources {
		for _, e := range doc.Edges[src] {
			if e == nil {
				continue
			}

			c := e.clone()
			if c.Source == "" {
				c.Source = src
			}

			if !ValidRelType(string(c.Type)) {
				g.logger.Warn().
					Str(logKeySource, c.Source).
					Str(logKeyTarget, c.Target).
					Str(logKeyRelType, string(c.Type)).
					Msg("unknown relationship type in document, coercing to adjacent")

				c.Type = RelAdjacent
			}

			if g.findEdge(c.Source, c.Target, c.Type) != nil {
				g.logger.Warn().
					Str(logKeySource, c.Source).
					Str(logKeyTarget, c.Target).
					Str(logKeyRelType, string(c.Type)).
					Msg("duplicate edge in document, keeping first")

				continue
			}

			c.Strength = clamp01(c.Strength)
			c.Freshness = clampFreshness(c.Freshness)

			g.insertEdge(c)
		}
	}

	return g
}
