// Package graph implements the decaying, weighted relationship graph between
// financial instruments. Edges are directed and typed; each (source, target,
// type) triple maps to at most one edge whose strength is a confidence score
// and whose freshness decays toward a floor until explicitly refreshed.
//
// The graph performs no I/O and no internal locking. Callers serialize
// concurrent mutation of a shared instance; persistence goes through
// Document and FromDocument.
package graph

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// RelType is the closed set of relationship types between instruments.
type RelType string

const (
	RelSupplier        RelType = "supplier"
	RelCustomer        RelType = "customer"
	RelCompetitor      RelType = "competitor"
	RelAdjacent        RelType = "adjacent"
	RelInfrastructure  RelType = "infrastructure"
	RelPicksAndShovels RelType = "picks_and_shovels"
)

// ValidRelType reports whether s is one of the closed relationship types.
func ValidRelType(s string) bool {
	switch RelType(s) {
	case RelSupplier, RelCustomer, RelCompetitor, RelAdjacent, RelInfrastructure, RelPicksAndShovels:
		return true
	}

	return false
}

// DefaultDecayRates holds the per-type daily freshness multipliers.
// Business-structure relations (supply chains, infrastructure) decay slower
// than market-structure ones (competitors, thematic adjacency).
var DefaultDecayRates = map[RelType]float64{
	RelSupplier:        0.996,
	RelCustomer:        0.995,
	RelInfrastructure:  0.994,
	RelPicksAndShovels: 0.993,
	RelCompetitor:      0.985,
	RelAdjacent:        0.98,
}

const (
	// FreshnessFloor is the minimum freshness an edge can decay to.
	FreshnessFloor = 0.1

	// DefaultSubgraphMinStrength is the usual strength cutoff for
	// neighborhood expansion.
	DefaultSubgraphMinStrength = 0.3

	// DefaultMaxPathDepth bounds FindPath when the caller passes no limit.
	DefaultMaxPathDepth = 4

	maxFreshness = 1.0
)

const (
	logKeySource  = "source"
	logKeyTarget  = "target"
	logKeyRelType = "rel_type"
)

// Direction selects which adjacency lists a neighbor query scans.
type Direction string

const (
	DirectionOut  Direction = "outgoing"
	DirectionIn   Direction = "incoming"
	DirectionBoth Direction = "both"
)

// NodeMeta is the metadata bag attached to a node. Merge semantics are
// last-write-wins per non-empty field.
type NodeMeta struct {
	CompanyName   string            `json:"company_name,omitempty"`
	MarketCapTier string            `json:"market_cap_tier,omitempty"`
	Themes        []string          `json:"themes,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

func (m *NodeMeta) merge(in *NodeMeta) {
	if in == nil {
		return
	}

	if in.CompanyName != "" {
		m.CompanyName = in.CompanyName
	}

	if in.MarketCapTier != "" {
		m.MarketCapTier = in.MarketCapTier
	}

	if len(in.Themes) > 0 {
		m.Themes = append([]string(nil), in.Themes...)
	}

	if len(in.Extra) > 0 {
		if m.Extra == nil {
			m.Extra = make(map[string]string, len(in.Extra))
		}

		for k, v := range in.Extra {
			m.Extra[k] = v
		}
	}
}

// Node is one instrument in the graph.
type Node struct {
	Ticker    string    `json:"ticker"`
	Meta      NodeMeta  `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Node) clone() *Node {
	c := *n
	c.Meta.Themes = append([]string(nil), n.Meta.Themes...)

	if n.Meta.Extra != nil {
		c.Meta.Extra = make(map[string]string, len(n.Meta.Extra))
		for k, v := range n.Meta.Extra {
			c.Meta.Extra[k] = v
		}
	}

	return &c
}

// Edge is one directed, typed relationship. Strength is the confidence the
// relationship exists; freshness decays with time and is reset only by an
// explicit refresh, never by a merge.
type Edge struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      RelType   `json:"type"`
	Strength  float64   `json:"strength"`
	Freshness float64   `json:"freshness"`
	SubTheme  string    `json:"sub_theme,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *Edge) clone() *Edge {
	c := *e
	c.Sources = append([]string(nil), e.Sources...)

	return &c
}

// EdgeAttrs carries the optional attributes of AddEdge.
type EdgeAttrs struct {
	SubTheme string
	Sources  []string
}

// Neighbor pairs a counterparty ticker with the edge that connects it.
type Neighbor struct {
	Ticker string
	Edge   *Edge
}

// NeighborQuery filters a neighbor scan. All conditions are ANDed; the zero
// value matches every edge in both directions.
type NeighborQuery struct {
	Type         RelType
	Direction    Direction
	MinStrength  float64
	MinFreshness float64
}

// Graph holds nodes plus a primary adjacency map (source to outgoing edges,
// insertion order) and a derived reverse index rebuilt on load.
type Graph struct {
	nodes map[string]*Node
	out   map[string][]*Edge
	in    map[string][]*Edge

	createdAt time.Time
	updatedAt time.Time

	logger *zerolog.Logger
}

// New creates an empty graph.
func New(logger *zerolog.Logger) *Graph {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	now := time.Now().UTC()

	return &Graph{
		nodes:     make(map[string]*Node),
		out:       make(map[string][]*Edge),
		in:        make(map[string][]*Edge),
		createdAt: now,
		updatedAt: now,
		logger:    logger,
	}
}

// AddNode upserts a node, merging metadata last-write-wins per field and
// refreshing the update timestamp. It always succeeds.
func (g *Graph) AddNode(ticker string, meta *NodeMeta) *Node {
	now := time.Now().UTC()

	n, ok := g.nodes[ticker]
	if !ok {
		n = &Node{Ticker: ticker, CreatedAt: now}
		g.nodes[ticker] = n
	}

	n.Meta.merge(meta)
	n.UpdatedAt = now
	g.updatedAt = now

	return n
}

// TagTheme records a theme membership on the node's metadata without
// touching the other fields.
func (g *Graph) TagTheme(ticker, themeID string) {
	n := g.AddNode(ticker, nil)

	for _, t := range n.Meta.Themes {
		if t == themeID {
			return
		}
	}

	n.Meta.Themes = append(n.Meta.Themes, themeID)
}

// Node returns the live node record for ticker.
func (g *Graph) Node(ticker string) (*Node, bool) {
	n, ok := g.nodes[ticker]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, edges := range g.out {
		count += len(edges)
	}

	return count
}

// Tickers returns every node ticker in lexical order.
func (g *Graph) Tickers() []string {
	out := make([]string, 0, len(g.nodes))
	for t := range g.nodes {
		out = append(out, t)
	}

	sort.Strings(out)

	return out
}

// AddEdge upserts the (source, target, type) edge. A new edge starts at full
// freshness; re-adding an existing triple merges instead of duplicating:
// strength takes the maximum, sources are unioned, and freshness is left
// untouched. Missing endpoint nodes are created. An unknown relationship
// type is coerced to adjacent.
func (g *Graph) AddEdge(source, target string, relType RelType, strength float64, attrs *EdgeAttrs) *Edge {
	if !ValidRelType(string(relType)) {
		g.logger.Warn().
			Str(logKeySource, source).
			Str(logKeyTarget, target).
			Str(logKeyRelType, string(relType)).
			Msg("unknown relationship type, coercing to adjacent")

		relType = RelAdjacent
	}

	g.AddNode(source, nil)
	g.AddNode(target, nil)

	now := time.Now().UTC()
	strength = clamp01(strength)

	if e := g.findEdge(source, target, relType); e != nil {
		if strength > e.Strength {
			e.Strength = strength
		}

		if attrs != nil {
			if attrs.SubTheme != "" {
				e.SubTheme = attrs.SubTheme
			}

			e.Sources = unionSources(e.Sources, attrs.Sources)
		}

		e.UpdatedAt = now
		g.updatedAt = now

		return e
	}

	e := &Edge{
		Source:    source,
		Target:    target,
		Type:      relType,
		Strength:  strength,
		Freshness: maxFreshness,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if attrs != nil {
		e.SubTheme = attrs.SubTheme
		e.Sources = unionSources(nil, attrs.Sources)
	}

	g.out[source] = append(g.out[source], e)
	g.in[target] = append(g.in[target], e)
	g.updatedAt = now

	return e
}

func (g *Graph) findEdge(source, target string, relType RelType) *Edge {
	for _, e := range g.out[source] {
		if e.Target == target && e.Type == relType {
			return e
		}
	}

	return nil
}

// Neighbors returns the (counterparty, edge) pairs around ticker that pass
// every filter, in adjacency insertion order. An unknown ticker yields an
// empty result.
func (g *Graph) Neighbors(ticker string, q NeighborQuery) []Neighbor {
	dir := q.Direction
	if dir == "" {
		dir = DirectionBoth
	}

	var out []Neighbor

	if dir == DirectionOut || dir == DirectionBoth {
		for _, e := range g.out[ticker] {
			if edgeMatches(e, q) {
				out = append(out, Neighbor{Ticker: e.Target, Edge: e})
			}
		}
	}

	if dir == DirectionIn || dir == DirectionBoth {
		for _, e := range g.in[ticker] {
			if edgeMatches(e, q) {
				out = append(out, Neighbor{Ticker: e.Source, Edge: e})
			}
		}
	}

	return out
}

func edgeMatches(e *Edge, q NeighborQuery) bool {
	if q.Type != "" && e.Type != q.Type {
		return false
	}

	return e.Strength >= q.MinStrength && e.Freshness >= q.MinFreshness
}

// Suppliers returns the counterparties that supply ticker, i.e. the sources
// of its incoming supplier edges.
func (g *Graph) Suppliers(ticker string) []Neighbor {
	return g.Neighbors(ticker, NeighborQuery{Type: RelSupplier, Direction: DirectionIn})
}

// Customers returns the counterparties that buy from ticker, i.e. the
// sources of its incoming customer edges.
func (g *Graph) Customers(ticker string) []Neighbor {
	return g.Neighbors(ticker, NeighborQuery{Type: RelCustomer, Direction: DirectionIn})
}

// Competitors returns competitor counterparties in either direction; the
// edge is stored directionally but queried as symmetric.
func (g *Graph) Competitors(ticker string) []Neighbor {
	return g.Neighbors(ticker, NeighborQuery{Type: RelCompetitor, Direction: DirectionBoth})
}

// DecayFreshness applies one multiplicative decay pass to every edge:
// freshness *= rate^days, floored at FreshnessFloor. A non-positive rate
// selects each edge type's default. Repeated passes commute with a single
// pass over the summed days.
func (g *Graph) DecayFreshness(rate float64, days float64) {
	if days <= 0 {
		days = 1
	}

	for _, edges := range g.out {
		for _, e := range edges {
			r := rate
			if r <= 0 {
				r = DefaultDecayRates[e.Type]
			}

			e.Freshness = clampFreshness(e.Freshness * math.Pow(r, days))
		}
	}
}

// RefreshEdge resets freshness to full for the matching edge after
// re-verification, independent of strength. An empty relType matches every
// type between the pair. Reports whether any edge matched.
func (g *Graph) RefreshEdge(source, target string, relType RelType) bool {
	now := time.Now().UTC()
	refreshed := false

	for _, e := range g.out[source] {
		if e.Target != target {
			continue
		}

		if relType != "" && e.Type != relType {
			continue
		}

		e.Freshness = maxFreshness
		e.UpdatedAt = now
		refreshed = true
	}

	if refreshed {
		g.updatedAt = now
	}

	return refreshed
}

// StaleEdges returns the edges at or below the freshness threshold,
// least fresh first.
func (g *Graph) StaleEdges(threshold float64) []*Edge {
	var out []*Edge

	for _, e := range g.Edges() {
		if e.Freshness <= threshold {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Freshness < out[j].Freshness
	})

	return out
}

// StrongEdges returns the edges at or above the strength threshold,
// strongest first.
func (g *Graph) StrongEdges(threshold float64) []*Edge {
	var out []*Edge

	for _, e := range g.Edges() {
		if e.Strength >= threshold {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Strength > out[j].Strength
	})

	return out
}

// Edges returns every edge, grouped by source ticker in lexical order with
// insertion order preserved within a source.
func (g *Graph) Edges() []*Edge {
	sources := make([]string, 0, len(g.out))
	for s := range g.out {
		sources = append(sources, s)
	}

	sort.Strings(sources)

	var out []*Edge
	for _, s := range sources {
		out = append(out, g.out[s]...)
	}

	return out
}

// Merge combines another graph into this one. Nodes keep the newer-updated
// version unless overwrite is set, in which case the other graph's version
// wins. Edges missing here are copied losslessly; edges already present win
// untouched unless overwrite is set, in which case the usual add-edge merge
// rule applies (strength max, sources union, freshness untouched).
func (g *Graph) Merge(other *Graph, overwrite bool) {
	if other == nil {
		return
	}

	for _, ticker := range other.Tickers() {
		n := other.nodes[ticker]

		cur, ok := g.nodes[ticker]
		if !ok || overwrite || n.UpdatedAt.After(cur.UpdatedAt) {
			g.nodes[ticker] = n.clone()
		}
	}

	now := time.Now().UTC()

	for _, e := range other.Edges() {
		cur := g.findEdge(e.Source, e.Target, e.Type)
		if cur == nil {
			g.insertEdge(e.clone())
			continue
		}

		if !overwrite {
			continue
		}

		if e.Strength > cur.Strength {
			cur.Strength = e.Strength
		}

		if e.SubTheme != "" {
			cur.SubTheme = e.SubTheme
		}

		cur.Sources = unionSources(cur.Sources, e.Sources)
		cur.UpdatedAt = now
	}

	g.updatedAt = now
}

// insertEdge appends a pre-built edge to both indexes, creating endpoint
// nodes if the source graph lacked them.
func (g *Graph) insertEdge(e *Edge) {
	g.ensureNode(e.Source)
	g.ensureNode(e.Target)

	g.out[e.Source] = append(g.out[e.Source], e)
	g.in[e.Target] = append(g.in[e.Target], e)
}

func (g *Graph) ensureNode(ticker string) *Node {
	if n, ok := g.nodes[ticker]; ok {
		return n
	}

	now := time.Now().UTC()
	n := &Node{Ticker: ticker, CreatedAt: now, UpdatedAt: now}
	g.nodes[ticker] = n

	return n
}

func unionSources(existing, add []string) []string {
	for _, s := range add {
		found := false

		for _, have := range existing {
			if have == s {
				found = true
				break
			}
		}

		if !found {
			existing = append(existing, s)
		}
	}

	return existing
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

func clampFreshness(f float64) float64 {
	if f < FreshnessFloor {
		return FreshnessFloor
	}

	if f > maxFreshness {
		return maxFreshness
	}

	return f
}
