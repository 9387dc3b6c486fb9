package graph

// SubgraphResult is the neighborhood induced by a bounded breadth-first
// expansion: the visited nodes with their first-visit depths, the edges
// crossed during traversal, and a per-type and per-sub-theme summary.
type SubgraphResult struct {
	Center  string           `json:"center"`
	Nodes   map[string]*Node `json:"nodes"`
	Edges   []*Edge          `json:"edges"`
	Depths  map[string]int   `json:"depths"`
	Summary SubgraphSummary  `json:"summary"`
}

// SubgraphSummary groups the crossed edges by relationship type and
// sub-theme label.
type SubgraphSummary struct {
	ByType     map[RelType]int `json:"by_type"`
	BySubTheme map[string]int  `json:"by_sub_theme,omitempty"`
}

// Subgraph expands breadth-first around center up to depth hops, following
// edges in both directions. Each node is visited at most once, at the hop
// count of its first enqueue. Edges below minStrength or outside relTypes
// are not crossed; an empty relTypes imposes no type filter. An unknown
// center yields an empty result, not an error.
func (g *Graph) Subgraph(center string, depth int, relTypes []RelType, minStrength float64) *SubgraphResult {
	res := &SubgraphResult{
		Center: center,
		Nodes:  make(map[string]*Node),
		Depths: make(map[string]int),
		Summary: SubgraphSummary{
			ByType:     make(map[RelType]int),
			BySubTheme: make(map[string]int),
		},
	}

	if _, ok := g.nodes[center]; !ok {
		return res
	}

	allowed := relTypeSet(relTypes)

	type queued struct {
		ticker string
		depth  int
	}

	res.Nodes[center] = g.nodes[center]
	res.Depths[center] = 0

	queue := []queued{{ticker: center, depth: 0}}
	crossed := make(map[*Edge]struct{})

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= depth {
			continue
		}

		for _, nb := range g.Neighbors(cur.ticker, NeighborQuery{Direction: DirectionBoth, MinStrength: minStrength}) {
			e := nb.Edge

			if allowed != nil {
				if _, ok := allowed[e.Type]; !ok {
					continue
				}
			}

			if _, dup := crossed[e]; !dup {
				crossed[e] = struct{}{}
				res.Edges = append(res.Edges, e)
				res.Summary.ByType[e.Type]++

				if e.SubTheme != "" {
					res.Summary.BySubTheme[e.SubTheme]++
				}
			}

			if _, visited := res.Depths[nb.Ticker]; visited {
				continue
			}

			res.Depths[nb.Ticker] = cur.depth + 1
			res.Nodes[nb.Ticker] = g.nodes[nb.Ticker]
			queue = append(queue, queued{ticker: nb.Ticker, depth: cur.depth + 1})
		}
	}

	return res
}

// Path is a hop-ordered route between two tickers. Edges holds one entry per
// hop; a same-ticker path has none.
type Path struct {
	Tickers []string `json:"tickers"`
	Edges   []*Edge  `json:"edges,omitempty"`
}

// Hops returns the number of edges in the path.
func (p *Path) Hops() int {
	return len(p.Edges)
}

type pathHop struct {
	prev string
	edge *Edge
}

// FindPath returns the shortest path by hop count between source and
// target, following edges in either direction and optionally restricted to
// relTypes. It returns nil when either endpoint is unknown or no path exists
// within maxDepth hops; a non-positive maxDepth falls back to
// DefaultMaxPathDepth. When source equals target the path is that single
// node with no edges.
func (g *Graph) FindPath(source, target string, maxDepth int, relTypes []RelType) *Path {
	if _, ok := g.nodes[source]; !ok {
		return nil
	}

	if _, ok := g.nodes[target]; !ok {
		return nil
	}

	if source == target {
		return &Path{Tickers: []string{source}}
	}

	if maxDepth <= 0 {
		maxDepth = DefaultMaxPathDepth
	}

	allowed := relTypeSet(relTypes)

	prev := map[string]pathHop{source: {}}
	depths := map[string]int{source: 0}
	queue := []string{source}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if depths[cur] >= maxDepth {
			continue
		}

		for _, nb := range g.Neighbors(cur, NeighborQuery{Direction: DirectionBoth}) {
			if allowed != nil {
				if _, ok := allowed[nb.Edge.Type]; !ok {
					continue
				}
			}

			if _, seen := depths[nb.Ticker]; seen {
				continue
			}

			depths[nb.Ticker] = depths[cur] + 1
			prev[nb.Ticker] = pathHop{prev: cur, edge: nb.Edge}

			if nb.Ticker == target {
				return buildPath(prev, source, target)
			}

			queue = append(queue, nb.Ticker)
		}
	}

	return nil
}

func buildPath(prev map[string]pathHop, source, target string) *Path {
	var (
		tickers []string
		edges   []*Edge
	)

	for cur := target; ; {
		tickers = append(tickers, cur)

		if cur == source {
			break
		}

		hop := prev[cur]
		edges = append(edges, hop.edge)
		cur = hop.prev
	}

	reverseStrings(tickers)
	reverseEdges(edges)

	return &Path{Tickers: tickers, Edges: edges}
}

func relTypeSet(relTypes []RelType) map[RelType]struct{} {
	if len(relTypes) == 0 {
		return nil
	}

	set := make(map[RelType]struct{}, len(relTypes))
	for _, rt := range relTypes {
		set[rt] = struct{}{}
	}

	return set
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseEdges(s []*Edge) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
