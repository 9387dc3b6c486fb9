package graph

import "testing"

func chainGraph(t *testing.T) *Graph {
	t.Helper()

	g := newTestGraph()
	g.AddEdge("A", "B", RelSupplier, 1.0, nil)
	g.AddEdge("B", "C", RelSupplier, 1.0, nil)
	g.AddEdge("C", "D", RelSupplier, 1.0, nil)
	g.AddEdge("D", "E", RelSupplier, 1.0, nil)

	return g
}

func TestSubgraphDepthBound(t *testing.T) {
	g := chainGraph(t)

	sub := g.Subgraph("A", 2, nil, 0)

	for _, ticker := range []string{"A", "B", "C"} {
		if _, ok := sub.Nodes[ticker]; !ok {
			t.Fatalf("subgraph missing %s", ticker)
		}
	}

	for _, ticker := range []string{"D", "E"} {
		if _, ok := sub.Nodes[ticker]; ok {
			t.Fatalf("subgraph includes %s beyond depth bound", ticker)
		}
	}

	if sub.Depths["A"] != 0 || sub.Depths["B"] != 1 || sub.Depths["C"] != 2 {
		t.Fatalf("depths = %v, want first-visit hop counts", sub.Depths)
	}

	if len(sub.Edges) != 2 {
		t.Fatalf("crossed edges = %d, want 2", len(sub.Edges))
	}

	if sub.Summary.ByType[RelSupplier] != 2 {
		t.Fatalf("summary by type = %v, want supplier: 2", sub.Summary.ByType)
	}
}

func TestSubgraphMinStrengthFilter(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("A", "B", RelSupplier, 0.9, nil)
	g.AddEdge("B", "C", RelSupplier, 0.2, nil)

	sub := g.Subgraph("A", 3, nil, DefaultSubgraphMinStrength)

	if _, ok := sub.Nodes["B"]; !ok {
		t.Fatal("strong edge not expanded")
	}

	if _, ok := sub.Nodes["C"]; ok {
		t.Fatal("weak edge crossed despite min strength")
	}
}

func TestSubgraphTypeFilter(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("A", "B", RelSupplier, 0.9, nil)
	g.AddEdge("A", "C", RelCompetitor, 0.9, nil)

	sub := g.Subgraph("A", 1, []RelType{RelSupplier}, 0)

	if _, ok := sub.Nodes["B"]; !ok {
		t.Fatal("allowed type not expanded")
	}

	if _, ok := sub.Nodes["C"]; ok {
		t.Fatal("filtered type crossed")
	}
}

func TestSubgraphGroupsBySubTheme(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("A", "B", RelAdjacent, 0.9, &EdgeAttrs{SubTheme: "cooling"})
	g.AddEdge("A", "C", RelAdjacent, 0.9, &EdgeAttrs{SubTheme: "cooling"})
	g.AddEdge("A", "D", RelAdjacent, 0.9, nil)

	sub := g.Subgraph("A", 1, nil, 0)

	if sub.Summary.BySubTheme["cooling"] != 2 {
		t.Fatalf("sub-theme summary = %v, want cooling: 2", sub.Summary.BySubTheme)
	}
}

func TestFindPathTwoHops(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("A", "B", RelSupplier, 0.8, nil)
	g.AddEdge("B", "C", RelCustomer, 0.7, nil)

	p := g.FindPath("A", "C", 4, nil)
	if p == nil {
		t.Fatal("expected a path")
	}

	if p.Hops() != 2 {
		t.Fatalf("hops = %d, want 2", p.Hops())
	}

	want := []string{"A", "B", "C"}
	for i, ticker := range want {
		if p.Tickers[i] != ticker {
			t.Fatalf("tickers = %v, want %v", p.Tickers, want)
		}
	}

	if p.Edges[0].Type != RelSupplier || p.Edges[1].Type != RelCustomer {
		t.Fatalf("edge types = %s, %s", p.Edges[0].Type, p.Edges[1].Type)
	}
}

func TestFindPathRespectsMaxDepth(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("A", "B", RelSupplier, 0.8, nil)
	g.AddEdge("B", "C", RelCustomer, 0.7, nil)

	if p := g.FindPath("A", "C", 1, nil); p != nil {
		t.Fatalf("path found beyond max depth: %v", p.Tickers)
	}
}

func TestFindPathTraversesIncomingEdges(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("B", "A", RelSupplier, 0.8, nil)
	g.AddEdge("B", "C", RelSupplier, 0.8, nil)

	p := g.FindPath("A", "C", 4, nil)
	if p == nil || p.Hops() != 2 {
		t.Fatalf("path over reversed edges = %v", p)
	}
}

func TestFindPathTypeAllowList(t *testing.T) {
	g := newTestGraph()
	g.AddEdge("A", "B", RelCompetitor, 0.8, nil)
	g.AddEdge("A", "C", RelSupplier, 0.8, nil)
	g.AddEdge("C", "B", RelSupplier, 0.8, nil)

	p := g.FindPath("A", "B", 4, []RelType{RelSupplier})
	if p == nil {
		t.Fatal("expected supplier-only path")
	}

	if p.Hops() != 2 {
		t.Fatalf("hops = %d, want 2 (competitor shortcut excluded)", p.Hops())
	}
}

func TestFindPathSameTicker(t *testing.T) {
	g := newTestGraph()
	g.AddNode("A", nil)

	p := g.FindPath("A", "A", 4, nil)
	if p == nil {
		t.Fatal("expected single-node path")
	}

	if len(p.Tickers) != 1 || p.Hops() != 0 {
		t.Fatalf("same-ticker path = %+v, want one node and no edges", p)
	}
}

func TestFindPathUnknownEndpoints(t *testing.T) {
	g := newTestGraph()
	g.AddNode("A", nil)

	if p := g.FindPath("A", "ZZZ", 4, nil); p != nil {
		t.Fatalf("path to unknown target = %v", p)
	}

	if p := g.FindPath("ZZZ", "A", 4, nil); p != nil {
		t.Fatalf("path from unknown source = %v", p)
	}
}
