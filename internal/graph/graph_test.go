package graph

import (
	"math"
	"testing"
	"time"
)

const (
	testTickerA = "AAA"
	testTickerB = "BBB"
	testTickerC = "CCC"

	freshnessEpsilon = 1e-9
)

func newTestGraph() *Graph {
	return New(nil)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}

	return parsed
}

func TestAddEdgeCreatesEndpoints(t *testing.T) {
	g := newTestGraph()

	e := g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)
	if e == nil {
		t.Fatal("expected edge")
	}

	if _, ok := g.Node(testTickerA); !ok {
		t.Fatal("source node not created")
	}

	if _, ok := g.Node(testTickerB); !ok {
		t.Fatal("target node not created")
	}

	if e.Freshness != 1.0 {
		t.Fatalf("new edge freshness = %v, want 1.0", e.Freshness)
	}

	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1", g.EdgeCount())
	}
}

func TestAddEdgeMergeIsIdempotent(t *testing.T) {
	g := newTestGraph()

	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, &EdgeAttrs{Sources: []string{"filing"}})
	g.DecayFreshness(0.9, 3)

	before := g.findEdge(testTickerA, testTickerB, RelSupplier)
	wantFreshness := before.Freshness

	e := g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, &EdgeAttrs{Sources: []string{"filing"}})

	if g.EdgeCount() != 1 {
		t.Fatalf("edge count = %d, want 1 after re-add", g.EdgeCount())
	}

	if e.Strength != 0.8 {
		t.Fatalf("strength = %v, want 0.8", e.Strength)
	}

	if e.Freshness != wantFreshness {
		t.Fatalf("freshness changed by merge: %v -> %v", wantFreshness, e.Freshness)
	}

	if len(e.Sources) != 1 || e.Sources[0] != "filing" {
		t.Fatalf("sources = %v, want [filing]", e.Sources)
	}
}

func TestAddEdgeMergeTakesMaxStrengthAndUnionsSources(t *testing.T) {
	g := newTestGraph()

	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, &EdgeAttrs{Sources: []string{"filing"}})

	e := g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.5, &EdgeAttrs{Sources: []string{"news"}})
	if e.Strength != 0.8 {
		t.Fatalf("strength = %v, want max(0.8, 0.5) = 0.8", e.Strength)
	}

	e = g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.9, nil)
	if e.Strength != 0.9 {
		t.Fatalf("strength = %v, want 0.9", e.Strength)
	}

	if len(e.Sources) != 2 {
		t.Fatalf("sources = %v, want union of two", e.Sources)
	}
}

func TestAddEdgeCoercesUnknownType(t *testing.T) {
	g := newTestGraph()

	e := g.AddEdge(testTickerA, testTickerB, RelType("synergy"), 0.5, nil)
	if e.Type != RelAdjacent {
		t.Fatalf("type = %s, want adjacent", e.Type)
	}
}

func TestAddNodeMergesMetadata(t *testing.T) {
	g := newTestGraph()

	g.AddNode(testTickerA, &NodeMeta{CompanyName: "Alpha Corp", MarketCapTier: "large"})
	n := g.AddNode(testTickerA, &NodeMeta{MarketCapTier: "mega"})

	if n.Meta.CompanyName != "Alpha Corp" {
		t.Fatalf("company name = %q, want preserved", n.Meta.CompanyName)
	}

	if n.Meta.MarketCapTier != "mega" {
		t.Fatalf("tier = %q, want last write", n.Meta.MarketCapTier)
	}
}

func TestTagThemeDeduplicates(t *testing.T) {
	g := newTestGraph()

	g.TagTheme(testTickerA, "ai_infra")
	g.TagTheme(testTickerA, "ai_infra")
	g.TagTheme(testTickerA, "uranium")

	n, _ := g.Node(testTickerA)
	if len(n.Meta.Themes) != 2 {
		t.Fatalf("themes = %v, want 2 unique", n.Meta.Themes)
	}
}

func TestDecayFreshnessCommutes(t *testing.T) {
	tests := []struct {
		name  string
		rate  float64
		split [2]float64
		total float64
	}{
		{name: "two steps equal one", rate: 0.9, split: [2]float64{2, 3}, total: 5},
		{name: "uneven split", rate: 0.95, split: [2]float64{1, 6}, total: 7},
		{name: "clamps at floor either way", rate: 0.5, split: [2]float64{4, 4}, total: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := newTestGraph()
			split.AddEdge(testTickerA, testTickerB, RelCompetitor, 0.7, nil)
			split.DecayFreshness(tt.rate, tt.split[0])
			split.DecayFreshness(tt.rate, tt.split[1])

			single := newTestGraph()
			single.AddEdge(testTickerA, testTickerB, RelCompetitor, 0.7, nil)
			single.DecayFreshness(tt.rate, tt.total)

			got := split.findEdge(testTickerA, testTickerB, RelCompetitor).Freshness
			want := single.findEdge(testTickerA, testTickerB, RelCompetitor).Freshness

			if math.Abs(got-want) > freshnessEpsilon {
				t.Fatalf("split decay = %v, single decay = %v", got, want)
			}

			if got < FreshnessFloor {
				t.Fatalf("freshness %v fell below floor", got)
			}
		})
	}
}

func TestDecayFreshnessUsesPerTypeDefaults(t *testing.T) {
	g := newTestGraph()

	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.7, nil)
	g.AddEdge(testTickerA, testTickerC, RelAdjacent, 0.7, nil)

	g.DecayFreshness(0, 30)

	supplier := g.findEdge(testTickerA, testTickerB, RelSupplier).Freshness
	adjacent := g.findEdge(testTickerA, testTickerC, RelAdjacent).Freshness

	if supplier <= adjacent {
		t.Fatalf("supplier freshness %v should outlast adjacent %v", supplier, adjacent)
	}

	wantSupplier := math.Pow(DefaultDecayRates[RelSupplier], 30)
	if math.Abs(supplier-wantSupplier) > freshnessEpsilon {
		t.Fatalf("supplier freshness = %v, want %v", supplier, wantSupplier)
	}
}

func TestDecayNeverReachesZero(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelAdjacent, 0.7, nil)

	g.DecayFreshness(0.5, 1000)

	e := g.findEdge(testTickerA, testTickerB, RelAdjacent)
	if e.Freshness != FreshnessFloor {
		t.Fatalf("freshness = %v, want floor %v", e.Freshness, FreshnessFloor)
	}
}

func TestRefreshEdgeResetsFreshnessOnly(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)
	g.DecayFreshness(0.5, 10)

	if !g.RefreshEdge(testTickerA, testTickerB, RelSupplier) {
		t.Fatal("expected refresh to match the edge")
	}

	e := g.findEdge(testTickerA, testTickerB, RelSupplier)
	if e.Freshness != 1.0 {
		t.Fatalf("freshness = %v, want 1.0", e.Freshness)
	}

	if e.Strength != 0.8 {
		t.Fatalf("strength = %v, want untouched 0.8", e.Strength)
	}

	if g.RefreshEdge(testTickerB, testTickerA, RelSupplier) {
		t.Fatal("refresh matched a non-existent edge")
	}
}

func TestRefreshEdgeEmptyTypeMatchesAll(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)
	g.AddEdge(testTickerA, testTickerB, RelCompetitor, 0.6, nil)
	g.DecayFreshness(0.5, 10)

	if !g.RefreshEdge(testTickerA, testTickerB, "") {
		t.Fatal("expected refresh to match")
	}

	for _, e := range g.Edges() {
		if e.Freshness != 1.0 {
			t.Fatalf("edge %s freshness = %v, want 1.0", e.Type, e.Freshness)
		}
	}
}

func TestUnknownTickerQueriesReturnEmpty(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)

	if got := g.Neighbors("ZZZ", NeighborQuery{}); len(got) != 0 {
		t.Fatalf("neighbors of unknown ticker = %v, want empty", got)
	}

	if got := g.Suppliers("ZZZ"); len(got) != 0 {
		t.Fatalf("suppliers of unknown ticker = %v, want empty", got)
	}

	sub := g.Subgraph("ZZZ", 2, nil, 0)
	if len(sub.Nodes) != 0 || len(sub.Edges) != 0 {
		t.Fatalf("subgraph of unknown ticker not empty: %+v", sub)
	}
}

func TestNeighborsFilters(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)
	g.AddEdge(testTickerA, testTickerC, RelCompetitor, 0.4, nil)
	g.AddEdge(testTickerB, testTickerA, RelCustomer, 0.9, nil)

	tests := []struct {
		name  string
		query NeighborQuery
		want  int
	}{
		{name: "both directions unfiltered", query: NeighborQuery{}, want: 3},
		{name: "outgoing only", query: NeighborQuery{Direction: DirectionOut}, want: 2},
		{name: "incoming only", query: NeighborQuery{Direction: DirectionIn}, want: 1},
		{name: "type filter", query: NeighborQuery{Type: RelSupplier}, want: 1},
		{name: "min strength", query: NeighborQuery{MinStrength: 0.5}, want: 2},
		{name: "min strength and type", query: NeighborQuery{Type: RelCompetitor, MinStrength: 0.5}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Neighbors(testTickerA, tt.query)
			if len(got) != tt.want {
				t.Fatalf("got %d neighbors, want %d", len(got), tt.want)
			}
		})
	}
}

func TestNeighborsMinFreshnessFilter(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)
	g.DecayFreshness(0.5, 10)

	if got := g.Neighbors(testTickerA, NeighborQuery{MinFreshness: 0.5}); len(got) != 0 {
		t.Fatalf("stale edge passed freshness filter: %v", got)
	}

	if got := g.Neighbors(testTickerA, NeighborQuery{MinFreshness: 0.05}); len(got) != 1 {
		t.Fatalf("edge should pass low freshness filter, got %v", got)
	}
}

func TestSupplierCustomerCompetitorWrappers(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.8, nil)
	g.AddEdge(testTickerC, testTickerB, RelCustomer, 0.7, nil)
	g.AddEdge(testTickerA, testTickerC, RelCompetitor, 0.6, nil)

	suppliers := g.Suppliers(testTickerB)
	if len(suppliers) != 1 || suppliers[0].Ticker != testTickerA {
		t.Fatalf("suppliers of %s = %v, want [%s]", testTickerB, suppliers, testTickerA)
	}

	if got := g.Suppliers(testTickerA); len(got) != 0 {
		t.Fatalf("suppliers of %s = %v, want empty", testTickerA, got)
	}

	customers := g.Customers(testTickerB)
	if len(customers) != 1 || customers[0].Ticker != testTickerC {
		t.Fatalf("customers of %s = %v, want [%s]", testTickerB, customers, testTickerC)
	}

	for _, ticker := range []string{testTickerA, testTickerC} {
		competitors := g.Competitors(ticker)
		if len(competitors) != 1 {
			t.Fatalf("competitors of %s = %v, want 1 (symmetric query)", ticker, competitors)
		}
	}
}

func TestStaleAndStrongEdges(t *testing.T) {
	g := newTestGraph()
	g.AddEdge(testTickerA, testTickerB, RelSupplier, 0.9, nil)
	g.AddEdge(testTickerB, testTickerC, RelAdjacent, 0.4, nil)
	g.AddEdge(testTickerA, testTickerC, RelCompetitor, 0.6, nil)

	g.DecayFreshness(0, 60)

	stale := g.StaleEdges(0.5)
	for i := 1; i < len(stale); i++ {
		if stale[i-1].Freshness > stale[i].Freshness {
			t.Fatal("stale edges not sorted ascending by freshness")
		}
	}

	strong := g.StrongEdges(0.5)
	if len(strong) != 2 {
		t.Fatalf("strong edges = %d, want 2", len(strong))
	}

	if strong[0].Strength < strong[1].Strength {
		t.Fatal("strong edges not sorted descending by strength")
	}
}

func TestMergePrefersNewerNodesAndKeepsExistingEdges(t *testing.T) {
	older := mustTime(t, "2026-01-01T00:00:00Z")
	newer := mustTime(t, "2026-02-01T00:00:00Z")

	base := FromDocument(&Document{
		Nodes: map[string]*Node{
			testTickerA: {Ticker: testTickerA, Meta: NodeMeta{CompanyName: "Old Name"}, CreatedAt: older, UpdatedAt: older},
		},
		Edges: map[string][]*Edge{
			testTickerA: {{
				Source: testTickerA, Target: testTickerB, Type: RelSupplier,
				Strength: 0.5, Freshness: 0.8, Sources: []string{"filing"},
				CreatedAt: older, UpdatedAt: older,
			}},
		},
	}, nil)

	other := FromDocument(&Document{
		Nodes: map[string]*Node{
			testTickerA: {Ticker: testTickerA, Meta: NodeMeta{CompanyName: "New Name"}, CreatedAt: older, UpdatedAt: newer},
			testTickerC: {Ticker: testTickerC, CreatedAt: newer, UpdatedAt: newer},
		},
		Edges: map[string][]*Edge{
			testTickerA: {{
				Source: testTickerA, Target: testTickerB, Type: RelSupplier,
				Strength: 0.9, Freshness: 0.3, Sources: []string{"news"},
				CreatedAt: newer, UpdatedAt: newer,
			}},
			testTickerC: {{
				Source: testTickerC, Target: testTickerB, Type: RelCustomer,
				Strength: 0.6, Freshness: 0.7,
				CreatedAt: newer, UpdatedAt: newer,
			}},
		},
	}, nil)

	base.Merge(other, false)

	n, _ := base.Node(testTickerA)
	if n.Meta.CompanyName != "New Name" {
		t.Fatalf("node name = %q, want newer version", n.Meta.CompanyName)
	}

	e := base.findEdge(testTickerA, testTickerB, RelSupplier)
	if e.Strength != 0.5 || e.Freshness != 0.8 {
		t.Fatalf("existing edge modified without overwrite: %+v", e)
	}

	if len(e.Sources) != 1 {
		t.Fatalf("existing edge sources modified without overwrite: %v", e.Sources)
	}

	copied := base.findEdge(testTickerC, testTickerB, RelCustomer)
	if copied == nil || copied.Freshness != 0.7 {
		t.Fatalf("new edge not copied losslessly: %+v", copied)
	}
}

func TestMergeOverwriteAppliesMergeRule(t *testing.T) {
	older := mustTime(t, "2026-01-01T00:00:00Z")

	base := FromDocument(&Document{
		Edges: map[string][]*Edge{
			testTickerA: {{
				Source: testTickerA, Target: testTickerB, Type: RelSupplier,
				Strength: 0.5, Freshness: 0.8, Sources: []string{"filing"},
				CreatedAt: older, UpdatedAt: older,
			}},
		},
	}, nil)

	other := FromDocument(&Document{
		Edges: map[string][]*Edge{
			testTickerA: {{
				Source: testTickerA, Target: testTickerB, Type: RelSupplier,
				Strength: 0.9, Freshness: 0.3, Sources: []string{"news"},
				CreatedAt: older, UpdatedAt: older,
			}},
		},
	}, nil)

	base.Merge(other, true)

	e := base.findEdge(testTickerA, testTickerB, RelSupplier)
	if e.Strength != 0.9 {
		t.Fatalf("strength = %v, want max 0.9", e.Strength)
	}

	if e.Freshness != 0.8 {
		t.Fatalf("freshness = %v, want untouched 0.8 (reset only via refresh)", e.Freshness)
	}

	if len(e.Sources) != 2 {
		t.Fatalf("sources = %v, want union", e.Sources)
	}
}
