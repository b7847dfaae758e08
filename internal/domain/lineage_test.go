package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *LineageGraph {
	return &LineageGraph{
		Nodes: []LineageNode{
			NewLineageNode("main.sales.orders", NodeTable),
			NewLineageNode("main.sales.order_summary", NodeTable),
			NewLineageNode("main.sales.daily_report", NodeView),
		},
		Edges: []LineageEdge{
			{SourceID: "main.sales.orders", TargetID: "main.sales.order_summary", MinDepth: 1},
			{SourceID: "main.sales.order_summary", TargetID: "main.sales.daily_report", MinDepth: 2},
		},
		Metadata: map[string]any{},
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"upstream", DirectionUpstream, false},
		{" DOWNSTREAM ", DirectionDownstream, false},
		{"Both", DirectionBoth, false},
		{"sideways", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDirection(tc.in)
			if tc.wantErr {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAnchorRoleFor(t *testing.T) {
	assert.Equal(t, AnchorSource, AnchorRoleFor(DirectionDownstream))
	assert.Equal(t, AnchorTarget, AnchorRoleFor(DirectionUpstream))
}

func TestNodeTypeFromSource(t *testing.T) {
	assert.Equal(t, NodeTable, NodeTypeFromSource("STREAMING_TABLE"))
	assert.Equal(t, NodeTable, NodeTypeFromSource("table"))
	assert.Equal(t, NodeView, NodeTypeFromSource("MATERIALIZED_VIEW"))
	assert.Equal(t, NodeFile, NodeTypeFromSource("PATH"))
	assert.Equal(t, NodeColumn, NodeTypeFromSource("column"))
	assert.Equal(t, NodeUnknown, NodeTypeFromSource("NOTEBOOK"))
}

func TestNewLineageNode(t *testing.T) {
	t.Run("three part table name", func(t *testing.T) {
		n := NewLineageNode("main.sales.orders", NodeTable)
		assert.Equal(t, "orders", n.Name)
		assert.Equal(t, "main", n.Catalog)
		assert.Equal(t, "sales", n.Schema)
	})

	t.Run("bare name", func(t *testing.T) {
		n := NewLineageNode("orders", NodeTable)
		assert.Equal(t, "orders", n.Name)
		assert.Empty(t, n.Catalog)
		assert.Empty(t, n.Schema)
	})

	t.Run("column keeps owning table", func(t *testing.T) {
		n := NewLineageNode("main.sales.orders.amount", NodeColumn)
		assert.Equal(t, "amount", n.Name)
		assert.Equal(t, "main.sales.orders", n.Metadata["table"])
		assert.Equal(t, "main", n.Catalog)
	})
}

func TestLineageGraph_Lookups(t *testing.T) {
	g := sampleGraph()

	n, ok := g.NodeByID("main.sales.daily_report")
	require.True(t, ok)
	assert.Equal(t, NodeView, n.Type)

	_, ok = g.NodeByID("missing")
	assert.False(t, ok)

	from := g.EdgesFrom("main.sales.orders")
	require.Len(t, from, 1)
	assert.Equal(t, "main.sales.order_summary", from[0].TargetID)

	to := g.EdgesTo("main.sales.daily_report")
	require.Len(t, to, 1)
	assert.Equal(t, 2, to[0].MinDepth)

	assert.Empty(t, g.EdgesTo("main.sales.orders"))
}

func TestLineageGraph_Subgraph(t *testing.T) {
	g := sampleGraph()

	sub := g.Subgraph([]string{"main.sales.orders", "main.sales.order_summary"})

	assert.Len(t, sub.Nodes, 2)
	require.Len(t, sub.Edges, 1)
	assert.Equal(t, "main.sales.orders", sub.Edges[0].SourceID)
	require.NoError(t, sub.Validate())
}

func TestLineageGraph_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, sampleGraph().Validate())
	})

	t.Run("dangling edge", func(t *testing.T) {
		g := sampleGraph()
		g.Edges = append(g.Edges, LineageEdge{SourceID: "main.sales.orders", TargetID: "nowhere"})
		assert.Error(t, g.Validate())
	})

	t.Run("duplicate node", func(t *testing.T) {
		g := sampleGraph()
		g.Nodes = append(g.Nodes, NewLineageNode("main.sales.orders", NodeTable))
		assert.Error(t, g.Validate())
	})
}

func TestTraversalRequest_Validate(t *testing.T) {
	valid := func() TraversalRequest {
		return TraversalRequest{Table: " Main.Sales.ORDERS ", Direction: "DOWNSTREAM", DaysBack: 90, MaxDepth: 5}
	}

	t.Run("normalizes", func(t *testing.T) {
		req := valid()
		require.NoError(t, req.Validate())
		assert.Equal(t, "main.sales.orders", req.Table)
		assert.Equal(t, DirectionDownstream, req.Direction)
	})

	tests := []struct {
		name   string
		mutate func(*TraversalRequest)
	}{
		{"empty table", func(r *TraversalRequest) { r.Table = "  " }},
		{"bad direction", func(r *TraversalRequest) { r.Direction = "left" }},
		{"depth zero", func(r *TraversalRequest) { r.MaxDepth = 0 }},
		{"depth eleven", func(r *TraversalRequest) { r.MaxDepth = 11 }},
		{"days back zero", func(r *TraversalRequest) { r.DaysBack = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(&req)
			var ve *ValidationError
			assert.ErrorAs(t, req.Validate(), &ve)
		})
	}
}

func TestNormalizeTableName(t *testing.T) {
	assert.Equal(t, "main.sales.orders", NormalizeTableName("  Main.Sales.ORDERS\t"))
	assert.Equal(t, "", NormalizeTableName("   "))
}

func TestDefaultEdgeClassifier(t *testing.T) {
	assert.Equal(t, EdgeDerivesFrom, DefaultEdgeClassifier("TABLE", "VIEW"))
	assert.Equal(t, EdgeTransformsTo, DefaultEdgeClassifier("COLUMN", "COLUMN"))
}

func TestRawColumnEdge_IDs(t *testing.T) {
	e := RawColumnEdge{SourceTable: "a.b.c", SourceColumn: "x", TargetTable: "a.b.d", TargetColumn: "y"}
	assert.Equal(t, "a.b.c.x", e.SourceID())
	assert.Equal(t, "a.b.d.y", e.TargetID())
}
