package domain

import (
	"sort"
	"strings"
	"time"
)

// Direction selects which side of an anchor table a traversal explores.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
	DirectionBoth       Direction = "both"
)

// ParseDirection normalizes s (case and surrounding whitespace) and validates it.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DirectionUpstream, DirectionDownstream, DirectionBoth:
		return d, nil
	default:
		return "", ErrValidation("invalid direction %q: must be upstream, downstream, or both", s)
	}
}

// AnchorRole is the endpoint of an edge that must match the anchor table
// when fetching edges from an EdgeSource.
type AnchorRole string

const (
	// AnchorSource matches edges whose source is the anchor (downstream walk).
	AnchorSource AnchorRole = "source"
	// AnchorTarget matches edges whose target is the anchor (upstream walk).
	AnchorTarget AnchorRole = "target"
)

// AnchorRoleFor returns the anchor role used to walk in direction d.
// d must be upstream or downstream.
func AnchorRoleFor(d Direction) AnchorRole {
	if d == DirectionUpstream {
		return AnchorTarget
	}
	return AnchorSource
}

// NodeType classifies a lineage node.
type NodeType string

const (
	NodeTable     NodeType = "TABLE"
	NodeView      NodeType = "VIEW"
	NodeModel     NodeType = "MODEL"
	NodeMetric    NodeType = "METRIC"
	NodeDimension NodeType = "DIMENSION"
	NodeColumn    NodeType = "COLUMN"
	NodeFile      NodeType = "FILE"
	NodeExternal  NodeType = "EXTERNAL"
	NodeUnknown   NodeType = "UNKNOWN"
)

// NodeTypeFromSource maps a raw entity type reported by an edge source
// (e.g. "STREAMING_TABLE", "PATH") to a NodeType.
func NodeTypeFromSource(raw string) NodeType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TABLE", "STREAMING_TABLE", "MANAGED", "EXTERNAL_TABLE":
		return NodeTable
	case "VIEW", "MATERIALIZED_VIEW":
		return NodeView
	case "PATH", "FILE", "VOLUME":
		return NodeFile
	case "EXTERNAL":
		return NodeExternal
	case "COLUMN":
		return NodeColumn
	case "MODEL":
		return NodeModel
	case "METRIC":
		return NodeMetric
	case "DIMENSION":
		return NodeDimension
	default:
		return NodeUnknown
	}
}

// EdgeType classifies the relationship carried by a lineage edge.
type EdgeType string

const (
	EdgeDerivesFrom    EdgeType = "DERIVES_FROM"
	EdgeJoinsWith      EdgeType = "JOINS_WITH"
	EdgeFiltersFrom    EdgeType = "FILTERS_FROM"
	EdgeAggregatesFrom EdgeType = "AGGREGATES_FROM"
	EdgeReferences     EdgeType = "REFERENCES"
	EdgeContains       EdgeType = "CONTAINS"
	EdgeTransformsTo   EdgeType = "TRANSFORMS_TO"
	EdgeBelongsTo      EdgeType = "BELONGS_TO"
)

// EdgeClassifier assigns an EdgeType from the raw source/target type pair.
type EdgeClassifier func(sourceType, targetType string) EdgeType

// DefaultEdgeClassifier treats column-to-column movement as TRANSFORMS_TO and
// everything else as DERIVES_FROM.
func DefaultEdgeClassifier(sourceType, targetType string) EdgeType {
	if NodeTypeFromSource(sourceType) == NodeColumn && NodeTypeFromSource(targetType) == NodeColumn {
		return EdgeTransformsTo
	}
	return EdgeDerivesFrom
}

// RawEdge is one typed row returned by an EdgeSource: a single observed data
// movement between two entities.
type RawEdge struct {
	Source      string
	Target      string
	SourceType  string
	TargetType  string
	EventTime   time.Time
	StatementID string
}

// RawColumnEdge is a column-to-column data movement observed by an edge source.
type RawColumnEdge struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	EventTime    time.Time
	StatementID  string
}

// SourceID returns the fully-qualified source column name.
func (e RawColumnEdge) SourceID() string { return e.SourceTable + "." + e.SourceColumn }

// TargetID returns the fully-qualified target column name.
func (e RawColumnEdge) TargetID() string { return e.TargetTable + "." + e.TargetColumn }

// LineageEdge is a deduplicated relationship aggregated across possibly many
// raw rows observed at possibly many depths.
type LineageEdge struct {
	SourceID        string     `json:"source_id"`
	TargetID        string     `json:"target_id"`
	SourceType      string     `json:"source_type"`
	TargetType      string     `json:"target_type"`
	EdgeType        EdgeType   `json:"edge_type"`
	MinDepth        int        `json:"min_depth"`
	MaxDepth        int        `json:"max_depth"`
	OccurrenceCount int        `json:"occurrence_count"`
	LastSeen        time.Time  `json:"last_seen"`
	FirstSeen       *time.Time `json:"first_seen,omitempty"`
	StatementIDs    []string   `json:"statement_ids"`
}

// LineageNode is an entity participating in a lineage graph. ID is the
// fully-qualified entity name.
type LineageNode struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     NodeType       `json:"type"`
	Catalog  string         `json:"catalog,omitempty"`
	Schema   string         `json:"schema,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewLineageNode builds a node from a fully-qualified name, splitting out
// catalog and schema for three-part names.
func NewLineageNode(id string, nodeType NodeType) LineageNode {
	n := LineageNode{ID: id, Name: id, Type: nodeType, Metadata: map[string]any{}}
	parts := strings.Split(id, ".")
	switch {
	case nodeType == NodeColumn && len(parts) >= 2:
		n.Name = parts[len(parts)-1]
		n.Metadata["table"] = strings.Join(parts[:len(parts)-1], ".")
		if len(parts) == 4 {
			n.Catalog, n.Schema = parts[0], parts[1]
		}
	case len(parts) == 3:
		n.Catalog, n.Schema, n.Name = parts[0], parts[1], parts[2]
	case len(parts) == 2:
		n.Schema, n.Name = parts[0], parts[1]
	}
	return n
}

// LineageGraph is a set of nodes unique by ID and the edges between them.
// Graphs handed out by the lineage service are shared snapshots and must not
// be mutated by callers.
type LineageGraph struct {
	Nodes    []LineageNode  `json:"nodes"`
	Edges    []LineageEdge  `json:"edges"`
	Metadata map[string]any `json:"metadata"`
}

// NodeByID returns the node with the given id.
func (g *LineageGraph) NodeByID(id string) (LineageNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return LineageNode{}, false
}

// EdgesFrom returns the edges whose source is id.
func (g *LineageGraph) EdgesFrom(id string) []LineageEdge {
	var out []LineageEdge
	for _, e := range g.Edges {
		if e.SourceID == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns the edges whose target is id.
func (g *LineageGraph) EdgesTo(id string) []LineageEdge {
	var out []LineageEdge
	for _, e := range g.Edges {
		if e.TargetID == id {
			out = append(out, e)
		}
	}
	return out
}

// NodeIDs returns the sorted node ids of the graph.
func (g *LineageGraph) NodeIDs() []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)
	return ids
}

// Subgraph returns the graph induced by ids: the listed nodes present in g
// and every edge with both endpoints among them. Metadata is not copied.
func (g *LineageGraph) Subgraph(ids []string) *LineageGraph {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	sub := &LineageGraph{Nodes: []LineageNode{}, Edges: []LineageEdge{}, Metadata: map[string]any{}}
	for _, n := range g.Nodes {
		if keep[n.ID] {
			sub.Nodes = append(sub.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		if keep[e.SourceID] && keep[e.TargetID] {
			sub.Edges = append(sub.Edges, e)
		}
	}
	return sub
}

// Validate checks that node ids are unique and every edge endpoint is a node.
func (g *LineageGraph) Validate() error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			return ErrValidation("duplicate node %q", n.ID)
		}
		seen[n.ID] = true
	}
	for _, e := range g.Edges {
		if !seen[e.SourceID] {
			return ErrValidation("edge %s -> %s: unknown source node", e.SourceID, e.TargetID)
		}
		if !seen[e.TargetID] {
			return ErrValidation("edge %s -> %s: unknown target node", e.SourceID, e.TargetID)
		}
	}
	return nil
}

// TraversalRequest holds the parameters of one lineage traversal.
type TraversalRequest struct {
	Table          string
	Direction      Direction
	DaysBack       int
	MaxDepth       int
	IncludeColumns bool
}

// Traversal bounds.
const (
	MinTraversalDepth = 1
	MaxTraversalDepth = 10
)

// NormalizeTableName returns the canonical form of a table name. Table names
// are case-insensitive identifiers; sources store and match them in this form.
func NormalizeTableName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks the request and normalizes Table and Direction in place.
func (r *TraversalRequest) Validate() error {
	r.Table = NormalizeTableName(r.Table)
	if r.Table == "" {
		return ErrValidation("table name is required")
	}
	d, err := ParseDirection(string(r.Direction))
	if err != nil {
		return err
	}
	r.Direction = d
	if r.MaxDepth < MinTraversalDepth || r.MaxDepth > MaxTraversalDepth {
		return ErrValidation("depth must be between %d and %d, got %d", MinTraversalDepth, MaxTraversalDepth, r.MaxDepth)
	}
	if r.DaysBack <= 0 {
		return ErrValidation("days_back must be positive, got %d", r.DaysBack)
	}
	return nil
}

// TraversalResult is the outcome of a successful traversal. A truncated
// result is still a valid, partial graph. Cached is set on results served
// from the lineage cache.
type TraversalResult struct {
	Graph       *LineageGraph `json:"graph"`
	QueryTimeMs int64         `json:"query_time_ms"`
	Truncated   bool          `json:"truncated"`
	Cached      bool          `json:"cached"`
}

// ImpactAnalysis describes the entities affected by a change to EntityID.
type ImpactAnalysis struct {
	EntityID           string        `json:"entity_id"`
	Depth              int           `json:"depth"`
	DirectlyImpacted   []LineageNode `json:"directly_impacted"`
	IndirectlyImpacted []LineageNode `json:"indirectly_impacted"`
	TotalImpactCount   int           `json:"total_impact_count"`
	ImpactGraph        *LineageGraph `json:"impact_graph,omitempty"`
	Truncated          bool          `json:"truncated"`
}

// LineageEvent is a raw edge recorded in the metastore so that it can be
// served back by the SQLite edge source.
type LineageEvent struct {
	ID        string
	Edge      RawEdge
	CreatedAt time.Time
}

// ColumnLineageEvent is a recorded column-to-column edge.
type ColumnLineageEvent struct {
	ID        string
	Edge      RawColumnEdge
	CreatedAt time.Time
}
