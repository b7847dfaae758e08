package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/api"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/cache"
	"github.com/nico-mirson-parloa/semantic-layer-service-sub001/internal/domain"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderLineage(w io.Writer, resp *api.LineageResponse) {
	g := resp.Graph
	if g == nil || len(g.Edges) == 0 {
		_, _ = fmt.Fprintln(w, "(no lineage edges)")
	} else {
		t := newTable(w)
		t.AppendHeader(table.Row{"Depth", "Source", "Target", "Type", "Seen", "Last Seen"})
		for _, e := range g.Edges {
			depth := fmt.Sprint(e.MinDepth)
			if e.MaxDepth != e.MinDepth {
				depth = fmt.Sprintf("%d-%d", e.MinDepth, e.MaxDepth)
			}
			t.AppendRow(table.Row{depth, e.SourceID, e.TargetID, e.EdgeType, e.OccurrenceCount, formatTime(e.LastSeen)})
		}
		t.Render()
	}

	nodes := 0
	if g != nil {
		nodes = len(g.Nodes)
	}
	var flags []string
	if resp.Cached {
		flags = append(flags, "cached")
	}
	if resp.Truncated {
		flags = append(flags, "truncated")
	}
	summary := fmt.Sprintf("(%d nodes, %d edges, %d ms)", nodes, edgeCount(g), resp.QueryTimeMs)
	if len(flags) > 0 {
		summary += " [" + strings.Join(flags, ", ") + "]"
	}
	_, _ = fmt.Fprintln(w, summary)
}

func edgeCount(g *domain.LineageGraph) int {
	if g == nil {
		return 0
	}
	return len(g.Edges)
}

func renderImpact(w io.Writer, out *domain.ImpactAnalysis) {
	if out.TotalImpactCount == 0 {
		_, _ = fmt.Fprintf(w, "No downstream impact for %s\n", out.EntityID)
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Impact", "Entity", "Type"})
	for _, n := range out.DirectlyImpacted {
		t.AppendRow(table.Row{"direct", n.ID, n.Type})
	}
	for _, n := range out.IndirectlyImpacted {
		t.AppendRow(table.Row{"indirect", n.ID, n.Type})
	}
	t.Render()

	suffix := ""
	if out.Truncated {
		suffix = " [truncated]"
	}
	_, _ = fmt.Fprintf(w, "(%d impacted entities within depth %d)%s\n", out.TotalImpactCount, out.Depth, suffix)
}

func renderStats(w io.Writer, s *cache.Stats) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"hits", s.Hits},
		{"misses", s.Misses},
		{"evictions", s.Evictions},
		{"total_queries", s.TotalQueries},
		{"hit_rate", fmt.Sprintf("%.1f%%", s.HitRate)},
		{"current_size", s.CurrentSize},
		{"max_size", s.MaxSize},
		{"default_ttl", time.Duration(s.DefaultTTLSeconds * float64(time.Second)).String()},
	})
	t.Render()
}

func renderEvents(w io.Writer, events []api.EdgeEvent) {
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, "(0 events)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Source", "Target", "Event Time", "Statement"})
	for _, e := range events {
		var ts time.Time
		if e.EventTime != nil {
			ts = *e.EventTime
		}
		t.AppendRow(table.Row{e.ID, e.Source, e.Target, formatTime(ts), e.StatementID})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d events)\n", len(events))
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
