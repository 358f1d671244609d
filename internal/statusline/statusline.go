// Package statusline assembles the ordered segment list for one session
// document. Every segment is optional; an empty document renders an empty
// line rather than failing.
package statusline

import (
	"context"
	"fmt"
	"strings"

	"github.com/macfox/promptline/internal/credentials"
	"github.com/macfox/promptline/internal/provider"
	"github.com/macfox/promptline/internal/render"
	"github.com/macfox/promptline/internal/session"
)

// Git is the local-repository collaborator. Implementations return zero
// values on failure.
type Git interface {
	Branch(dir string) string
	DirtyCount(dir string) int
}

// Builder produces segments from a session document plus its collaborators.
// Any collaborator may be nil, which disables that enrichment.
type Builder struct {
	Git      Git
	Registry *provider.Registry
	Resolve  func() (credentials.Credentials, bool)
}

// Build returns the segments in display order: model, directory, git state,
// context usage, input tokens, cost, line delta, then provider enrichment.
func (b *Builder) Build(ctx context.Context, doc session.Document) []render.Segment {
	var segments []render.Segment

	if name := doc.Model.DisplayName; name != "" {
		segments = append(segments, render.Segment{Color: render.Magenta, Text: "[" + name + "]"})
	}

	dir := doc.Workspace.CurrentDir
	if dir != "" {
		segments = append(segments, render.Segment{Color: render.Cyan, Text: dirName(dir)})
	}

	if b.Git != nil && dir != "" {
		if branch := b.Git.Branch(dir); branch != "" {
			segments = append(segments, render.Segment{Color: render.Blue, Text: branch})
			if dirty := b.Git.DirtyCount(dir); dirty > 0 {
				segments = append(segments, render.Segment{Color: render.Yellow, Text: fmt.Sprintf("✚%d", dirty)})
			}
		}
	}

	if pct := doc.ContextWindow.UsedPercentage; pct != nil {
		segments = append(segments, render.Segment{
			Color: render.ByUsage(*pct),
			Text:  fmt.Sprintf("ctx:%.0f%%", *pct),
		})
	}

	if usage := doc.ContextWindow.CurrentUsage; usage != nil && usage.InputTokens != nil {
		segments = append(segments, render.Segment{
			Color: render.Dim,
			Text:  "in:" + formatTokens(*usage.InputTokens),
		})
	}

	if cost := doc.Cost.TotalCostUSD; cost != nil && *cost > 0 {
		segments = append(segments, render.Segment{Color: render.Yellow, Text: "$" + formatCost(*cost)})
	}

	added, removed := int64(0), int64(0)
	if doc.Cost.TotalLinesAdded != nil {
		added = *doc.Cost.TotalLinesAdded
	}
	if doc.Cost.TotalLinesRemoved != nil {
		removed = *doc.Cost.TotalLinesRemoved
	}
	if added > 0 || removed > 0 {
		// Two-tone fragment: pre-painted so the join separator does not
		// split the +/- pair.
		text := render.Paint(render.Segment{Color: render.Green, Text: fmt.Sprintf("+%d", added)}) +
			render.Paint(render.Segment{Color: render.Red, Text: fmt.Sprintf("/-%d", removed)})
		segments = append(segments, render.Segment{Color: render.None, Text: text})
	}

	segments = append(segments, b.enrich(ctx)...)
	return segments
}

// enrich resolves credentials, dispatches to the matching provider and
// appends its segments. Every miss along the way yields nothing.
func (b *Builder) enrich(ctx context.Context) []render.Segment {
	if b.Registry == nil || b.Resolve == nil {
		return nil
	}
	creds, ok := b.Resolve()
	if !ok {
		return nil
	}
	matched := b.Registry.Select(creds.BaseURL)
	if matched == nil {
		return nil
	}
	return matched.Segments(ctx, creds)
}

// dirName is the final path component; "" for the root path.
func dirName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// formatCost picks a precision that keeps small costs visible:
// 4 decimals under a cent, 3 under a dollar, 2 otherwise.
func formatCost(cost float64) string {
	switch {
	case cost < 0.01:
		return fmt.Sprintf("%.4f", cost)
	case cost < 1.0:
		return fmt.Sprintf("%.3f", cost)
	default:
		return fmt.Sprintf("%.2f", cost)
	}
}

func formatTokens(n int64) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}
