package timeline

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"cadence/event"
)

// Summary renders r as a plain-text table, one row per primitive, grouped
// by track. Series are reduced to their point count and mean.
func Summary(r Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "duration %s\n", clock(r.Duration))

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	for _, p := range r.Primitives {
		switch p.Kind {
		case KindSegment:
			fmt.Fprintf(tw, "%s\t%s\t%s - %s\n", p.Track, p.Label, clock(p.TStart), clock(end(p, r.Duration)))
		case KindMarker:
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Track, p.Label, clock(p.TStart))
		case KindSeries:
			pts, _ := p.Payload["points"].([]event.Signal)
			fmt.Fprintf(tw, "%s\t%s series\t%d points, mean %.3f\n", p.Track, p.Label, len(pts), mean(pts))
		}
	}
	tw.Flush()
	return sb.String()
}

func end(p Primitive, fallback float64) float64 {
	if p.TEnd != nil {
		return *p.TEnd
	}
	return fallback
}

func mean(pts []event.Signal) float64 {
	if len(pts) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pts {
		sum += p.Value
	}
	return sum / float64(len(pts))
}

// clock formats seconds as m:ss.
func clock(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
