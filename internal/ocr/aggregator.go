package ocr

import (
	"image"
	"sort"
	"strings"
)

// AggregatorConfig controls how chunk-level detections are merged into
// one page text block.
type AggregatorConfig struct {
	// RowTolerance bins detections whose top edges lie within this
	// many pixels into the same text row.
	RowTolerance int

	// OverlapFraction is the minimum overlap, as a fraction of the
	// smaller box's area, for two equal-text detections to be
	// considered duplicates from overlapping chunk regions.
	OverlapFraction float64
}

// DefaultAggregatorConfig matches the pipeline defaults: 50px row
// tolerance, 50% duplicate-overlap fraction.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{RowTolerance: 50, OverlapFraction: 0.5}
}

// Aggregator merges the detections of a page into reading order.
type Aggregator struct {
	config AggregatorConfig
}

// NewAggregator creates an aggregator.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.RowTolerance <= 0 {
		config.RowTolerance = DefaultAggregatorConfig().RowTolerance
	}
	if config.OverlapFraction <= 0 {
		config.OverlapFraction = DefaultAggregatorConfig().OverlapFraction
	}
	return &Aggregator{config: config}
}

// Aggregate reconstructs a page's text from its unordered chunk-level
// detections. Near-identical detections from overlapping chunk regions
// are deduplicated, keeping the higher-confidence one; the survivors
// are binned into rows by vertical position, ordered left-to-right
// within each row, joined with spaces inside a row and newlines
// between rows.
//
// Zero surviving detections yield an empty string and nil slice; a
// page may legitimately contain no recognizable text, so this is not
// an error.
func (a *Aggregator) Aggregate(detections []TextDetection) (string, []TextDetection) {
	retained := a.deduplicate(detections)
	if len(retained) == 0 {
		return "", nil
	}

	rows := a.binRows(retained)

	var b strings.Builder
	ordered := make([]TextDetection, 0, len(retained))
	for i, row := range rows {
		sort.SliceStable(row, func(x, y int) bool {
			return row[x].Box.Min.X < row[y].Box.Min.X
		})
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, d := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(d.Text)
			ordered = append(ordered, d)
		}
	}
	return b.String(), ordered
}

// deduplicate collapses detection pairs whose boxes overlap by more
// than the configured fraction of the smaller box's area and whose
// text is equal under case-insensitive, whitespace-normalized
// comparison. The higher-confidence detection wins.
func (a *Aggregator) deduplicate(detections []TextDetection) []TextDetection {
	if len(detections) == 0 {
		return nil
	}

	// Consider detections in descending confidence so the first kept
	// copy of any duplicate group is the most confident one.
	sorted := make([]TextDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var retained []TextDetection
	for _, candidate := range sorted {
		duplicate := false
		for _, kept := range retained {
			if a.isDuplicate(candidate, kept) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			retained = append(retained, candidate)
		}
	}
	return retained
}

func (a *Aggregator) isDuplicate(x, y TextDetection) bool {
	if normalizeText(x.Text) != normalizeText(y.Text) {
		return false
	}
	inter := x.Box.Intersect(y.Box)
	if inter.Empty() {
		return false
	}
	smaller := minArea(x.Box, y.Box)
	if smaller == 0 {
		return false
	}
	return float64(area(inter))/float64(smaller) > a.config.OverlapFraction
}

// binRows groups detections into text rows by top edge, each row
// anchored at its first member's top edge.
func (a *Aggregator) binRows(detections []TextDetection) [][]TextDetection {
	sorted := make([]TextDetection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
	})

	var rows [][]TextDetection
	rowTop := 0
	for _, d := range sorted {
		if len(rows) == 0 || d.Box.Min.Y-rowTop > a.config.RowTolerance {
			rows = append(rows, nil)
			rowTop = d.Box.Min.Y
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], d)
	}
	return rows
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func minArea(a, b image.Rectangle) int {
	x, y := area(a), area(b)
	if x < y {
		return x
	}
	return y
}
