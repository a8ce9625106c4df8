package context

import (
	"strconv"
	"strings"
)

// TruncationMarker stands in for omitted lines in excerpts and trimmed sections.
const TruncationMarker = "... [truncated] ..."

// Excerpt defaults.
const (
	DefaultExcerptRadius = 10
	fallbackHeadLines    = 50
	fallbackTailLines    = 50
)

// Segment is one piece of an excerpt: a numbered source line or a truncation marker.
type Segment struct {
	// Line is the 1-based line number; zero for markers
	Line   int
	Text   string
	Marker bool
}

// lineRange is an inclusive range of 0-based line indexes.
type lineRange struct {
	start, end int
}

// Excerpt reduces lines to windows of radius lines around every line for
// which hit returns true. Overlapping or adjacent windows are merged, and a
// marker stands in for every omitted run, including at either end. With no
// hits at all, files longer than 100 lines are cut to their first and last
// 50 lines; shorter files are returned whole.
func Excerpt(lines []string, hit func(line string) bool, radius int) []Segment {
	if radius < 0 {
		radius = 0
	}

	var ranges []lineRange
	for i, line := range lines {
		if !hit(line) {
			continue
		}
		r := lineRange{start: max(0, i-radius), end: min(len(lines)-1, i+radius)}
		if n := len(ranges); n > 0 && r.start <= ranges[n-1].end+1 {
			ranges[n-1].end = max(ranges[n-1].end, r.end)
			continue
		}
		ranges = append(ranges, r)
	}

	if len(ranges) == 0 {
		if len(lines) <= fallbackHeadLines+fallbackTailLines {
			return emit(lines, []lineRange{{0, len(lines) - 1}})
		}
		ranges = []lineRange{
			{0, fallbackHeadLines - 1},
			{len(lines) - fallbackTailLines, len(lines) - 1},
		}
	}

	return emit(lines, ranges)
}

// emit turns sorted, disjoint, non-adjacent ranges into segments.
func emit(lines []string, ranges []lineRange) []Segment {
	var out []Segment
	next := 0
	for _, r := range ranges {
		if r.end < r.start {
			continue
		}
		if r.start > next {
			out = append(out, Segment{Marker: true, Text: TruncationMarker})
		}
		for i := r.start; i <= r.end; i++ {
			out = append(out, Segment{Line: i + 1, Text: lines[i]})
		}
		next = r.end + 1
	}
	if next < len(lines) && len(out) > 0 {
		out = append(out, Segment{Marker: true, Text: TruncationMarker})
	}
	return out
}

// RenderSegments joins segments into text, one per line, prefixing source
// lines with their line number.
func RenderSegments(segments []Segment) string {
	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if seg.Marker {
			sb.WriteString(seg.Text)
			continue
		}
		sb.WriteString(strconv.Itoa(seg.Line))
		sb.WriteString(": ")
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// ExtractRelevant excerpts content around lines that mention a keyword
// (case-insensitive) or a literal technical term (case-sensitive).
func ExtractRelevant(content string, keywords []string, techTerms map[string]float64, radius int) string {
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}
	literals := make([]string, 0, len(techTerms))
	for term := range techTerms {
		if term != "" && !strings.HasPrefix(term, "*.") {
			literals = append(literals, term)
		}
	}

	hit := func(line string) bool {
		lower := strings.ToLower(line)
		for _, kw := range lowered {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		for _, term := range literals {
			if strings.Contains(line, term) {
				return true
			}
		}
		return false
	}

	return RenderSegments(Excerpt(strings.Split(content, "\n"), hit, radius))
}
