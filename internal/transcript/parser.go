package transcript

import (
	"context"
	"math"
	"strconv"
	"strings"

	"ielts-practice-engine/internal/domain"
)

// Source fetches raw caption-track text by URL.
type Source interface {
	GetTranscript(ctx context.Context, url string) (string, error)
}

const timecodeArrow = "-->"

// Parse converts caption-track text (header, then "start --> end" blocks separated
// by blank lines) into cues in source order. It never fails: malformed
// timestamps become 0 and blocks without text are dropped.
func Parse(raw string) []domain.Cue {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	cues := make([]domain.Cue, 0)

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, timecodeArrow) {
			// header, cue identifiers, NOTE blocks
			continue
		}
		start, end := parseTimecodeLine(line)

		var text []string
		for i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next == "" {
				break
			}
			text = append(text, next)
			i++
		}
		if len(text) == 0 {
			continue
		}
		cues = append(cues, domain.Cue{
			StartTime: start,
			EndTime:   end,
			Text:      strings.Join(text, " "),
		})
	}
	return cues
}

func parseTimecodeLine(line string) (float64, float64) {
	left, right, _ := strings.Cut(line, timecodeArrow)
	// cue settings ("align:start position:10%") may follow the end timestamp
	fields := strings.Fields(right)
	end := ""
	if len(fields) > 0 {
		end = fields[0]
	}
	return ParseTimestamp(left), ParseTimestamp(end)
}

// ParseTimestamp accepts HH:MM:SS.mmm, MM:SS.mmm or bare seconds. A comma is
// accepted as the decimal separator. Anything unparseable yields 0.
func ParseTimestamp(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}

	var total float64
	for i, part := range parts {
		var (
			v   float64
			err error
		)
		if i == len(parts)-1 {
			v, err = strconv.ParseFloat(part, 64)
		} else {
			var n int
			n, err = strconv.Atoi(part)
			v = float64(n)
		}
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		total = total*60 + v
	}
	return total
}
