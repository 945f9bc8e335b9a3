package transcript

import (
	"math"
	"testing"
)

const threeBlocks = `WEBVTT
Kind: captions

00:00:00.000 --> 00:00:04.500
Good morning, and welcome
to the museum tour.

00:04.500 --> 00:09.250 align:start
Please keep your tickets with you.

3
00:00:09.250 --> 00:00:12.000
The tour lasts one hour.
`

func TestParseWellFormedBlocks(t *testing.T) {
	cues := Parse(threeBlocks)
	if len(cues) != 3 {
		t.Fatalf("expected 3 cues, got %d: %+v", len(cues), cues)
	}

	want := []struct {
		start, end float64
		text       string
	}{
		{0, 4.5, "Good morning, and welcome to the museum tour."},
		{4.5, 9.25, "Please keep your tickets with you."},
		{9.25, 12, "The tour lasts one hour."},
	}
	for i, w := range want {
		c := cues[i]
		if !almostEqual(c.StartTime, w.start) || !almostEqual(c.EndTime, w.end) || c.Text != w.text {
			t.Fatalf("cue %d: expected %+v, got %+v", i, w, c)
		}
	}
}

func TestParseDropsBlockWithoutText(t *testing.T) {
	raw := "WEBVTT\n\n" +
		"00:00.000 --> 00:02.000\nfirst\n\n" +
		"00:02.000 --> 00:04.000\n   \n\n" +
		"00:04.000 --> 00:06.000\nthird\n"
	cues := Parse(raw)
	if len(cues) != 2 {
		t.Fatalf("expected 2 cues, got %d: %+v", len(cues), cues)
	}
	if cues[0].Text != "first" || cues[1].Text != "third" {
		t.Fatalf("unexpected cues %+v", cues)
	}
}

func TestParseEmptyInput(t *testing.T) {
	cues := Parse("")
	if cues == nil || len(cues) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", cues)
	}
	if got := Parse("WEBVTT\n\nno timecodes here\n"); len(got) != 0 {
		t.Fatalf("expected no cues, got %+v", got)
	}
}

func TestParseMalformedTimestampBecomesZero(t *testing.T) {
	cues := Parse("WEBVTT\r\n\r\nxx:yy --> 00:03.000\r\nhello\r\n")
	if len(cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(cues))
	}
	if cues[0].StartTime != 0 || !almostEqual(cues[0].EndTime, 3) || cues[0].Text != "hello" {
		t.Fatalf("unexpected cue %+v", cues[0])
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"01:02:03.500": 3723.5,
		"02:03.250":    123.25,
		"00:00:01,200": 1.2,
		"7.5":          7.5,
		"":             0,
		"abc":          0,
		"1:2:3:4":      0,
		"-1:00":        0,
	}
	for in, want := range cases {
		if got := ParseTimestamp(in); !almostEqual(got, want) {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", in, got, want)
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
