package subtitle

import (
	"fmt"
	"math"
	"strings"
)

const vttHeader = "WEBVTT\n\n"

// EncodeVTT serializes the track as WebVTT. Cues carry no identifiers or
// settings; segments with blank text are skipped.
func EncodeVTT(track Track) []byte {
	var sb strings.Builder

	// VTT header
	sb.WriteString(vttHeader)

	for _, seg := range track.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		// timestamps: 00:00:00.000 --> 00:00:00.000
		sb.WriteString(fmt.Sprintf("%s --> %s\n",
			FormatTimestamp(seg.Start),
			FormatTimestamp(seg.End)))

		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return []byte(sb.String())
}

// EncodeSRT serializes the track as SubRip.
func EncodeSRT(track Track) []byte {
	var sb strings.Builder
	index := 1
	for _, seg := range track.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		// index (1-based)
		sb.WriteString(fmt.Sprintf("%d\n", index))
		index++

		// timestamps: 00:00:00,000 --> 00:00:00,000
		sb.WriteString(fmt.Sprintf("%s --> %s\n",
			formatSRTTimestamp(seg.Start),
			formatSRTTimestamp(seg.End)))

		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return []byte(sb.String())
}

// FormatTimestamp renders seconds as HH:MM:SS.mmm. Negative, NaN and infinite
// values clamp to zero; the millisecond is rounded half to even.
func FormatTimestamp(seconds float64) string {
	h, m, s, ms := splitMillis(toMillis(seconds))
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func formatSRTTimestamp(seconds float64) string {
	h, m, s, ms := splitMillis(toMillis(seconds))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func toMillis(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return int64(math.RoundToEven(seconds * 1000))
}

func splitMillis(total int64) (h, m, s, ms int64) {
	h = total / 3_600_000
	rem := total % 3_600_000
	m = rem / 60_000
	rem %= 60_000
	s = rem / 1000
	ms = rem % 1000
	return h, m, s, ms
}
