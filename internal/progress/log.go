// Package progress reports how far a recognition pass has come.
package progress

import (
	"sync"

	"github.com/mgpai22/captionjob/internal/subtitle"
)

// Log is the append-only segment log shared by the recognizer (single
// writer) and the reporter (reader).
type Log struct {
	mu       sync.RWMutex
	segments []subtitle.Segment
}

func NewLog() *Log {
	return &Log{}
}

// Append adds a segment and returns the new length.
func (l *Log) Append(seg subtitle.Segment) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.segments = append(l.segments, seg)
	return len(l.segments)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.segments)
}

// Last returns the most recent segment, if any.
func (l *Log) Last() (subtitle.Segment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.segments) == 0 {
		return subtitle.Segment{}, false
	}
	return l.segments[len(l.segments)-1], true
}

// Segments returns a copy of everything appended so far.
func (l *Log) Segments() []subtitle.Segment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]subtitle.Segment, len(l.segments))
	copy(out, l.segments)
	return out
}
