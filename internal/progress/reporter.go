package progress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/subtitle"
)

const (
	DefaultCountEvery    = 50
	DefaultCountInterval = 30 * time.Second
	DefaultTickInterval  = 10 * time.Second
)

// Reporter logs recognition progress two ways: from the producer every
// CountEvery segments (or after CountInterval of silence), and from its own
// goroutine every TickInterval.
type Reporter struct {
	CountEvery    int
	CountInterval time.Duration
	TickInterval  time.Duration

	log      *Log
	duration float64 // seconds, 0 when unknown
	started  time.Time
	logger   *logging.Logger
	now      func() time.Time

	lastReport time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewReporter(log *Log, duration float64, started time.Time, logger *logging.Logger) *Reporter {
	return &Reporter{
		CountEvery:    DefaultCountEvery,
		CountInterval: DefaultCountInterval,
		TickInterval:  DefaultTickInterval,
		log:           log,
		duration:      duration,
		started:       started,
		logger:        logger,
		now:           time.Now,
		lastReport:    started,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// snapshot of progress at one point in time
type Stats struct {
	Segments int
	Position float64 // end of the latest segment, seconds
	Duration float64
	Elapsed  time.Duration
}

// Percent is -1 when the duration is unknown.
func (s Stats) Percent() float64 {
	if s.Duration <= 0 {
		return -1
	}
	return s.Position / s.Duration * 100
}

// Rate is media seconds recognized per wall-clock second.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return s.Position / s.Elapsed.Seconds()
}

// ETA is 0 when it cannot be estimated.
func (s Stats) ETA() time.Duration {
	rate := s.Rate()
	if s.Duration <= 0 || rate <= 0 || s.Position >= s.Duration {
		return 0
	}
	return time.Duration((s.Duration - s.Position) / rate * float64(time.Second))
}

func (r *Reporter) stats(n int, position float64) Stats {
	return Stats{
		Segments: n,
		Position: position,
		Duration: r.duration,
		Elapsed:  r.now().Sub(r.started),
	}
}

// Observe is called by the producer after appending segment n (1-based).
func (r *Reporter) Observe(n int, seg subtitle.Segment) {
	now := r.now()
	every := r.CountEvery
	if every <= 0 {
		every = DefaultCountEvery
	}
	if n%every != 0 && now.Sub(r.lastReport) <= r.CountInterval {
		return
	}
	r.lastReport = now

	s := r.stats(n, seg.End)
	r.logger.Infow(fmt.Sprintf("Processing segment %d: %s", n, describe(s, false)),
		"segments", s.Segments,
		"position", round1(s.Position),
		"percent", round1(s.Percent()),
		"rate", round1(s.Rate()),
	)
}

// Start launches the wall-clock reporter. It runs until Stop or ctx ends.
func (r *Reporter) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		interval := r.TickInterval
		if interval <= 0 {
			interval = DefaultTickInterval
		}
		go func() {
			defer close(r.done)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-r.stop:
					return
				case <-ticker.C:
					select {
					case <-r.stop:
						return
					default:
					}
					r.tick()
				}
			}
		}()
	})
}

// Stop signals the reporter goroutine and waits for it to exit. Safe to call
// more than once, or without Start.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	started := true
	r.startOnce.Do(func() {
		started = false
		close(r.done)
	})
	if started {
		<-r.done
	}
}

func (r *Reporter) tick() {
	last, ok := r.log.Last()
	if !ok {
		return
	}
	s := r.stats(r.log.Len(), last.End)
	r.logger.Infow("Transcribing... "+describe(s, true),
		"segments", s.Segments,
		"position", round1(s.Position),
		"percent", round1(s.Percent()),
		"rate", round1(s.Rate()),
		"eta", formatETA(s.ETA()),
	)
}

// describe renders a progress line; withETA adds the remaining time
func describe(s Stats, withETA bool) string {
	if s.Duration <= 0 {
		if withETA {
			return fmt.Sprintf("%d segments processed | Latest: %.1fs", s.Segments, s.Position)
		}
		return fmt.Sprintf("%.1fs", s.Position)
	}

	var base string
	if withETA {
		base = fmt.Sprintf("%.1fs/%.1fs (%.1f%%)", s.Position, s.Duration, s.Percent())
	} else {
		base = fmt.Sprintf("%.1fs (%.1f%%)", s.Position, s.Percent())
	}
	extras := []string{fmt.Sprintf("@ %.1fx", s.Rate())}
	if withETA {
		if eta := formatETA(s.ETA()); eta != "" {
			extras = append(extras, "ETA "+eta)
		}
	}
	return base + " | " + strings.Join(extras, " | ")
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || (hours == 0 && minutes == 0) {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, "")
}

func round1(v float64) float64 {
	if v < 0 {
		return v
	}
	return float64(int64(v*10+0.5)) / 10
}

// LogPhase logs the overall job progress when a phase starts.
func LogPhase(logger *logging.Logger, name string, phase, total int) {
	if total <= 0 {
		return
	}
	percent := float64(phase) / float64(total) * 100
	filled := int(percent / 5)
	if filled > 20 {
		filled = 20
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
	logger.Infow(fmt.Sprintf("OVERALL PROGRESS: [%s] %.0f%% - %s", bar, percent, name),
		"phase", phase,
		"phases", total,
	)
}
