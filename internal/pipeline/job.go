// Package pipeline drives one caption job from model load to published
// caption URLs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/metrics"
	"github.com/mgpai22/captionjob/internal/progress"
	"github.com/mgpai22/captionjob/internal/publish"
	"github.com/mgpai22/captionjob/internal/source"
	"github.com/mgpai22/captionjob/internal/subtitle"
	"github.com/mgpai22/captionjob/internal/transcribe"
	"github.com/mgpai22/captionjob/internal/translate"
)

const totalPhases = 4

// SourceResolver picks the media to recognize.
type SourceResolver interface {
	Resolve(ctx context.Context, ref string) source.Resolution
}

// Publisher stores one caption document and returns where it lives.
type Publisher interface {
	Publish(ctx context.Context, doc subtitle.Document) (publish.Artifact, error)
}

// what to do for one asset
type Options struct {
	Input        string
	LanguageHint string
	ModelSize    transcribe.ModelSize
	Compute      transcribe.ComputeProfile
	Decode       transcribe.DecodeOptions
	AllLanguages bool
	Languages    []string // targets besides the working language
	Format       subtitle.Format
}

// Session describes the recognition run of a job.
type Session struct {
	Source   string
	Via      source.Strategy
	Model    transcribe.ModelSize
	Duration float64 // seconds, 0 when unknown
	Segments int
	Fallback bool
	Started  time.Time
}

// Result is returned by Run on success and on failure.
type Result struct {
	JobID       string
	State       State
	Transitions []State
	Session     Session
	Artifacts   []publish.Artifact
}

// Primary is the working-language artifact, the headline result of a job.
func (r *Result) Primary() (publish.Artifact, bool) {
	if r == nil || len(r.Artifacts) == 0 {
		return publish.Artifact{}, false
	}
	return r.Artifacts[0], true
}

// Job wires the pipeline stages together. Translator may be nil when
// AllLanguages is off; Resolver and Metrics may be nil.
type Job struct {
	ID         string
	Options    Options
	Loader     transcribe.Loader
	Resolver   SourceResolver
	Translator translate.TrackTranslator
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Logger     *logging.Logger

	// reporter tuning, zero means the progress defaults
	CountEvery   int
	TickInterval time.Duration

	now    func() time.Time
	result *Result
}

func (j *Job) clock() time.Time {
	if j.now != nil {
		return j.now()
	}
	return time.Now()
}

func (j *Job) enter(state State) {
	from := j.result.State
	if !CanTransition(from, state) {
		j.Logger.Errorw("Invalid state transition", "from", from, "to", state)
	}
	j.result.State = state
	j.result.Transitions = append(j.result.Transitions, state)
	j.Logger.Infow("Job state changed", "from", from, "to", state)
}

// Run executes the job. The returned error is always a *Error.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if j.Logger == nil {
		j.Logger = logging.Nop()
	}
	j.result = &Result{JobID: j.ID}
	started := j.clock()

	err := j.run(ctx)

	elapsed := j.clock().Sub(started)
	if err != nil {
		j.enter(StateFailed)
		j.Logger.Errorw("Caption job failed",
			"kind", KindOf(err),
			"error", err,
			"elapsed", elapsed,
		)
	} else {
		j.enter(StateDone)
		primary, _ := j.result.Primary()
		j.Logger.Infow("Caption job finished",
			"artifacts", len(j.result.Artifacts),
			"elapsed", elapsed,
		)
		j.Logger.Infow("Primary URL: "+primary.URL, "url", primary.URL)
	}
	j.Metrics.SetJobResult(elapsed, err == nil)

	return j.result, err
}

func (j *Job) run(ctx context.Context) error {
	opts := j.Options

	j.enter(StateLoadingModel)
	progress.LogPhase(j.Logger, "Loading model", 0, totalPhases)
	model, err := j.Loader.Load(ctx, opts.ModelSize, opts.Compute)
	if err != nil {
		return fail(KindModelLoadFailure, err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			j.Logger.Warnw("Failed to close model", "error", err)
		}
	}()

	j.enter(StateResolvingSource)
	res := source.Resolution{Source: opts.Input, Via: source.StrategyDirect}
	if j.Resolver != nil {
		res = j.Resolver.Resolve(ctx, opts.Input)
	}
	j.result.Session = Session{
		Source:  res.Source,
		Via:     res.Via,
		Model:   opts.ModelSize,
		Started: j.clock(),
	}
	j.Logger.Infow("Source resolved", "source", res.Source, "via", res.Via)

	j.enter(StateTranscribing)
	progress.LogPhase(j.Logger, "Transcribing", 1, totalPhases)
	segments, err := j.transcribe(ctx, transcribe.NewDriver(model, opts.Decode, j.Logger), res.Source)
	if err != nil {
		return err
	}

	j.enter(StateGeneratingTracks)
	progress.LogPhase(j.Logger, "Generating caption tracks", 2, totalPhases)
	docs, err := j.generate(ctx, segments)
	if err != nil {
		return fail(KindTrackGenerationFailure, err)
	}

	j.enter(StatePublishing)
	progress.LogPhase(j.Logger, "Publishing", 3, totalPhases)
	for _, doc := range docs {
		artifact, err := j.Publisher.Publish(ctx, doc)
		if err != nil {
			return fail(KindPublishFailure, err)
		}
		j.Metrics.IncPublished(artifact.Language)
		j.result.Artifacts = append(j.result.Artifacts, artifact)
	}
	progress.LogPhase(j.Logger, "Done", totalPhases, totalPhases)
	return nil
}

// transcribe runs the primary pass and, on any error, exactly one
// reduced-settings pass.
func (j *Job) transcribe(ctx context.Context, driver *transcribe.Driver, src string) ([]subtitle.Segment, error) {
	segments, err := j.recognize(ctx, func() (transcribe.Stream, transcribe.SessionInfo, error) {
		return driver.Transcribe(ctx, src, j.Options.LanguageHint)
	})
	if err != nil {
		j.Logger.Warnw("Transcription failed, retrying with reduced settings", "error", err)
		j.enter(StateTranscribingFallback)
		j.result.Session.Fallback = true
		j.Metrics.IncFallbacks()

		segments, err = j.recognize(ctx, func() (transcribe.Stream, transcribe.SessionInfo, error) {
			return driver.TranscribeReduced(ctx, src)
		})
		if err != nil {
			return nil, fail(KindRecognitionFailure, err)
		}
	}

	usable := 0
	for _, seg := range segments {
		if seg.Usable() {
			usable++
		}
	}
	if usable == 0 {
		return nil, fail(KindEmptyTranscript, ErrEmptyTranscript)
	}

	j.Logger.Infow("Transcription complete",
		"segments", len(segments),
		"usable", usable,
		"fallback", j.result.Session.Fallback,
	)
	return segments, nil
}

// recognize consumes one recognition pass into a fresh log. The progress
// reporter is stopped and joined before it returns.
func (j *Job) recognize(
	ctx context.Context,
	start func() (transcribe.Stream, transcribe.SessionInfo, error),
) ([]subtitle.Segment, error) {
	stream, info, err := start()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	session := &j.result.Session
	if info.Duration > 0 {
		session.Duration = info.Duration
	}
	session.Segments = 0

	log := progress.NewLog()
	reporter := progress.NewReporter(log, session.Duration, j.clock(), j.Logger)
	if j.CountEvery > 0 {
		reporter.CountEvery = j.CountEvery
	}
	if j.TickInterval > 0 {
		reporter.TickInterval = j.TickInterval
	}
	reporter.Start(ctx)
	defer reporter.Stop()

	for {
		seg, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		n := log.Append(seg)
		session.Segments = n
		reporter.Observe(n, seg)
	}

	reporter.Stop()
	segments := log.Segments()
	j.Metrics.AddSegments(len(segments))
	return segments, nil
}

// generate renders the working-language track, then one translated track
// per target language when all languages are requested.
func (j *Job) generate(ctx context.Context, segments []subtitle.Segment) ([]subtitle.Document, error) {
	opts := j.Options
	primary := subtitle.NewTrack(transcribe.WorkingLanguage, segments)
	docs := []subtitle.Document{subtitle.Render(primary, opts.Format)}
	j.Logger.Infow("Caption track generated", "language", primary.Language, "cues", primary.Cues())

	if !opts.AllLanguages {
		return docs, nil
	}
	if j.Translator == nil {
		return nil, errors.New("no translator configured")
	}

	for _, lang := range opts.Languages {
		lang = strings.TrimSpace(lang)
		if lang == "" || strings.EqualFold(lang, transcribe.WorkingLanguage) {
			continue
		}
		track, err := j.Translator.TranslateTrack(ctx, primary, lang)
		if err != nil {
			return nil, fmt.Errorf("translate to %s: %w", lang, err)
		}
		docs = append(docs, subtitle.Render(track, opts.Format))
		j.Logger.Infow("Caption track generated",
			"language", lang,
			"name", translate.LanguageName(lang),
			"cues", track.Cues(),
		)
	}
	return docs, nil
}
