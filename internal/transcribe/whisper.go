package transcribe

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/subtitle"
)

//go:embed assets/whisper_worker.py
var workerScript []byte

var errModelClosed = errors.New("model is closed")

// request line sent to the worker
type workerRequest struct {
	ID     int    `json:"id"`
	Source string `json:"source"`
	DecodeOptions
}

// reply line read from the worker
type workerEvent struct {
	Event    string  `json:"event"`
	ID       int     `json:"id"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Language string  `json:"language"`
	Message  string  `json:"message"`
	Segments int     `json:"segments"`
}

// JSON-lines codec over the worker's stdin/stdout
type workerConn struct {
	enc    *json.Encoder
	reader *bufio.Reader
	logger *logging.Logger
}

func newWorkerConn(w io.Writer, r io.Reader, logger *logging.Logger) *workerConn {
	return &workerConn{
		enc:    json.NewEncoder(w),
		reader: bufio.NewReader(r),
		logger: logger,
	}
}

func (c *workerConn) send(req workerRequest) error {
	return c.enc.Encode(req)
}

// next returns the next protocol event; stray non-JSON output is skipped
func (c *workerConn) next() (workerEvent, error) {
	for {
		line, err := c.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			if line[0] != '{' {
				c.logger.Debugw("Skipping worker output", "line", string(line))
			} else {
				var ev workerEvent
				if jsonErr := json.Unmarshal(line, &ev); jsonErr != nil {
					return workerEvent{}, fmt.Errorf("malformed worker event: %w", jsonErr)
				}
				return ev, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return workerEvent{}, io.ErrUnexpectedEOF
			}
			return workerEvent{}, err
		}
	}
}

// WhisperLoader runs faster-whisper in a long-lived Python worker process.
type WhisperLoader struct {
	config LoaderConfig
	logger *logging.Logger
}

func NewWhisperLoader(cfg LoaderConfig, logger *logging.Logger) *WhisperLoader {
	return &WhisperLoader{config: cfg, logger: logger}
}

func (l *WhisperLoader) python() string {
	if l.config.Python != "" {
		return l.config.Python
	}
	return "python3"
}

func (l *WhisperLoader) device() string {
	if l.config.Device != "" {
		return l.config.Device
	}
	return "cpu"
}

func (l *WhisperLoader) downloadRoot() string {
	if l.config.DownloadRoot != "" {
		return l.config.DownloadRoot
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "huggingface", "hub")
}

// Load starts the worker and blocks until the model reports ready.
func (l *WhisperLoader) Load(
	ctx context.Context,
	size ModelSize,
	profile ComputeProfile,
) (Model, error) {
	script, err := os.CreateTemp("", "captionjob-whisper-*.py")
	if err != nil {
		return nil, fmt.Errorf("write worker script: %w", err)
	}
	scriptPath := script.Name()
	_, err = script.Write(workerScript)
	if closeErr := script.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(scriptPath)
		return nil, fmt.Errorf("write worker script: %w", err)
	}

	cmd := exec.Command(l.python(), "-u", scriptPath,
		"--model", string(size),
		"--compute-type", string(profile),
		"--device", l.device(),
		"--download-root", l.downloadRoot(),
	)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(scriptPath)
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.Remove(scriptPath)
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		os.Remove(scriptPath)
		return nil, fmt.Errorf("worker stderr: %w", err)
	}

	l.logger.Infow("Starting recognition worker",
		"python", l.python(),
		"model", size,
		"compute_type", profile,
		"device", l.device(),
	)

	if err := cmd.Start(); err != nil {
		os.Remove(scriptPath)
		return nil, fmt.Errorf("start worker: %w", err)
	}

	var stderrDone sync.WaitGroup
	stderrDone.Go(func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			l.logger.Debugw("Recognition worker", "stderr", scanner.Text())
		}
	})

	shutdown := func() error {
		_ = stdin.Close()
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		stderrDone.Wait()
		err := cmd.Wait()
		os.Remove(scriptPath)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}

	model := newWhisperModel(stdin, stdout, shutdown, l.logger)
	if err := model.awaitReady(ctx); err != nil {
		_ = model.Close()
		return nil, err
	}

	l.logger.Infow("Recognition model ready", "model", size, "compute_type", profile)
	return model, nil
}

// whisperModel is a loaded worker serving one request at a time
type whisperModel struct {
	mu       sync.Mutex
	conn     *workerConn
	active   *workerStream
	nextID   int
	closed   bool
	stopOnce sync.Once
	stopErr  error
	shutdown func() error
	logger   *logging.Logger
}

func newWhisperModel(
	w io.Writer,
	r io.Reader,
	shutdown func() error,
	logger *logging.Logger,
) *whisperModel {
	return &whisperModel{
		conn:     newWorkerConn(w, r, logger),
		shutdown: shutdown,
		logger:   logger,
	}
}

func (m *whisperModel) stop() error {
	m.stopOnce.Do(func() {
		if m.shutdown != nil {
			m.stopErr = m.shutdown()
		}
	})
	return m.stopErr
}

func (m *whisperModel) awaitReady(ctx context.Context) error {
	type result struct {
		ev  workerEvent
		err error
	}
	ch := make(chan result, 1)
	go func() {
		ev, err := m.conn.next()
		ch <- result{ev, err}
	}()

	select {
	case <-ctx.Done():
		_ = m.stop()
		return fmt.Errorf("waiting for model: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("worker exited before the model was ready: %w", r.err)
		}
		switch r.ev.Event {
		case "ready":
			return nil
		case "error":
			return fmt.Errorf("model load failed: %s", r.ev.Message)
		default:
			return fmt.Errorf("unexpected worker event %q before ready", r.ev.Event)
		}
	}
}

// Recognize sends one request and waits for the session info. The worker is
// killed if ctx ends while the stream is open.
func (m *whisperModel) Recognize(
	ctx context.Context,
	source string,
	opts DecodeOptions,
) (Stream, SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, SessionInfo{}, errModelClosed
	}
	if m.active != nil {
		m.active.drain()
		m.active = nil
	}

	m.nextID++
	id := m.nextID
	if err := m.conn.send(workerRequest{ID: id, Source: source, DecodeOptions: opts}); err != nil {
		return nil, SessionInfo{}, fmt.Errorf("send request: %w", err)
	}

	stopWatch := context.AfterFunc(ctx, func() {
		m.logger.Warnw("Context ended, stopping recognition worker", "request", id)
		_ = m.stop()
	})

	ev, err := m.conn.next()
	if err != nil {
		stopWatch()
		return nil, SessionInfo{}, fmt.Errorf("read session info: %w", err)
	}
	if ev.ID != id {
		stopWatch()
		return nil, SessionInfo{}, fmt.Errorf("worker answered request %d, expected %d", ev.ID, id)
	}
	switch ev.Event {
	case "info":
	case "error":
		stopWatch()
		return nil, SessionInfo{}, fmt.Errorf("recognition failed: %s", ev.Message)
	default:
		stopWatch()
		return nil, SessionInfo{}, fmt.Errorf("unexpected worker event %q", ev.Event)
	}

	stream := &workerStream{model: m, id: id, stopWatch: stopWatch}
	m.active = stream
	return stream, SessionInfo{Duration: ev.Duration, Language: ev.Language}, nil
}

func (m *whisperModel) Close() error {
	m.mu.Lock()
	m.closed = true
	m.active = nil
	m.mu.Unlock()
	return m.stop()
}

// workerStream reads segment events for one request
type workerStream struct {
	model     *whisperModel
	id        int
	err       error // terminal state, io.EOF on success
	stopWatch func() bool
}

func (s *workerStream) finish(err error) {
	s.err = err
	if s.stopWatch != nil {
		s.stopWatch()
	}
}

func (s *workerStream) Next() (subtitle.Segment, error) {
	if s.err != nil {
		return subtitle.Segment{}, s.err
	}

	ev, err := s.model.conn.next()
	if err != nil {
		s.finish(fmt.Errorf("read segment: %w", err))
		return subtitle.Segment{}, s.err
	}
	if ev.ID != s.id {
		s.finish(fmt.Errorf("worker answered request %d, expected %d", ev.ID, s.id))
		return subtitle.Segment{}, s.err
	}

	switch ev.Event {
	case "segment":
		return subtitle.Segment{Start: ev.Start, End: ev.End, Text: ev.Text}, nil
	case "done":
		s.finish(io.EOF)
	case "error":
		s.finish(fmt.Errorf("recognition failed: %s", ev.Message))
	default:
		s.finish(fmt.Errorf("unexpected worker event %q", ev.Event))
	}
	return subtitle.Segment{}, s.err
}

// drain consumes events until the request ends so the next request starts
// on a clean line
func (s *workerStream) drain() {
	for s.err == nil {
		_, _ = s.Next()
	}
}

func (s *workerStream) Close() error {
	s.model.mu.Lock()
	defer s.model.mu.Unlock()

	if s.model.closed {
		s.finish(errModelClosed)
		return nil
	}
	s.drain()
	if s.model.active == s {
		s.model.active = nil
	}
	return nil
}
