// Package session drives one oral exam run: mic ownership, phase
// machine, countdowns, transcript accumulation, recording and the
// end-of-run packaging.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/exam"
	"github.com/oralab/exo/pkg/voice"
	"github.com/oralab/exo/pkg/voice/audio"
)

const (
	defaultPrepSeconds  = 60
	defaultTimeLimit    = 300
	defaultStopGrace    = 600 * time.Millisecond
	defaultTimeoutGrace = 12 * time.Second
)

// Config wires a Runner. NewProvider and OpenMic are required; the
// collaborator interfaces are optional and degrade gracefully when nil.
type Config struct {
	Scenario    types.Scenario
	NewProvider func() voice.Provider
	OpenMic     func(ctx context.Context) (audio.Source, error)

	Facts       FactExtractor
	Evaluator   Evaluator
	Transcriber Transcriber
	Results     ResultStore

	Voice       string
	SkipPrep    bool
	PrepSeconds int

	// StopGrace bounds the wrap-up wait after a user stop,
	// TimeoutGrace after expiry. The wait ends early when the
	// provider reports response end.
	StopGrace    time.Duration
	TimeoutGrace time.Duration

	// TickInterval shortens countdown ticks in tests.
	TickInterval time.Duration

	Logger *slog.Logger

	OnState func(types.ConnectionState)
	OnPhase func(types.SessionPhase)
	OnTick  func(phase types.SessionPhase, remaining int)
}

// Runner executes exam sessions for one scenario. A Runner may be
// restarted after reaching the stopped or error state; each run gets a
// fresh provider from NewProvider.
type Runner struct {
	cfg    Config
	logger *slog.Logger

	transcript *TranscriptLog
	recorder   *Recorder
	prepTimer  *Countdown
	examTimer  *Countdown

	mu          sync.Mutex
	state       types.ConnectionState
	phase       types.SessionPhase
	provider    voice.Provider
	mic         audio.Source
	micStopped  bool
	finished    bool
	examStarted bool
	warn60Sent  bool
	warn10Sent  bool
	lastError   error
	summary     *types.SessionSummary
	sessionID   string
	respEnd     chan struct{}
}

// NewRunner builds a Runner. Returns an error when the config is
// missing its required pieces.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.NewProvider == nil {
		return nil, core.NewInvalidRequestError("session: NewProvider is required")
	}
	if cfg.OpenMic == nil {
		return nil, core.NewInvalidRequestError("session: OpenMic is required")
	}
	if cfg.PrepSeconds <= 0 {
		cfg.PrepSeconds = defaultPrepSeconds
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if cfg.TimeoutGrace <= 0 {
		cfg.TimeoutGrace = defaultTimeoutGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:        cfg,
		logger:     logger,
		transcript: &TranscriptLog{},
		recorder:   &Recorder{},
		prepTimer:  &Countdown{Interval: cfg.TickInterval},
		examTimer:  &Countdown{Interval: cfg.TickInterval},
		state:      types.StateIdle,
		phase:      types.PhaseNone,
	}, nil
}

// State returns the current connection state.
func (r *Runner) State() types.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Phase returns the current exam phase.
func (r *Runner) Phase() types.SessionPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Transcript returns the live transcript log.
func (r *Runner) Transcript() *TranscriptLog { return r.transcript }

// Summary returns the end-of-run record, or nil while running.
func (r *Runner) Summary() *types.SessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// SessionID returns the persisted session id, empty until packaging.
func (r *Runner) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// Err returns the error that put the runner in the error state.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

// Start begins a run: mic acquisition, prebrief, preparation countdown
// (unless skipped) and then the live exam. Only valid from the idle,
// stopped or error states.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case types.StateIdle, types.StateStopped, types.StateError:
	default:
		r.mu.Unlock()
		return core.NewInvalidRequestError("session already running")
	}
	r.finished = false
	r.examStarted = false
	r.warn60Sent = false
	r.warn10Sent = false
	r.micStopped = false
	r.lastError = nil
	r.summary = nil
	r.sessionID = ""
	r.respEnd = make(chan struct{}, 1)
	r.provider = r.cfg.NewProvider()
	r.mu.Unlock()
	r.transcript.Reset()

	r.setState(types.StateRequestingMic)
	mic, err := r.cfg.OpenMic(ctx)
	if err != nil {
		micErr := core.NewMicrophoneError("microphone unavailable: " + err.Error())
		r.fail(micErr)
		return micErr
	}
	r.mu.Lock()
	r.mic = mic
	r.mu.Unlock()
	r.recorder.Start(mic)

	var ocr *types.OCRResult
	if r.cfg.Scenario.SectionKey == types.SectionA && r.cfg.Facts != nil {
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		ocr, err = r.cfg.Facts.ExtractFacts(octx, r.cfg.Scenario.SectionKey, r.cfg.Scenario.ID)
		cancel()
		if err != nil {
			// The examiner invents plausible details instead.
			r.logger.Warn("fact extraction failed, continuing without", "err", err)
			ocr = nil
		}
	}

	r.setPhase(types.PhasePrebrief)
	r.transcript.AppendLine(types.RoleSystem, exam.Prebrief(r.cfg.Scenario))

	if r.cfg.SkipPrep {
		return r.beginExam(ctx, ocr)
	}

	r.setState(types.StatePrepping)
	r.setPhase(types.PhasePrep)
	r.prepTimer.Start(r.cfg.PrepSeconds,
		func(remaining int) { r.emitTick(types.PhasePrep, remaining) },
		func() {
			if err := r.beginExam(context.Background(), ocr); err != nil {
				r.logger.Error("exam start after preparation failed", "err", err)
			}
		})
	return nil
}

func (r *Runner) beginExam(ctx context.Context, ocr *types.OCRResult) error {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return nil
	}
	p := r.provider
	mic := r.mic
	respEnd := r.respEnd
	r.mu.Unlock()

	r.setState(types.StateFetchingToken)

	p.OnTranscript(r.handleTranscript)
	p.OnResponseEnd(func() {
		select {
		case respEnd <- struct{}{}:
		default:
		}
	})
	p.OnError(r.handleProviderError)
	p.UpdateSession(exam.Instructions(r.cfg.Scenario, ocr), r.cfg.Voice)

	r.setState(types.StateConnecting)
	if err := p.Connect(ctx, mic, voice.Config{Voice: r.cfg.Voice, Language: "fr"}); err != nil {
		r.fail(err)
		return err
	}
	r.setState(types.StateConnected)
	r.setPhase(types.PhaseExam)
	r.transcript.AppendLine(types.RoleSystem, "Début de l'épreuve.")

	limit := r.cfg.Scenario.TimeLimitSec
	if limit <= 0 {
		limit = defaultTimeLimit
	}
	r.examTimer.Start(limit, r.handleExamTick, func() { r.handleTimeout() })

	if r.cfg.Scenario.SectionKey == types.SectionA {
		// The interlocutor answers the call and speaks first.
		r.mu.Lock()
		r.examStarted = true
		r.mu.Unlock()
		p.SendMessage(exam.OpeningInstruction(r.cfg.Scenario), nil)
	} else {
		r.transcript.AppendLine(types.RoleSystem, "À vous de commencer : essayez de convaincre votre ami(e).")
	}
	return nil
}

func (r *Runner) handleExamTick(remaining int) {
	r.emitTick(types.PhaseExam, remaining)

	limit := r.cfg.Scenario.TimeLimitSec
	if limit <= 0 {
		limit = defaultTimeLimit
	}
	switch remaining {
	case 60:
		if limit <= 60 {
			return
		}
		r.mu.Lock()
		send := !r.warn60Sent && !r.finished
		r.warn60Sent = true
		p := r.provider
		r.mu.Unlock()
		if send {
			p.SendMessage(exam.WarningInstruction(r.cfg.Scenario.SectionKey, 60), &voice.ResponseConfig{Urgent: true})
		}
	case 10:
		r.mu.Lock()
		send := !r.warn10Sent && !r.finished
		r.warn10Sent = true
		p := r.provider
		r.mu.Unlock()
		if send {
			p.SendMessage(exam.WarningInstruction(r.cfg.Scenario.SectionKey, 10), &voice.ResponseConfig{Urgent: true})
		}
	}
}

func (r *Runner) handleTranscript(text string, role types.Role) {
	switch role {
	case types.RoleAssistant:
		r.transcript.AppendDelta(types.RoleAssistant, text)
	case types.RoleUser:
		r.transcript.AppendLine(types.RoleUser, text)
		r.mu.Lock()
		if r.phase != types.PhaseExam || r.finished {
			r.mu.Unlock()
			return
		}
		r.examStarted = true
		p := r.provider
		r.mu.Unlock()
		// Non-urgent: the adapter drops it while a reply is in flight.
		p.SendMessage(exam.UserTurnInstruction(r.cfg.Scenario), nil)
	}
}

func (r *Runner) handleProviderError(err error) {
	// The countdown keeps running; a later stop or expiry still runs
	// the full teardown.
	r.logger.Error("provider error", "err", err)
	r.mu.Lock()
	r.lastError = err
	r.mu.Unlock()
	r.setState(types.StateError)
}

func (r *Runner) handleTimeout() {
	r.finish(context.Background(), types.StopTimeout)
}

// Stop ends the run on the candidate's request. Safe to call more than
// once and concurrently with expiry; the finish path runs exactly once.
func (r *Runner) Stop(ctx context.Context) {
	r.finish(ctx, types.StopUser)
}

func (r *Runner) finish(ctx context.Context, reason types.StopReason) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	p := r.provider
	examStarted := r.examStarted
	respEnd := r.respEnd
	r.mu.Unlock()

	r.prepTimer.Stop()
	r.examTimer.Stop()
	r.setState(types.StateStopping)

	if examStarted && p != nil {
		// Clear any stale signal before requesting the wrap-up.
		select {
		case <-respEnd:
		default:
		}
		p.SendMessage(exam.WrapUpInstruction(r.cfg.Scenario.SectionKey, reason), &voice.ResponseConfig{Urgent: true})
		grace := r.cfg.StopGrace
		if reason == types.StopTimeout {
			grace = r.cfg.TimeoutGrace
		}
		select {
		case <-respEnd:
		case <-time.After(grace):
		case <-ctx.Done():
		}
	}

	blob := r.recorder.Stop()
	if blob != nil && !r.transcript.HasSpeech() && r.cfg.Transcriber != nil {
		if text, err := r.cfg.Transcriber.Transcribe(ctx, blob); err == nil && text != "" {
			r.transcript.AppendLine(types.RoleUser, text)
		} else if err != nil {
			r.logger.Warn("fallback transcription failed", "err", err)
		}
	}

	r.teardown()

	summary := types.SessionSummary{
		EndedAtMS:  time.Now().UnixMilli(),
		Reason:     reason,
		Transcript: r.transcript.Snapshot(),
		Entries:    r.transcript.EvaluationForm(),
		EvalStatus: types.EvaluationIdle,
	}
	if r.cfg.Evaluator != nil && len(summary.Entries) > 0 {
		summary.EvalStatus = types.EvaluationLoading
		result, err := r.cfg.Evaluator.Evaluate(ctx, r.cfg.Scenario, summary.Entries)
		if err != nil {
			summary.EvalStatus = types.EvaluationError
			summary.EvaluationError = err.Error()
		} else {
			summary.EvalStatus = types.EvaluationDone
			summary.Evaluation = result
		}
	}

	var sessionID string
	if r.cfg.Results != nil {
		id, err := PackageResult(ctx, r.cfg.Results, r.cfg.Scenario, summary)
		if err != nil {
			r.logger.Warn("result persistence failed, id is local only", "err", err)
		}
		sessionID = id
	}

	r.mu.Lock()
	r.summary = &summary
	r.sessionID = sessionID
	r.mu.Unlock()

	r.setPhase(types.PhaseNone)
	r.setState(types.StateStopped)
}

// teardown releases the transport and the mic. Idempotent.
func (r *Runner) teardown() {
	r.mu.Lock()
	p := r.provider
	mic := r.mic
	stopped := r.micStopped
	r.micStopped = true
	r.mu.Unlock()

	if p != nil {
		p.Disconnect()
	}
	if mic != nil && !stopped {
		mic.Stop()
	}
}

func (r *Runner) fail(err error) {
	r.prepTimer.Stop()
	r.examTimer.Stop()
	r.recorder.Stop()
	r.teardown()
	r.mu.Lock()
	r.lastError = err
	r.mu.Unlock()
	r.setState(types.StateError)
	r.setPhase(types.PhaseNone)
}

func (r *Runner) setState(s types.ConnectionState) {
	r.mu.Lock()
	if r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	r.mu.Unlock()
	if r.cfg.OnState != nil {
		r.cfg.OnState(s)
	}
}

func (r *Runner) setPhase(ph types.SessionPhase) {
	r.mu.Lock()
	if r.phase == ph {
		r.mu.Unlock()
		return
	}
	r.phase = ph
	r.mu.Unlock()
	if r.cfg.OnPhase != nil {
		r.cfg.OnPhase(ph)
	}
}

func (r *Runner) emitTick(ph types.SessionPhase, remaining int) {
	if r.cfg.OnTick != nil {
		r.cfg.OnTick(ph, remaining)
	}
}
