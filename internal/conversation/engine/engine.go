// Package engine drives one conversation session through its lifecycle:
// initialization, the recording → transcription → bot-reply exchange loop,
// goal progression, and termination. All external collaborators (chat,
// speech, progress analysis) are injected as capability interfaces, and all
// top-level operations are serialised per engine, so a session never sees
// two mutations race.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/internal/conversation/feed"
	"github.com/Bualoitech/learnliko/internal/observe"
	"github.com/Bualoitech/learnliko/internal/vocab"
	"github.com/Bualoitech/learnliko/pkg/provider/assess"
	"github.com/Bualoitech/learnliko/pkg/provider/chat"
	"github.com/Bualoitech/learnliko/pkg/provider/simplify"
	"github.com/Bualoitech/learnliko/pkg/provider/speech"
)

// ┌─────────────────────────────────────────────────────────────────────────┐
// │ States                                                                  │
// └─────────────────────────────────────────────────────────────────────────┘

// State is the engine's current phase.
type State string

const (
	// StateIdle means the session has not been initialized yet.
	StateIdle State = "idle"

	// StateInitializing means the intro turn is being produced.
	StateInitializing State = "initializing"

	// StateAwaitingUserInput means the engine is ready for a recording.
	StateAwaitingUserInput State = "awaiting_user_input"

	// StateTranscribing means a user recording is being transcribed.
	StateTranscribing State = "transcribing"

	// StateAwaitingBotReply means the bot's reply is being produced. The
	// engine stays here if every reply attempt fails; only Reset recovers.
	StateAwaitingBotReply State = "awaiting_bot_reply"

	// StateFinished means the conversation has ended.
	StateFinished State = "finished"
)

// maxReplyAttempts bounds the bot-reply parse loop: the initial completion
// plus five corrective retries.
const maxReplyAttempts = 6

// correctiveInstruction is appended to the completion history after a reply
// that failed to parse, before the next attempt.
const correctiveInstruction = `Your previous reply was not valid. Reply again using only the JSON scheme {"message": string, "emotion": string} with no other text.`

// schemeInstruction is appended to the persona's system prompt so every
// completion answers in the parseable reply scheme.
const schemeInstruction = `

Always answer with a single JSON object of the form {"message": string, "emotion": string}. "message" is what you say to the learner. "emotion" is one of: neutral, happy, sad, angry, surprised, confused.`

// RecapScheduler triggers asynchronous recap computation for a finished
// session. Implemented by the recap computer; the engine fires it at most
// once per session.
type RecapScheduler interface {
	Schedule(s *conversation.Session)
}

// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Engine                                                                  │
// └─────────────────────────────────────────────────────────────────────────┘

// Config assembles an [Engine]'s session and collaborators.
type Config struct {
	// Session is the conversation aggregate the engine owns. Required.
	Session *conversation.Session

	// Chat produces the persona's replies. Required.
	Chat chat.Provider

	// Synthesizer voices the persona's replies. Required.
	Synthesizer speech.Synthesizer

	// Transcriber transcribes learner recordings. Required.
	Transcriber speech.Transcriber

	// Simplifier adapts reply wording to the learner's level. Defaults to
	// [simplify.Passthrough].
	Simplifier simplify.Simplifier

	// Checker decides goal completion. Required when the session checks
	// goals.
	Checker assess.ProgressChecker

	// Recap schedules post-conversation recap computation. Required when the
	// session persists results.
	Recap RecapScheduler

	// Corrector fixes mis-transcribed vocabulary. Optional.
	Corrector *vocab.Corrector

	// Feed receives change notifications for UI consumers. Optional.
	Feed *feed.Feed

	// Metrics receives instrumentation. Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Engine drives a single conversation session. Create one with [New]; all
// methods are safe for concurrent use, with top-level operations serialised.
type Engine struct {
	sess      *conversation.Session
	chat      chat.Provider
	synth     speech.Synthesizer
	trans     speech.Transcriber
	simplify  simplify.Simplifier
	checker   assess.ProgressChecker
	recap     RecapScheduler
	corrector *vocab.Corrector
	feed      *feed.Feed
	metrics   *observe.Metrics
	log       *slog.Logger

	// op serialises Initialize/SubmitRecording/RevealHint/Reset.
	op sync.Mutex

	// stateMu guards state and lastEmotion for snapshot readers while an
	// operation holds op.
	stateMu     sync.RWMutex
	state       State
	lastEmotion string
}

// New validates cfg and returns a ready engine in [StateIdle].
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Session == nil:
		return nil, fmt.Errorf("engine: config: session is required")
	case cfg.Chat == nil:
		return nil, fmt.Errorf("engine: config: chat provider is required")
	case cfg.Synthesizer == nil:
		return nil, fmt.Errorf("engine: config: synthesizer is required")
	case cfg.Transcriber == nil:
		return nil, fmt.Errorf("engine: config: transcriber is required")
	case cfg.Checker == nil && cfg.Session.CheckGoals():
		return nil, fmt.Errorf("engine: config: progress checker is required when goal checking is on")
	case cfg.Recap == nil && cfg.Session.Persist():
		return nil, fmt.Errorf("engine: config: recap scheduler is required when persistence is on")
	}

	if cfg.Simplifier == nil {
		cfg.Simplifier = simplify.Passthrough{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Engine{
		sess:        cfg.Session,
		chat:        cfg.Chat,
		synth:       cfg.Synthesizer,
		trans:       cfg.Transcriber,
		simplify:    cfg.Simplifier,
		checker:     cfg.Checker,
		recap:       cfg.Recap,
		corrector:   cfg.Corrector,
		feed:        cfg.Feed,
		metrics:     cfg.Metrics,
		log:         cfg.Logger.With("component", "engine", "session", cfg.Session.ID()),
		state:       StateIdle,
		lastEmotion: defaultEmotion,
	}, nil
}

// Session returns the session this engine drives.
func (e *Engine) Session() *conversation.Session { return e.sess }

// State returns the engine's current phase.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// LastEmotion returns the emotion of the most recent bot reply, for
// snapshot readers. Defaults to "neutral".
func (e *Engine) LastEmotion() string {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.lastEmotion
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
	e.publish(feed.Event{Kind: feed.KindStateChanged, SessionID: e.sess.ID()})
}

func (e *Engine) setEmotion(emotion string) {
	e.stateMu.Lock()
	e.lastEmotion = emotion
	e.stateMu.Unlock()
}

func (e *Engine) publish(ev feed.Event) {
	if e.feed == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	e.feed.Publish(ev)
}

// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Operations                                                              │
// └─────────────────────────────────────────────────────────────────────────┘

// Initialize seeds the completion history with the persona's system prompt
// and a synthetic intro entry, populates the goal tracker, and produces the
// intro turn (voiced, but without an external chat call). It runs at most
// once per session; a second call returns [ErrAlreadyInitialized].
func (e *Engine) Initialize(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "engine.initialize")
	defer span.End()

	e.op.Lock()
	defer e.op.Unlock()

	if e.sess.Initialized() {
		return ErrAlreadyInitialized
	}
	e.setState(StateInitializing)

	persona := e.sess.Persona()
	e.sess.AppendChat(chat.Message{Role: chat.RoleSystem, Content: persona.Prompt + schemeInstruction})
	e.sess.AppendChat(chat.Message{Role: chat.RoleAssistant, Content: persona.Intro})
	e.sess.Goals().Populate(e.sess.GoalTexts())

	intro := persona.Intro
	if err := e.produceBotReply(ctx, &intro); err != nil {
		// Leave the session uninitialized so the client can retry.
		e.sess.Reset()
		e.setState(StateIdle)
		return err
	}
	e.sess.MarkInitialized()
	e.log.InfoContext(ctx, "session initialized",
		"goals", e.sess.Goals().Count(), "level", string(e.sess.Level()))
	return nil
}

// SubmitRecording ingests one learner recording: it appends a pending user
// turn, transcribes the audio, fills the transcription in, and produces the
// bot's reply. An empty recording is ignored. audioRef is the caller's
// handle to the stored recording and is kept on the turn verbatim.
func (e *Engine) SubmitRecording(ctx context.Context, audioRef string, recording []byte) error {
	if len(recording) == 0 {
		return nil
	}

	ctx, span := observe.StartSpan(ctx, "engine.submit_recording")
	defer span.End()

	e.op.Lock()
	defer e.op.Unlock()

	if !e.sess.Initialized() {
		return conversation.ErrUninitializedSession
	}
	if e.sess.Finished() {
		return ErrSessionFinished
	}

	e.setState(StateTranscribing)
	e.sess.SetTranscribing(true)

	idx := e.sess.Transcript().Append(conversation.Turn{
		Role:      conversation.RoleUser,
		AudioRef:  audioRef,
		CreatedAt: time.Now(),
	})
	e.metrics.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "user")))
	e.publish(feed.Event{Kind: feed.KindTurnAppended, SessionID: e.sess.ID(), TurnIndex: idx})

	start := time.Now()
	text, err := e.trans.Transcribe(ctx, recording, e.sess.Persona().Accent)
	e.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.metrics.CollaboratorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("collaborator", "transcriber")))
		e.sess.SetTranscribing(false)
		e.setState(StateAwaitingUserInput)
		return &CollaboratorError{Collaborator: "transcriber", Err: err}
	}
	if e.corrector != nil {
		text = e.corrector.Correct(text)
	}

	if err := e.sess.Transcript().ReplaceAt(idx, conversation.Turn{
		Role:          conversation.RoleUser,
		AudioRef:      audioRef,
		Transcription: &text,
		CreatedAt:     time.Now(),
	}); err != nil {
		e.sess.SetTranscribing(false)
		return err
	}
	e.sess.SetTranscribing(false)
	e.publish(feed.Event{Kind: feed.KindTurnUpdated, SessionID: e.sess.ID(), TurnIndex: idx})

	e.sess.AppendChat(chat.Message{Role: chat.RoleUser, Content: text})
	e.setState(StateAwaitingBotReply)
	return e.produceBotReply(ctx, nil)
}

// RevealHint marks the active goal's hint as used. The mark is permanent for
// the session and excludes the goal from recap scoring.
func (e *Engine) RevealHint() error {
	e.op.Lock()
	defer e.op.Unlock()

	if !e.sess.Initialized() {
		return conversation.ErrUninitializedSession
	}
	if e.sess.Finished() {
		return ErrSessionFinished
	}

	idx := e.sess.Goals().ActiveIndex()
	if err := e.sess.Goals().RevealHint(); err != nil {
		return err
	}
	e.publish(feed.Event{Kind: feed.KindHintRevealed, SessionID: e.sess.ID(), GoalIndex: idx})
	return nil
}

// Reset returns the session and engine to their pre-initialization state.
// It is the only way out of a stuck [StateAwaitingBotReply].
func (e *Engine) Reset() {
	e.op.Lock()
	defer e.op.Unlock()

	e.sess.Reset()
	e.setEmotion(defaultEmotion)
	e.setState(StateIdle)
	e.log.Info("session reset")
}

// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Bot reply                                                               │
// └─────────────────────────────────────────────────────────────────────────┘

// produceBotReply obtains the persona's next utterance (from literal when
// non-nil, otherwise via chat completion with bounded parse retries), voices
// it, appends the assistant turn, and then runs goal progression and
// termination checks. The waiting flag is raised for the duration and
// cleared on every outcome except a [BotReplyFailedError], which leaves the
// session visibly stuck until reset.
func (e *Engine) produceBotReply(ctx context.Context, literal *string) (err error) {
	ctx, span := observe.StartSpan(ctx, "engine.bot_reply")
	defer span.End()

	e.sess.SetWaiting(true)
	e.publish(feed.Event{Kind: feed.KindStateChanged, SessionID: e.sess.ID()})
	defer func() {
		var failed *BotReplyFailedError
		if errors.As(err, &failed) {
			return
		}
		e.sess.SetWaiting(false)
		e.publish(feed.Event{Kind: feed.KindStateChanged, SessionID: e.sess.ID()})
	}()

	var reply botReply
	if literal != nil {
		reply = botReply{Message: *literal, Emotion: defaultEmotion}
	} else {
		reply, err = e.completeReply(ctx)
		if err != nil {
			return err
		}
	}

	message := reply.Message
	if literal == nil {
		simplified, serr := e.simplify.Simplify(ctx, message, string(e.sess.Level()))
		if serr != nil {
			e.metrics.CollaboratorErrors.Add(ctx, 1,
				metric.WithAttributes(attribute.String("collaborator", "simplifier")))
			return &CollaboratorError{Collaborator: "simplifier", Err: serr}
		}
		message = simplified
	}

	persona := e.sess.Persona()
	start := time.Now()
	audio, err := e.synth.Synthesize(ctx, message, speech.VoiceProfile{
		Accent: persona.Accent,
		Gender: persona.Gender,
	})
	e.metrics.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		e.metrics.CollaboratorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("collaborator", "synthesizer")))
		return &CollaboratorError{Collaborator: "synthesizer", Err: err}
	}

	idx := e.sess.Transcript().Append(conversation.Turn{
		Role:          conversation.RoleAssistant,
		AudioRef:      encodeAudioRef(audio),
		Transcription: &message,
		CreatedAt:     time.Now(),
	})
	e.metrics.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("role", "assistant")))
	e.setEmotion(reply.Emotion)
	e.publish(feed.Event{
		Kind:      feed.KindTurnAppended,
		SessionID: e.sess.ID(),
		TurnIndex: idx,
		Emotion:   reply.Emotion,
	})

	// The intro turn never advances a goal.
	if literal == nil && e.sess.CheckGoals() && !e.sess.Goals().AllComplete() {
		if err := e.checkGoalProgress(ctx); err != nil {
			// The exchange itself succeeded, so the next recording is still
			// welcome.
			e.setState(StateAwaitingUserInput)
			return err
		}
	}
	e.checkTermination(ctx)
	return nil
}

// completeReply runs the bounded chat-completion parse loop. A reply that
// fails to parse gets a corrective instruction appended to the completion
// history before the retry; a transport failure aborts immediately. On
// success the raw (unsimplified) assistant reply joins the completion
// history so the model sees its own scheme next turn.
func (e *Engine) completeReply(ctx context.Context) (botReply, error) {
	var transportErr error
	reply, err := retry(maxReplyAttempts,
		func(int) (botReply, error) {
			start := time.Now()
			raw, cerr := e.chat.Complete(ctx, e.sess.ChatHistory())
			e.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
			if cerr != nil {
				e.metrics.CollaboratorErrors.Add(ctx, 1,
					metric.WithAttributes(attribute.String("collaborator", "chat")))
				transportErr = &CollaboratorError{Collaborator: "chat", Err: cerr}
				return botReply{}, stop{transportErr}
			}
			parsed, perr := parseBotReply(raw)
			if perr != nil {
				return botReply{}, perr
			}
			e.sess.AppendChat(chat.Message{Role: chat.RoleAssistant, Content: raw})
			return parsed, nil
		},
		func(attempt int, perr error) {
			e.metrics.ReplyRetries.Add(ctx, 1)
			e.log.WarnContext(ctx, "bot reply parse failed, retrying",
				"attempt", attempt, "error", perr)
			e.sess.AppendChat(chat.Message{Role: chat.RoleUser, Content: correctiveInstruction})
		})
	if err != nil {
		if transportErr != nil {
			return botReply{}, transportErr
		}
		return botReply{}, &BotReplyFailedError{Attempts: maxReplyAttempts, LastErr: err}
	}
	return reply, nil
}

// checkGoalProgress asks the progress checker whether the active goal has
// been achieved and advances the tracker if so. The completing turn's index
// becomes the goal's boundary for recap windowing.
func (e *Engine) checkGoalProgress(ctx context.Context) error {
	active, err := e.sess.Goals().ActiveGoal()
	if err != nil {
		return err
	}
	rendering := e.sess.Transcript().Render(e.sess.Persona().Name)

	achieved, err := e.checker.CheckProgress(ctx, rendering, active.Text)
	if err != nil {
		e.metrics.CollaboratorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("collaborator", "progress_checker")))
		return &CollaboratorError{Collaborator: "progress_checker", Err: err}
	}
	if !achieved {
		return nil
	}

	idx := e.sess.Goals().ActiveIndex()
	if err := e.sess.Goals().Advance(e.sess.Transcript().Len() - 1); err != nil {
		return err
	}
	e.log.InfoContext(ctx, "goal advanced", "goal", idx)
	e.publish(feed.Event{Kind: feed.KindGoalAdvanced, SessionID: e.sess.ID(), GoalIndex: idx})
	return nil
}

// checkTermination ends the conversation when all goals are complete (if
// goal checking is on) or the turn cap is reached, and schedules the recap
// exactly once for persisted sessions.
func (e *Engine) checkTermination(ctx context.Context) {
	goalsDone := e.sess.CheckGoals() && e.sess.Goals().AllComplete()
	capHit := e.sess.MaxDialogueCount() > 0 &&
		e.sess.Transcript().Len() >= 2*e.sess.MaxDialogueCount()
	if !goalsDone && !capHit {
		e.setState(StateAwaitingUserInput)
		return
	}

	e.sess.Finish(time.Now())
	e.setState(StateFinished)
	e.log.InfoContext(ctx, "conversation finished",
		"goals_done", goalsDone, "cap_hit", capHit,
		"turns", e.sess.Transcript().Len())

	if e.sess.Persist() && e.recap != nil && e.sess.ScheduleRecap() {
		e.recap.Schedule(e.sess)
	}
}
