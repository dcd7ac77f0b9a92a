// Package recap computes the scored post-conversation summary: it partitions
// the finished transcript into goal-scoped dialogue windows, scores every
// window concurrently through the external analyzer, aggregates the verdicts
// into an overall score and coin total, persists the breakdown, and publishes
// the result for UI consumption.
package recap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/internal/conversation/feed"
	"github.com/Bualoitech/learnliko/internal/observe"
	"github.com/Bualoitech/learnliko/pkg/provider/assess"
	"github.com/Bualoitech/learnliko/pkg/recapstore"
)

// Per-pair blended score constants. The base offset plus weighted sub-scores
// keeps results in roughly [50, 100].
const (
	blendBase             = 50.0
	blendAdvancementScale = 0.3
	blendGrammarScale     = 0.2
)

// suggestionThreshold is the sub-score below which the analyzer's
// improvement examples are surfaced to the learner.
const suggestionThreshold = 80.0

// defaultTimeout bounds one whole recap computation, scoring fan-out and
// persistence included.
const defaultTimeout = 2 * time.Minute

// Pair is one scored assistant/user exchange.
type Pair struct {
	Assistant   string          `json:"assistant"`
	User        string          `json:"user"`
	Suggestion  string          `json:"suggestion"`
	Advancement assess.SubScore `json:"advancement"`
	Grammar     assess.SubScore `json:"grammar"`
	Appropriate bool            `json:"appropriate"`
	Blended     float64         `json:"blended"`
}

// Entry is the scored breakdown for one goal.
type Entry struct {
	Goal     string  `json:"goal"`
	HintUsed bool    `json:"hintUsed"`
	Coins    int     `json:"coins"`
	Score    float64 `json:"score"`
	Pairs    []Pair  `json:"pairs"`
}

// Result is the published recap. Immutable once published.
type Result struct {
	SessionID string `json:"sessionId"`

	// OverallScore is the mean of the per-goal overall scores. Hinted goals
	// contribute a zero score but still count in the denominator.
	OverallScore float64 `json:"overallScore"`

	// TotalCoins is the sum of per-goal coin rewards.
	TotalCoins int `json:"totalCoins"`

	// Goals holds the per-goal breakdown in goal order.
	Goals []Entry `json:"goals"`

	// History is the flattened ordered sequence of scored pairs across all
	// goals.
	History []Pair `json:"history"`

	// RecapID is the persistence backend's identifier for this recap, empty
	// when the session does not persist.
	RecapID string `json:"recapId,omitempty"`

	ComputedAt time.Time `json:"computedAt"`
}

// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Computer                                                                │
// └─────────────────────────────────────────────────────────────────────────┘

// ComputerConfig assembles a [Computer].
type ComputerConfig struct {
	// Scorer is the external goal-scoring analyzer. Required.
	Scorer assess.GoalScorer

	// Store persists recaps. Required; use the mock store for sessions that
	// only need in-memory results.
	Store recapstore.Store

	// Feed receives the recap-published notification. Optional.
	Feed *feed.Feed

	// Timeout bounds one computation. Defaults to two minutes.
	Timeout time.Duration

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Computer turns finished sessions into published [Result]s. Safe for
// concurrent use across sessions.
type Computer struct {
	scorer  assess.GoalScorer
	store   recapstore.Store
	feed    *feed.Feed
	timeout time.Duration
	metrics *observe.Metrics
	log     *slog.Logger

	mu        sync.RWMutex
	published map[string]*Result
}

// NewComputer validates cfg and returns a ready [Computer].
func NewComputer(cfg ComputerConfig) (*Computer, error) {
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("recap: config: scorer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("recap: config: store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Computer{
		scorer:    cfg.Scorer,
		store:     cfg.Store,
		feed:      cfg.Feed,
		timeout:   cfg.Timeout,
		metrics:   cfg.Metrics,
		log:       cfg.Logger.With("component", "recap"),
		published: make(map[string]*Result),
	}, nil
}

// Schedule computes the recap for s asynchronously. Failures are logged and
// counted; the dialogue engine's reply path never waits on recap work.
func (c *Computer) Schedule(s *conversation.Session) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		ctx, span := observe.StartSpan(ctx, "recap.schedule")
		defer span.End()
		if _, err := c.Compute(ctx, s); err != nil {
			observe.Logger(ctx).Error("recap computation failed",
				"component", "recap", "session", s.ID(), "error", err)
		}
	}()
}

// Result returns the published recap for the session, or nil before
// computation completes.
func (c *Computer) Result(sessionID string) *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published[sessionID]
}

// Compute scores the finished session and publishes the result. A second
// call overwrites the previously published result. The session's user
// context is validated before any scoring call is issued.
func (c *Computer) Compute(ctx context.Context, s *conversation.Session) (res *Result, err error) {
	ctx, span := observe.StartSpan(ctx, "recap.compute")
	defer span.End()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RecapsComputed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)))
	}()

	user := s.User()
	if s.Persist() {
		if verr := user.Validate(); verr != nil {
			return nil, fmt.Errorf("recap: session %s: %w", s.ID(), verr)
		}
	}

	// Snapshot the session; the computer never mutates it.
	turns := s.Transcript().Turns()
	goals := s.Goals().Goals()
	level := string(s.Level())

	windows := buildWindows(turns, goals)

	scores := make([]*assess.GoalScore, len(goals))
	g, gctx := errgroup.WithContext(ctx)
	for i := range goals {
		g.Go(func() error {
			start := time.Now()
			gs, serr := c.scorer.ScoreGoal(gctx, assess.ScoreRequest{
				HintUsed: goals[i].HintUsed,
				Level:    level,
				Mission:  goals[i].Text,
				Pairs:    windows[i],
			})
			c.metrics.ScoreDuration.Record(gctx, time.Since(start).Seconds())
			if serr != nil {
				c.metrics.CollaboratorErrors.Add(gctx, 1,
					metric.WithAttributes(attribute.String("collaborator", "goal_scorer")))
				return fmt.Errorf("recap: score goal %d: %w", i, serr)
			}
			if len(gs.Pairs) < len(windows[i]) {
				return fmt.Errorf("recap: score goal %d: analyzer returned %d pair scores for %d pairs",
					i, len(gs.Pairs), len(windows[i]))
			}
			scores[i] = gs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := assemble(s.ID(), goals, windows, scores)

	if s.Persist() {
		recapID, perr := c.persist(ctx, user, result)
		if perr != nil {
			return nil, perr
		}
		result.RecapID = recapID
	}
	result.ComputedAt = time.Now()

	c.mu.Lock()
	c.published[s.ID()] = result
	c.mu.Unlock()

	if c.feed != nil {
		c.feed.Publish(feed.Event{
			Kind:      feed.KindRecapPublished,
			SessionID: s.ID(),
			At:        time.Now(),
		})
	}
	c.log.Info("recap published", "session", s.ID(),
		"overall", result.OverallScore, "coins", result.TotalCoins,
		"pairs", len(result.History))
	return result, nil
}

// buildWindows reconstructs each goal's dialogue pair window from the goal
// boundaries: turns from the previous goal's boundary up to this goal's,
// stepping two at a time over the assistant-first alternation. A hinted
// goal's window is empty regardless of its boundaries.
func buildWindows(turns []conversation.Turn, goals []conversation.GoalEntry) [][]assess.DialoguePair {
	windows := make([][]assess.DialoguePair, len(goals))
	start := 0
	for gi, goal := range goals {
		end := goal.LastTurnIndex
		if !goal.HintUsed {
			for i := start; i+1 < len(turns) && i+1 <= end; i += 2 {
				windows[gi] = append(windows[gi], assess.DialoguePair{
					Assistant: turns[i].Text(),
					User:      turns[i+1].Text(),
				})
			}
		}
		if end > start {
			start = end
		}
	}
	return windows
}

// assemble folds the analyzer verdicts into the published result: per-pair
// blends and suggestions, per-goal entries, and the flat totals.
func assemble(sessionID string, goals []conversation.GoalEntry, windows [][]assess.DialoguePair, scores []*assess.GoalScore) *Result {
	result := &Result{
		SessionID: sessionID,
		Goals:     make([]Entry, len(goals)),
	}

	var overallSum float64
	for gi, goal := range goals {
		gs := scores[gi]
		entry := Entry{
			Goal:     goal.Text,
			HintUsed: goal.HintUsed,
			Coins:    gs.Coins,
			Score:    gs.Overall,
		}
		for pi, pair := range windows[gi] {
			ps := gs.Pairs[pi]
			scored := Pair{
				Assistant:   pair.Assistant,
				User:        pair.User,
				Suggestion:  suggestionFor(ps),
				Advancement: ps.Advancement,
				Grammar:     ps.Grammar,
				Appropriate: ps.Appropriate,
				Blended:     blend(ps),
			}
			entry.Pairs = append(entry.Pairs, scored)
			result.History = append(result.History, scored)
		}
		result.Goals[gi] = entry
		result.TotalCoins += gs.Coins
		overallSum += gs.Overall
	}
	if len(goals) > 0 {
		result.OverallScore = overallSum / float64(len(goals))
	}
	return result
}

// blend computes the fixed-weight per-pair score.
func blend(ps assess.PairScore) float64 {
	return blendBase + ps.Advancement.Score*blendAdvancementScale + ps.Grammar.Score*blendGrammarScale
}

// suggestionFor joins the improvement examples of every sub-score below the
// suggestion threshold. Empty when both sub-scores clear it.
func suggestionFor(ps assess.PairScore) string {
	var blocks []string
	if ps.Advancement.Score < suggestionThreshold {
		blocks = append(blocks, ps.Advancement.Examples...)
	}
	if ps.Grammar.Score < suggestionThreshold {
		blocks = append(blocks, ps.Grammar.Examples...)
	}
	return strings.Join(blocks, "\n")
}

// persist stores the breakdown and links the recap into lesson progress.
func (c *Computer) persist(ctx context.Context, user conversation.UserContext, result *Result) (string, error) {
	rec := recapstore.RecapRecord{
		UserID:            user.UserID,
		ConversationID:    user.ConversationID,
		CorrectPercentage: result.OverallScore,
		Goals:             make([]recapstore.GoalRecord, len(result.Goals)),
	}
	for gi, entry := range result.Goals {
		goalRec := recapstore.GoalRecord{
			Goal:     entry.Goal,
			HintUsed: entry.HintUsed,
			Coins:    entry.Coins,
			Overall:  entry.Score,
			Pairs:    make([]recapstore.PairRecord, len(entry.Pairs)),
		}
		for pi, pair := range entry.Pairs {
			goalRec.Pairs[pi] = recapstore.PairRecord{
				Assistant:        pair.Assistant,
				User:             pair.User,
				Suggestion:       pair.Suggestion,
				AdvancementScore: pair.Advancement.Score,
				GrammarScore:     pair.Grammar.Score,
				Blended:          pair.Blended,
				Appropriate:      pair.Appropriate,
			}
		}
		rec.Goals[gi] = goalRec
	}

	recapID, err := c.store.SaveRecap(ctx, rec)
	if err != nil {
		c.metrics.CollaboratorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("collaborator", "recap_store")))
		return "", fmt.Errorf("recap: save recap: %w", err)
	}
	if err := c.store.UpdateLessonProgress(ctx, recapstore.LessonProgressUpdate{
		UserID:         user.UserID,
		LessonID:       user.LessonID,
		ConversationID: user.ConversationID,
		RecapID:        recapID,
		SectionIndex:   user.SectionIndex,
	}); err != nil {
		c.metrics.CollaboratorErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("collaborator", "recap_store")))
		return "", fmt.Errorf("recap: update lesson progress: %w", err)
	}
	return recapID, nil
}
