package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"AlphaPulse/internal/analysis"
	"AlphaPulse/internal/app"
	"AlphaPulse/internal/model"
	"AlphaPulse/internal/notifier"
	"AlphaPulse/internal/watchlist"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Service is the subset of app.App the bot drives.
type Service interface {
	Analyze(ctx context.Context, session, raw string) (model.AnalysisResult, error)
	ToggleCurrent(ctx context.Context, session string) (string, watchlist.Outcome, error)
	WatchlistAdd(ctx context.Context, raw string) (string, watchlist.Outcome, error)
	WatchlistRemove(ctx context.Context, raw string) (string, watchlist.Outcome, error)
	WatchlistList(ctx context.Context) ([]model.WatchlistEntry, error)
	RefreshWatchlistSummaries(ctx context.Context) ([]model.Quote, error)
}

// Sender delivers digest messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the watchlist digest on a cron schedule and answers bot
// commands.
type Scheduler struct {
	Cron    *cron.Cron
	Service Service
	Sender  Sender
	Ctx     context.Context

	log zerolog.Logger
	now func() time.Time
}

// NewScheduler creates a new Scheduler. sender may be nil when no digest
// destination is configured.
func NewScheduler(ctx context.Context, svc Service, sender Sender, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds()),
		Service: svc,
		Sender:  sender,
		Ctx:     ctx,
		log:     log,
		now:     time.Now,
	}
}

// RegisterDigest schedules the watchlist digest.
func (s *Scheduler) RegisterDigest(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	s.log.Info().Str("cron", spec).Msg("digest task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunDigestNow executes the digest task immediately.
func (s *Scheduler) RunDigestNow() {
	s.digestTask()
}

func (s *Scheduler) digestTask() {
	s.log.Info().Msg("running watchlist digest")
	text, err := s.Digest(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("digest refresh")
		text = notifier.FormatError(err)
	}
	s.trySend(text)
}

// Digest refreshes every watchlist quote and renders the summary.
func (s *Scheduler) Digest(ctx context.Context) (string, error) {
	entries, err := s.Service.WatchlistList(ctx)
	if err != nil {
		return "", err
	}
	quotes, err := s.Service.RefreshWatchlistSummaries(ctx)
	if err != nil {
		return "", err
	}
	tracked := max(len(entries), len(quotes))
	return notifier.FormatWatchlist(quotes, tracked, s.now()), nil
}

// HandleCommand processes one chat message. A bare token is treated as a
// symbol to analyse.
func (s *Scheduler) HandleCommand(ctx context.Context, chatID, text string) notifier.Reply {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return notifier.Reply{}
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	arg := strings.Join(fields[1:], " ")

	switch cmd {
	case "/start", "/help":
		return notifier.Reply{Text: notifier.FormatHelp()}
	case "/q", "/analyze", "分析":
		if arg == "" {
			return notifier.Reply{Text: "⚠️ " + notifier.InputHint}
		}
		return s.analyze(ctx, chatID, arg)
	case "/fav":
		return s.toggleCurrent(ctx, chatID)
	case "/add":
		return s.mutate(ctx, arg, s.Service.WatchlistAdd)
	case "/rm", "/remove":
		return s.mutate(ctx, arg, s.Service.WatchlistRemove)
	case "/list", "/watchlist", "監控":
		text, err := s.Digest(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("list watchlist")
			return notifier.Reply{Text: notifier.FormatError(err)}
		}
		return notifier.Reply{Text: text}
	}
	if strings.HasPrefix(cmd, "/") || len(fields) > 1 {
		return notifier.Reply{Text: notifier.FormatHelp()}
	}
	return s.analyze(ctx, chatID, fields[0])
}

func (s *Scheduler) analyze(ctx context.Context, chatID, raw string) notifier.Reply {
	res, err := s.Service.Analyze(ctx, chatID, raw)
	if errors.Is(err, analysis.ErrSuperseded) {
		return notifier.Reply{}
	}
	if err != nil {
		s.log.Error().Err(err).Str("input", raw).Msg("analyze")
		return notifier.Reply{Text: notifier.FormatError(err)}
	}
	reply := notifier.Reply{Text: notifier.FormatAnalysis(res)}
	if res.Found() && res.HasChart() {
		reply.Photo = res.Chart
		reply.Caption = notifier.FormatChartCaption(res)
	}
	return reply
}

func (s *Scheduler) toggleCurrent(ctx context.Context, chatID string) notifier.Reply {
	sym, out, err := s.Service.ToggleCurrent(ctx, chatID)
	if errors.Is(err, app.ErrNoCurrentSymbol) {
		return notifier.Reply{Text: "ℹ️ 請先查詢一檔股票再加入監控"}
	}
	if err != nil {
		return notifier.Reply{Text: notifier.FormatError(err)}
	}
	return notifier.Reply{Text: notifier.FormatMutation(sym, out)}
}

func (s *Scheduler) mutate(ctx context.Context, raw string, fn func(context.Context, string) (string, watchlist.Outcome, error)) notifier.Reply {
	sym, out, err := fn(ctx, raw)
	if err != nil {
		return notifier.Reply{Text: notifier.FormatError(err)}
	}
	return notifier.Reply{Text: notifier.FormatMutation(sym, out)}
}

func (s *Scheduler) trySend(text string) {
	if s.Sender == nil {
		s.log.Warn().Msg("no digest destination configured, dropping message")
		return
	}
	if err := s.Sender.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification")
	}
}
