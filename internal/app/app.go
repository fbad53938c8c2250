package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"meal-planner-sync/internal/config"
	"meal-planner-sync/internal/database"
	"meal-planner-sync/internal/events"
	"meal-planner-sync/internal/httpapi"
	"meal-planner-sync/internal/listsync"
	"meal-planner-sync/internal/metrics"
	"meal-planner-sync/internal/planner"
	"meal-planner-sync/internal/remote"
	"meal-planner-sync/internal/session"
	"meal-planner-sync/internal/shopping"
	"meal-planner-sync/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	now    func() time.Time
	logger zerolog.Logger

	db          *database.DB
	credentials *session.Store
	client      *remote.Client
	lists       shopping.Store
	plans       *planner.Service
	classifier  *shopping.Classifier

	bus      *events.Bus
	notifier *events.Notifier
	syncer   *listsync.Syncer

	history   *metrics.Store
	collector *metrics.Collector
	scheduler *cron.Cron
	router    *httpapi.Router
}

// Option configures an App.
type Option func(*App)

// WithClock overrides the clock used by the syncer and the HTTP handlers.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New wires every component from cfg. The syncer is not started.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		now:    time.Now,
		logger: log.With().Str("component", "app").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db

	a.credentials = session.NewStore(db.SQL)
	if err := a.credentials.Bootstrap(ctx, cfg.APIToken); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to store api token: %w", err)
	}

	a.client = remote.NewClient(cfg.APIURL, a.credentials, cfg.APITimeout)
	a.lists = shopping.NewRESTStore(a.client)
	a.classifier = shopping.NewClassifier(cfg.ManualMarkers)

	a.bus = events.NewBus(events.WithClock(a.now))
	a.notifier = events.NewNotifier(a.now)
	a.plans = planner.NewService(planner.NewPlanRepository(a.client), a.bus)

	a.history = metrics.NewStore(db.SQL, a.now)
	a.collector = metrics.NewCollector("mealsync")

	anchor := listsync.AnchorToday
	if cfg.WeekAnchor == config.WeekAnchorEvent {
		anchor = listsync.AnchorEventDate
	}
	a.syncer = listsync.New(a.lists, a.bus, a.notifier,
		listsync.WithClassifier(a.classifier),
		listsync.WithWeekAnchor(anchor),
		listsync.WithClock(a.now),
		listsync.WithRecorder(a.history),
		listsync.WithObserver(a.collector),
	)

	a.router = httpapi.NewRouter(httpapi.Deps{
		Plans:   a.plans,
		Lists:   a.lists,
		History: a.history,
		Syncer:  a.syncer,
		Updates: a.notifier,
		Metrics: a.collector.Handler(),
		DataDir: db.Dir(),
		Now:     a.now,
	})

	a.logger.Debug().
		Str("api", cfg.APIURL).
		Str("db", cfg.DatabasePath).
		Str("week_anchor", cfg.WeekAnchor).
		Strs("markers", a.classifier.Markers()).
		Msg("application wired")

	return a, nil
}

// Handler returns the service HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router.Setup()
}

// Bus returns the plan change bus.
func (a *App) Bus() *events.Bus {
	return a.bus
}

// Notifier returns the shopping list update notifier.
func (a *App) Notifier() *events.Notifier {
	return a.notifier
}

// Syncer returns the sync orchestrator.
func (a *App) Syncer() *listsync.Syncer {
	return a.syncer
}

// Plans returns the plan mutation service.
func (a *App) Plans() *planner.Service {
	return a.plans
}

// Start launches the syncer and the history retention job.
func (a *App) Start(ctx context.Context) error {
	if err := a.syncer.Start(ctx); err != nil {
		return err
	}

	a.scheduler = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := a.scheduler.AddFunc(a.cfg.CleanupSchedule, a.runCleanup); err != nil {
		a.syncer.Stop()
		return fmt.Errorf("invalid cleanup schedule %q: %w", a.cfg.CleanupSchedule, err)
	}
	a.scheduler.Start()
	return nil
}

// Stop halts the retention job and the syncer.
func (a *App) Stop() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	a.syncer.Stop()
}

// Serve runs the syncer, the HTTP server and the optional Telegram bot until
// ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.HTTPAddr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	if err := a.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	defer a.Stop()

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-a.syncer.Done():
			if gctx.Err() != nil {
				return nil
			}
			return errors.New("shopping list sync stopped unexpectedly")
		}
	})

	if a.cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(a.cfg, a.lists, a.classifier)
		if err != nil {
			a.logger.Warn().Err(err).Msg("telegram announcements disabled")
		} else {
			g.Go(func() error { return bot.Run(gctx, a.notifier) })
		}
	}

	return g.Wait()
}

// SyncOnce runs a single reconciliation synchronously.
func (a *App) SyncOnce(ctx context.Context, action events.Action, date *time.Time) listsync.Outcome {
	return a.syncer.Handle(ctx, events.PlanChangeEvent{
		Action:       action,
		ModifiedDate: date,
		PublishedAt:  a.now(),
	})
}

// Login stores the API credential.
func (a *App) Login(ctx context.Context, token string) (session.Credential, error) {
	return a.credentials.Save(ctx, token)
}

// Logout removes the stored API credential.
func (a *App) Logout(ctx context.Context) error {
	return a.credentials.Clear(ctx)
}

// History returns the most recent sync outcomes.
func (a *App) History(ctx context.Context, limit int) ([]listsync.Outcome, error) {
	return a.history.Recent(ctx, limit)
}

// DailySummary returns per-day sync totals for the last days.
func (a *App) DailySummary(ctx context.Context, days int) ([]metrics.DailySummary, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}
	return a.history.GetDailySummary(ctx, days)
}

// CleanupHistory removes outcomes older than days.
func (a *App) CleanupHistory(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be positive, got %d", days)
	}
	return a.history.Cleanup(ctx, days)
}

func (a *App) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := a.CleanupHistory(ctx, a.cfg.RetentionDays)
	if err != nil {
		a.logger.Error().Err(err).Msg("sync history cleanup failed")
		return
	}
	a.logger.Info().Int64("deleted", n).Int("retention_days", a.cfg.RetentionDays).Msg("sync history cleaned up")
}

// Close releases the event streams and the database.
func (a *App) Close() error {
	a.bus.Close()
	a.notifier.Close()
	return a.db.Close()
}
