package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobpilot/internal/ai/gemini"
	"jobpilot/internal/analyzer"
	"jobpilot/internal/applier"
	"jobpilot/internal/browser"
	"jobpilot/internal/config"
	"jobpilot/internal/cvversion"
	"jobpilot/internal/database"
	dbpostgres "jobpilot/internal/database/postgres"
	"jobpilot/internal/discovery"
	"jobpilot/internal/domain/user"
	"jobpilot/internal/infrastructure/cache"
	"jobpilot/internal/logger"
	"jobpilot/internal/matcher"
	"jobpilot/internal/notify"
	"jobpilot/internal/pipeline"
	"jobpilot/internal/pkg/jwt"
	"jobpilot/internal/repository"
	"jobpilot/internal/scraper"
	"jobpilot/internal/ws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoAIKey = errors.New("ai api key is not configured")

// Container owns every long-lived dependency of a process. Close releases
// them in reverse order of creation.
type Container struct {
	Config config.Config
	Log    *zap.Logger
	DB     database.DB
	Redis  *cache.Redis
	Boards config.Catalogue

	Launcher browser.Launcher
	Hub      *ws.Hub
	Notifier notify.Notifier
	JWT      *jwt.HMACService

	Jobs         *repository.PostgresJobRepository
	Applications *repository.PostgresApplicationRepository
	Matches      *repository.PostgresMatchRepository
	Preferences  *repository.PostgresPreferenceRepository
	Users        *repository.PostgresUserRepository
	SkillTests   *repository.PostgresSkillTestRepository
	Status       *repository.PostgresPipelineRepository
	CVs          *cvversion.Store

	Discovery    *discovery.Service
	Analyzer     *analyzer.Analyzer
	Matcher      *matcher.Matcher
	Orchestrator *pipeline.Orchestrator
}

func NewContainer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Container, error) {
	log = logger.OrNop(log)

	boards, err := config.LoadBoards(cfg.BoardsFile)
	if err != nil {
		return nil, err
	}
	launcher, err := browser.NewLauncher(cfg.Browser, log)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := dbpostgres.Connect(connectCtx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Redis:    cache.NewRedis(ctx, cfg.Redis, log),
		Boards:   boards,
		Launcher: launcher,
		Hub:      ws.NewHub(log),
		JWT:      jwt.NewHMACService(cfg.JWT.Secret, cfg.JWT.ExpiresIn, cfg.App.AppName),

		Jobs:         repository.NewPostgresJobRepository(db),
		Applications: repository.NewPostgresApplicationRepository(db),
		Matches:      repository.NewPostgresMatchRepository(db),
		Preferences:  repository.NewPostgresPreferenceRepository(db),
		Users:        repository.NewPostgresUserRepository(db),
		SkillTests:   repository.NewPostgresSkillTestRepository(db),
		Status:       repository.NewPostgresPipelineRepository(db),
		CVs:          cvversion.NewStore(db, log),
	}
	c.Notifier = c.buildNotifier()

	scorer, err := c.buildScorer(ctx)
	if err != nil {
		log.Warn("matching disabled", zap.Error(err))
	}

	c.Discovery = discovery.NewService(discovery.NewPostgresStore(db), log)
	c.Analyzer = analyzer.New(c.Jobs, boards, cfg.Apply.WaitTimeout, log)
	c.Matcher = matcher.New(scorer, c.CVs, c.SkillTests, c.Matches, matcher.Options{
		Threshold:    cfg.AI.MinScore,
		MaxLogLength: cfg.AI.MaxLogLength,
		Cache:        c.Redis,
		CacheTTL:     cfg.Redis.TTL,
	}, log)

	c.Orchestrator = pipeline.New(pipeline.Deps{
		Jobs:         c.Jobs,
		Applications: c.Applications,
		Matches:      c.Matches,
		Preferences:  c.Preferences,
		Status:       c.Status,
		Discovery:    c.Discovery,
		Intake:       discovery.NewPostgresStore(db),
		Analyzer:     c.Analyzer,
		Matcher:      c.Matcher,
		NewApplier:   c.newApplier,
		Adapters:     c.adapter,
		Launcher:     launcher,
		Locker:       c.Redis,
		Notifier:     c.Notifier,
		DBPing:       db.Ping,
		RedisPing:    c.Redis.Ping,
	}, pipeline.Options{
		HuntBoards:           cfg.Hunt.Boards,
		OpportunityThreshold: cfg.Hunt.OpportunityThreshold,
		RunTimeout:           cfg.Hunt.RunTimeout,
		LockTTL:              cfg.Hunt.LockTTL,
	}, log)

	return c, nil
}

func (c *Container) buildNotifier() notify.Notifier {
	n := notify.Multi{c.Hub}
	if !c.Config.Telegram.Enabled {
		return n
	}
	tg, err := notify.NewTelegram(c.Config.Telegram.Token, c.Config.Telegram.ChatID)
	if err != nil {
		c.Log.Warn("telegram notifications disabled", zap.Error(err))
		return n
	}
	return append(n, tg)
}

// buildScorer returns a scorer even when none is configured, so a match
// attempt reports scoring-failed instead of panicking.
func (c *Container) buildScorer(ctx context.Context) (matcher.Scorer, error) {
	ai := c.Config.AI
	if p := strings.ToLower(strings.TrimSpace(ai.Provider)); p != "" && p != "gemini" {
		err := fmt.Errorf("unsupported ai provider %q", ai.Provider)
		return unavailableScorer{err: err}, err
	}
	if strings.TrimSpace(ai.APIKey) == "" {
		return unavailableScorer{err: ErrNoAIKey}, ErrNoAIKey
	}
	gen, err := gemini.NewGenerator(ctx, ai.APIKey, ai.Model, ai.MaxRetries)
	if err != nil {
		return unavailableScorer{err: err}, err
	}
	return gen, nil
}

type unavailableScorer struct{ err error }

func (s unavailableScorer) GenerateJSON(context.Context, string) (string, error) { return "", s.err }

func (c *Container) newApplier() pipeline.Applier {
	return applier.New(c.Boards, c.Applications, c.Jobs, applier.Options{
		Credentials: c.Config.Credentials,
		Submitter:   applier.SubmitterFor(c.Config.Apply.SubmitEnabled),
		Wait:        c.Config.Apply.WaitTimeout,
		SnapshotDir: c.Config.Browser.SnapshotDir,
	}, c.Log)
}

func (c *Container) adapter(board string, p config.SearchParams) (scraper.JobSourceAdapter, error) {
	b, err := c.Boards.Get(board)
	if err != nil {
		return nil, err
	}
	return scraper.New(b, p, scraper.Options{
		Launcher:    c.Launcher,
		Credentials: c.Config.Credentials,
		SnapshotDir: c.Config.Browser.SnapshotDir,
		UserAgent:   c.Config.Browser.UserAgent,
		WaitTimeout: c.Config.Apply.WaitTimeout,
		Log:         c.Log,
	})
}

// ResolveUser picks the acting user for CLI commands: an explicit id, then
// the configured default id, then the default email's row.
func (c *Container) ResolveUser(ctx context.Context, explicit string) (uuid.UUID, error) {
	for _, s := range []string{explicit, c.Config.App.DefaultUserID} {
		if s = strings.TrimSpace(s); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				return uuid.Nil, fmt.Errorf("invalid user id %q: %w", s, err)
			}
			return id, nil
		}
	}
	u, err := c.Users.GetByEmail(ctx, c.Config.App.DefaultEmail)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("no user for %s, run `jobpilot seed` first: %w", c.Config.App.DefaultEmail, err)
		}
		return uuid.Nil, err
	}
	return u.ID, nil
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
