package pipeline

import (
	"context"
	"io"

	"github.com/chrisilt/course-watcher/internal/config"
	"github.com/chrisilt/course-watcher/internal/feed"
	"github.com/chrisilt/course-watcher/internal/logger"
	"github.com/chrisilt/course-watcher/internal/metrics"
	"github.com/chrisilt/course-watcher/internal/notifier"
	"github.com/chrisilt/course-watcher/internal/scraper"
	"github.com/chrisilt/course-watcher/internal/storage"
)

// BuildSinks creates the configured notifiers in delivery order: webhook, email, Teams.
// In dry-run mode a single notifier prints to out instead.
func BuildSinks(cfg *config.Config, dryRun bool, out io.Writer, log *logger.Logger) []notifier.Notifier {
	var sinks []notifier.Notifier
	var names []string

	if cfg.WebhookURL != "" {
		names = append(names, "webhook")
		if wh, err := notifier.NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.UserAgent, cfg.Timeout()); err != nil {
			log.Warn("Webhook notifications disabled", logger.Fields{"error": err.Error()})
		} else {
			sinks = append(sinks, wh)
		}
	}

	if cfg.EmailEnabled {
		names = append(names, "email")
		if em, err := notifier.NewEmailNotifier(cfg.Email()); err != nil {
			log.Warn("Email notifications skipped: missing configuration", logger.Fields{"error": err.Error()})
		} else {
			sinks = append(sinks, em)
		}
	}

	if cfg.TeamsWebhookURL != "" {
		names = append(names, "teams")
		if tn, err := notifier.NewTeamsNotifier(cfg.TeamsWebhookURL, cfg.Timeout()); err != nil {
			log.Warn("Teams notifications disabled", logger.Fields{"error": err.Error()})
		} else {
			sinks = append(sinks, tn)
		}
	}

	if dryRun {
		return []notifier.Notifier{notifier.NewDryRunNotifier(out, names...)}
	}
	return sinks
}

// OpenSeenStore returns the Redis store when REDIS_URL is set, otherwise the state file.
// The returned close function is never nil.
func OpenSeenStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.SeenStore, func() error, error) {
	if !cfg.UseRedis() {
		return storage.NewFileSeenStore(cfg.StateFile, log), func() error { return nil }, nil
	}

	store, err := storage.NewRedisSeenStore(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
	if err != nil {
		return nil, nil, err
	}
	log.Info("Using Redis seen state", logger.Fields{"prefix": cfg.RedisKeyPrefix})
	return store, store.Close, nil
}

// NewFromConfig assembles a Watcher from cfg
func NewFromConfig(cfg *config.Config, seen storage.SeenStore, sinks []notifier.Notifier, rec metrics.Recorder, log *logger.Logger, dryRun bool) *Watcher {
	return New(Options{
		Fetcher:   scraper.New(cfg.TargetURL, cfg.UserAgent, cfg.Timeout()),
		Extractor: scraper.NewExtractor(cfg.LinkSelector, cfg.TitleSelector, cfg.DateSelector, cfg.TargetURL, log),
		Seen:      seen,
		Sinks:     sinks,
		Publisher: feed.NewPublisher(cfg.FeedFile, cfg.TargetURL, cfg.FeedSelfURL, cfg.Buffer(), log),
		Metrics:   rec,
		Logger:    log,
		Paths: Paths{
			History:   cfg.HistoryFile,
			Feed:      cfg.FeedFile,
			Stats:     cfg.StatsFile,
			StatsHTML: cfg.StatsHTMLFile,
		},
		Buffer: cfg.Buffer(),
		DryRun: dryRun,
	})
}
