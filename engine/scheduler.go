package engine

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger = slog.Default()

// JobRetention is how long finished jobs are kept
const JobRetention = 7 * 24 * time.Hour

// evictIdleSessions closes sessions idle for longer than the configured time
func (serverHandler *ServerHandler) evictIdleSessions() {
	idle := time.Duration(serverHandler.ServerConfig.SessionIdleMinutes) * time.Minute
	if idle <= 0 {
		return
	}
	serverHandler.Sessions.EvictIdle(idle)
}

// pruneJobs deletes finished jobs past their retention
func (serverHandler *ServerHandler) pruneJobs() {
	count, err := serverHandler.DB.DeleteOldJobs(JobRetention)
	if err != nil {
		Logger.Error("Failed to prune old jobs", "error", err)
		return
	}
	if count > 0 {
		Logger.Info("Pruned old jobs", "count", count)
	}
}

// InitializeSchedules starts the session eviction and job pruning cron jobs.
// The caller stops the returned scheduler on shutdown.
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	c := cron.New()
	skip := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)) //ensure we don't kick off another if old one is still running

	c.AddJob("@every 1m", skip.Then(cron.FuncJob(serverHandler.evictIdleSessions)))
	Logger.Info("Adding session eviction scheduler", "idle_minutes", serverHandler.ServerConfig.SessionIdleMinutes)

	c.AddJob("@daily", skip.Then(cron.FuncJob(serverHandler.pruneJobs)))
	Logger.Info("Adding job pruning scheduler", "retention", JobRetention)

	c.Start()
	return c
}
