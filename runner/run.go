package runner

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	raven "github.com/getsentry/raven-go"

	"github.com/akhmadkhasan68/efcore-query-analyzer/config"
	"github.com/akhmadkhasan68/efcore-query-analyzer/scheduler"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// Run - Reads the configuration and starts the analyzer's background pieces:
// the drain worker, the tracker sweeper, the periodic stats line and the
// configuration file watcher. Returns the analyzer for the host to wire its
// interception hook to, and whether the process should keep running.
//
// reload is invoked (from the watcher goroutine) when the configuration file
// changes on disk; the host decides whether to restart.
func Run(ctx context.Context, wg *sync.WaitGroup, opts state.CollectionOpts, logger *util.Logger, configFilename string, reload func()) (analyzer *Analyzer, keepRunning bool) {
	conf, err := config.Read(logger, configFilename)
	if err != nil {
		logger.PrintError("Config Error: %s", err)
		return nil, false
	}

	if conf.SentryDsn != "" {
		client, err := raven.NewClient(conf.SentryDsn, map[string]string{"environment": conf.Environment})
		if err != nil {
			logger.PrintWarning("Could not set up Sentry error capture: %s", err)
		} else {
			logger.Sentry = client
		}
	}

	if !conf.Enabled {
		logger.PrintInfo("Query analyzer is disabled by configuration")
		return nil, false
	}

	analyzer = NewAnalyzer(conf, opts, logger)

	wg.Add(1)
	go func() {
		analyzer.worker.Run(ctx)
		wg.Done()
	}()

	wg.Add(1)
	go func() {
		analyzer.tracker.RunSweeper(ctx, time.Minute)
		wg.Done()
	}()

	schedulerGroups, err := scheduler.GetSchedulerGroups()
	if err != nil {
		logger.PrintError("Error: Could not get scheduler groups")
		return nil, false
	}
	schedulerGroups["stats"].Schedule(ctx, func() {
		printCollectorStats(analyzer, logger)
	}, logger, "analyzer statistics")

	if configFilename != "" && reload != nil {
		setupConfigWatcher(ctx, logger, configFilename, reload)
	}

	return analyzer, true
}

// setupConfigWatcher - Signals the host when the configuration file changes,
// so a running process can pick up threshold or sink changes without a
// restart of the host application.
func setupConfigWatcher(ctx context.Context, logger *util.Logger, configFilename string, reload func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.PrintWarning("Could not watch configuration file: %s", err)
		return
	}

	// Watch the directory, not the file: editors and config management tools
	// typically replace the file, which would invalidate a file watch
	err = watcher.Add(filepath.Dir(configFilename))
	if err != nil {
		logger.PrintWarning("Could not watch configuration directory: %s", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(configFilename) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.PrintInfo("Configuration file changed, triggering reload")
				reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.PrintVerbose("Configuration watcher error: %s", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}
