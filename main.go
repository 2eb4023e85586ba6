package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/akhmadkhasan68/efcore-query-analyzer/runner"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

const Version = "0.9.0"

func main() {
	var verbose bool
	var quiet bool
	var testRun bool
	var configFilename string

	flag.BoolVar(&verbose, "verbose", false, "Include verbose debugging output")
	flag.BoolVar(&quiet, "quiet", false, "Only log errors")
	flag.BoolVar(&testRun, "test", false, "Send a synthetic slow query through the pipeline and exit")
	flag.StringVar(&configFilename, "config", "query_analyzer.conf", "Specify alternative path for config file")
	flag.Parse()

	logger := &util.Logger{Destination: log.New(os.Stderr, "", log.LstdFlags), Verbose: verbose, Quiet: quiet}

	opts := state.CollectionOpts{
		StartedAt:          time.Now(),
		ApplicationName:    "efcore-query-analyzer",
		ApplicationVersion: Version,
		TestRun:            testRun,
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	reloadRequests := make(chan struct{}, 1)
	requestReload := func() {
		select {
		case reloadRequests <- struct{}{}:
		default:
		}
	}

	for {
		ctx, cancel := context.WithCancel(context.Background())
		wg := &sync.WaitGroup{}

		analyzer, keepRunning := runner.Run(ctx, wg, opts, logger, configFilename, requestReload)
		if !keepRunning {
			cancel()
			wg.Wait()
			return
		}

		if testRun {
			success := runTest(analyzer, logger)
			cancel()
			wg.Wait()
			if !success {
				os.Exit(1)
			}
			return
		}

		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				logger.PrintInfo("Reloading configuration...")
				cancel()
				wg.Wait()
				continue
			}
			logger.PrintInfo("Shutting down...")
			cancel()
			wg.Wait()
			return
		case <-reloadRequests:
			logger.PrintInfo("Reloading configuration...")
			cancel()
			wg.Wait()
		}
	}
}

// runTest - Pushes one synthetic slow operation through the whole pipeline so
// a configured install can be verified end to end.
func runTest(analyzer *runner.Analyzer, logger *util.Logger) bool {
	logger.PrintInfo("Running analyzer test with version %s", Version)

	operationID := analyzer.OnCommandStarting("test-conn", "test-cmd", "SELECT pg_sleep(@duration)", state.ParameterMap{"duration": 1}, "TestContext", nil, nil)
	if operationID == "" {
		logger.PrintError("Test failed: could not track the synthetic operation")
		return false
	}

	// Let the synthetic operation exceed any reasonable test threshold
	time.Sleep(50 * time.Millisecond)
	analyzer.OnCommandCompleted("test-conn", "test-cmd")

	deadline := time.After(10 * time.Second)
	for {
		stats := analyzer.Stats()
		if stats.ReportsProcessed+stats.ReportsFailed >= stats.ReportsQueued && stats.QueueDepth == 0 {
			if stats.ReportsQueued == 0 {
				logger.PrintInfo("Test finished: operation was below the configured threshold, no report generated")
			} else if stats.ReportsFailed > 0 {
				logger.PrintError("Test failed: report could not be delivered")
				return false
			} else {
				logger.PrintInfo("Test successful: %d report(s) delivered", stats.ReportsProcessed)
			}
			return true
		}

		select {
		case <-deadline:
			logger.PrintError("Test failed: report was not processed in time")
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}
