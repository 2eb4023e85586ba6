package config

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-ini/ini"

	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

const DefaultAPIBaseURL = "https://api.example.com"

func getDefaultConfig() *Config {
	config := &Config{
		Enabled:                   true,
		ThresholdMs:               500,
		CaptureStack:              true,
		MaxStackLines:             20,
		MaxQueryLength:            4096,
		PlanCaptureTimeoutSeconds: 10,
		Environment:               "development",
		APIBaseURL:                DefaultAPIBaseURL,
		APITimeoutSeconds:         30,
		TrackerMaxAgeSeconds:      600,
		DrainBatchSize:            10,
		DrainIntervalMs:           100,
		SectionName:               "query_analyzer",
	}

	// The environment variables are the default way to configure when running
	// inside a container
	if enabled := os.Getenv("QUERY_ANALYZER_ENABLED"); enabled == "0" {
		config.Enabled = false
	}
	if thresholdMs := os.Getenv("QUERY_ANALYZER_THRESHOLD_MS"); thresholdMs != "" {
		config.ThresholdMs, _ = strconv.Atoi(thresholdMs)
	}
	if captureStack := os.Getenv("QUERY_ANALYZER_CAPTURE_STACK"); captureStack == "0" {
		config.CaptureStack = false
	}
	if capturePlan := os.Getenv("QUERY_ANALYZER_CAPTURE_EXECUTION_PLAN"); capturePlan != "" && capturePlan != "0" {
		config.CaptureExecutionPlan = true
	}
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		config.DbURL = dbURL
	}
	if environment := os.Getenv("QUERY_ANALYZER_ENVIRONMENT"); environment != "" {
		config.Environment = environment
	}
	if enabledEnvironments := os.Getenv("QUERY_ANALYZER_ENABLED_ENVIRONMENTS"); enabledEnvironments != "" {
		config.EnabledEnvironments = enabledEnvironments
	}
	if apiBaseURL := os.Getenv("QUERY_ANALYZER_API_BASEURL"); apiBaseURL != "" {
		config.APIBaseURL = apiBaseURL
	}
	if apiKey := os.Getenv("QUERY_ANALYZER_API_KEY"); apiKey != "" {
		config.APIKey = apiKey
	}
	if projectID := os.Getenv("QUERY_ANALYZER_PROJECT_ID"); projectID != "" {
		config.ProjectID = projectID
	}
	if localReportDir := os.Getenv("QUERY_ANALYZER_LOCAL_REPORT_DIR"); localReportDir != "" {
		config.LocalReportDir = localReportDir
	}
	if sentryDsn := os.Getenv("QUERY_ANALYZER_SENTRY_DSN"); sentryDsn != "" {
		config.SentryDsn = sentryDsn
	}

	return config
}

// Read - Reads the configuration file if it exists, otherwise returns the
// default configuration (including environment variable overrides).
func Read(logger *util.Logger, filename string) (*Config, error) {
	config := getDefaultConfig()

	if filename == "" {
		return config, nil
	}

	if _, err := os.Stat(filename); err != nil {
		logger.PrintVerbose("No configuration file found at %s, using defaults and environment", filename)
		return config, nil
	}

	configFile, err := ini.Load(filename)
	if err != nil {
		return config, err
	}

	section, err := configFile.GetSection(config.SectionName)
	if err != nil {
		// Fall back to the unnamed default section
		section = configFile.Section("")
	}

	err = section.MapTo(config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// CreateHTTPClient - Client used by transport sinks, with the configured
// request timeout. No retries, reporting is best effort.
func CreateHTTPClient(config *Config) *http.Client {
	return &http.Client{
		Timeout: time.Duration(config.APITimeoutSeconds) * time.Second,
	}
}
