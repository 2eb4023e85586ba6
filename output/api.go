package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/akhmadkhasan68/efcore-query-analyzer/config"
	"github.com/akhmadkhasan68/efcore-query-analyzer/state"
	"github.com/akhmadkhasan68/efcore-query-analyzer/util"
)

// APISink - Submits reports to the reporting API over HTTP. Best effort: a
// non-success response is an error for the composite to log, and there is no
// retry, so slow-query reporting never amplifies load on a struggling system.
type APISink struct {
	conf       *config.Config
	httpClient *http.Client
	logger     *util.Logger
}

func NewAPISink(conf *config.Config, logger *util.Logger) *APISink {
	return &APISink{
		conf:       conf,
		httpClient: config.CreateHTTPClient(conf),
		logger:     logger,
	}
}

func (s *APISink) Name() string {
	return "api"
}

func (s *APISink) Report(ctx context.Context, report *state.SlowQueryReport) error {
	if !s.conf.EnvironmentEnabled() {
		s.logger.PrintVerbose("Reporting disabled for environment %s, skipping report %s", s.conf.Environment, report.OperationID)
		return nil
	}

	data, err := json.Marshal(makeWireReport(report, s.conf.MaxQueryLength))
	if err != nil {
		return err
	}

	requestURL := s.conf.APIBaseURL + "/v1/slow-queries"
	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json,text/plain")
	if s.conf.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.conf.APIKey)
	}
	if s.conf.ProjectID != "" {
		req.Header.Set("X-Project-Id", s.conf.ProjectID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return util.CleanHTTPError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Error when submitting report: %s %s", resp.Status, body)
	}

	s.logger.PrintVerbose("Submitted slow query report %s", report.OperationID)
	return nil
}
