// Package mf fetches VAT whitelist data from the stateless tax registry
// REST API.
package mf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"companyhub/pkg/apperrors"
)

const defaultAPIURL = "https://wl-api.mf.gov.pl"

// searchResponse is the raw outcome of one whitelist lookup before parsing.
type searchResponse struct {
	Found      bool
	StatusCode int
	Data       map[string]any
	Message    string
}

// HTTPClient performs whitelist searches. The API is stateless: no login,
// no session, one GET per lookup.
type HTTPClient struct {
	apiURL string
	httpc  *http.Client
	logger *slog.Logger
}

func NewHTTPClient(apiURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &HTTPClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// SearchByNIP looks one NIP up for the given whitelist date (YYYY-MM-DD).
// 404 and non-JSON bodies come back as not-found responses; 429 and
// transport failures come back as coded errors.
func (c *HTTPClient) SearchByNIP(ctx context.Context, nip, date string) (searchResponse, error) {
	cleanNIP := strings.ReplaceAll(nip, "-", "")
	endpoint := fmt.Sprintf("%s/api/search/nip/%s?date=%s",
		c.apiURL, url.PathEscape(cleanNIP), url.QueryEscape(date))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return searchResponse{}, apperrors.Wrap(err, apperrors.CodeProvider, Source, "build request")
	}

	c.logger.DebugContext(ctx, "whitelist request", "nip", cleanNIP, "date", date)

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			e := apperrors.New(apperrors.CodeProvider, Source, "whitelist API timeout")
			e.HTTPStatus = http.StatusRequestTimeout
			return searchResponse{}, e
		}
		return searchResponse{}, apperrors.Wrap(err, apperrors.CodeProvider, Source, "whitelist request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return searchResponse{
			StatusCode: resp.StatusCode,
			Message:    "company not found in VAT whitelist",
		}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return searchResponse{}, apperrors.RateLimited(Source, nil)
	case resp.StatusCode != http.StatusOK:
		e := apperrors.New(apperrors.CodeProvider, Source,
			fmt.Sprintf("whitelist API status %d", resp.StatusCode))
		e.HTTPStatus = resp.StatusCode
		return searchResponse{}, e
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return searchResponse{}, apperrors.Wrap(err, apperrors.CodeProvider, Source, "read response")
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.WarnContext(ctx, "whitelist returned non-JSON body", "nip", cleanNIP)
		return searchResponse{
			StatusCode: resp.StatusCode,
			Message:    "invalid JSON response from whitelist API",
		}, nil
	}

	return searchResponse{Found: true, StatusCode: resp.StatusCode, Data: data}, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
