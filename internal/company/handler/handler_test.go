package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyhub/internal/company"
	"companyhub/internal/providers"
	"companyhub/pkg/apperrors"
	"companyhub/pkg/testutil"
)

type fakeService struct {
	lastReq company.LookupRequest
	result  company.LookupResult
	err     error
}

func (f *fakeService) Lookup(_ context.Context, req company.LookupRequest) (company.LookupResult, error) {
	f.lastReq = req
	return f.result, f.err
}

func newRouter(svc *fakeService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func fullResult() company.LookupResult {
	fetchedAt := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return company.LookupResult{
		NIP: "5260250274",
		Data: map[string]providers.Payload{
			"regon": {"found": true, "name": "GUS"},
			"mf":    {"found": true, "status_vat": "Czynny"},
		},
		Metadata: map[string]company.SourceMeta{
			"regon": {Status: company.StatusFresh, FetchedAt: &fetchedAt},
			"mf":    {Status: company.StatusCached, FetchedAt: &fetchedAt},
		},
	}
}

// ============================================================
// Success envelope
// ============================================================

func TestHandleLookupSuccess(t *testing.T) {
	svc := &fakeService{result: fullResult()}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/companies/5260250274"))

	testutil.AssertStatusOK(t, rr)
	var body struct {
		Data     map[string]any                `json:"data"`
		Metadata map[string]company.SourceMeta `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(testutil.ReadBody(t, rr), &body))

	assert.Equal(t, "5260250274", body.Data["nip"])
	regon, ok := body.Data["regon"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "GUS", regon["name"])
	assert.Equal(t, company.StatusFresh, body.Metadata["regon"].Status)
	assert.Equal(t, company.StatusCached, body.Metadata["mf"].Status)
	require.NotNil(t, body.Metadata["regon"].FetchedAt)
}

func TestHandleLookupParsesQueryParams(t *testing.T) {
	svc := &fakeService{result: fullResult()}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet,
		"/api/v1/companies/5260250274?refresh=regon,mf&partial=allow"))

	testutil.AssertStatusOK(t, rr)
	assert.Equal(t, []string{"regon", "mf"}, svc.lastReq.Refresh)
	assert.True(t, svc.lastReq.AllowPartial)
	assert.Equal(t, "5260250274", svc.lastReq.NIP)
}

func TestHandleLookupNullSourceDataStaysNull(t *testing.T) {
	result := fullResult()
	result.Data["regon"] = nil
	result.Metadata["regon"] = company.SourceMeta{Status: company.StatusError, ErrorMessage: "soap failure"}
	svc := &fakeService{result: result}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/companies/5260250274"))

	testutil.AssertStatusOK(t, rr)
	var body map[string]any
	require.NoError(t, json.Unmarshal(testutil.ReadBody(t, rr), &body))
	data := body["data"].(map[string]any)
	value, present := data["regon"]
	assert.True(t, present)
	assert.Nil(t, value)
}

// ============================================================
// Error envelopes
// ============================================================

func TestHandleLookupRateLimitedEnvelope(t *testing.T) {
	next := time.Date(2026, 8, 29, 12, 0, 30, 0, time.UTC)
	result := fullResult()
	result.Data["regon"] = nil
	result.Metadata["regon"] = company.SourceMeta{Status: company.StatusRateLimited, NextAvailableAt: &next}
	svc := &fakeService{
		result: result,
		err:    apperrors.RateLimited("regon", &next),
	}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/companies/5260250274"))

	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	var body struct {
		Error    string                        `json:"error"`
		Message  string                        `json:"message"`
		Data     map[string]any                `json:"data"`
		Metadata map[string]company.SourceMeta `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(testutil.ReadBody(t, rr), &body))
	assert.Equal(t, "rate_limited", body.Error)
	assert.NotEmpty(t, body.Message)
	// The envelope still carries the healthy source's data.
	mf, ok := body.Data["mf"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Czynny", mf["status_vat"])
	assert.Equal(t, company.StatusRateLimited, body.Metadata["regon"].Status)
}

func TestHandleLookupRateLimitedEnvelopeCarriesStaleData(t *testing.T) {
	// A denied refresh served from stale cache still fails the request
	// without partial opt-in; the 429 envelope carries that stale payload.
	next := time.Date(2026, 8, 29, 12, 0, 30, 0, time.UTC)
	fetchedAt := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	result := fullResult()
	result.Data["regon"] = providers.Payload{"found": true, "name": "STALE"}
	result.Metadata["regon"] = company.SourceMeta{
		Status:          company.StatusCachedStale,
		FetchedAt:       &fetchedAt,
		NextAvailableAt: &next,
	}
	svc := &fakeService{
		result: result,
		err:    apperrors.RateLimited("regon", &next),
	}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/companies/5260250274?refresh=regon"))

	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)

	var body struct {
		Error    string                        `json:"error"`
		Data     map[string]any                `json:"data"`
		Metadata map[string]company.SourceMeta `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(testutil.ReadBody(t, rr), &body))
	assert.Equal(t, "rate_limited", body.Error)
	regon, ok := body.Data["regon"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "STALE", regon["name"])
	assert.Equal(t, company.StatusCachedStale, body.Metadata["regon"].Status)
	require.NotNil(t, body.Metadata["regon"].NextAvailableAt)
}

func TestHandleLookupValidationError(t *testing.T) {
	svc := &fakeService{err: apperrors.New(apperrors.CodeValidation, "request", "invalid NIP")}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/companies/123"))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "validation")
}

func TestHandleLookupProviderErrorIs502(t *testing.T) {
	svc := &fakeService{err: apperrors.New(apperrors.CodeProvider, "regon", "upstream down")}
	router := newRouter(svc)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/companies/5260250274"))

	testutil.AssertStatus(t, rr, http.StatusBadGateway)
}
