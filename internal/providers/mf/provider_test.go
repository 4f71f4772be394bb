package mf

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companyhub/internal/address"
	"companyhub/internal/providers/iban"
	"companyhub/pkg/apperrors"
)

const testNIP = "5260250274"

type fakeEnricher struct {
	byAccount map[string]iban.Enrichment
}

func (f *fakeEnricher) Enrich(_ context.Context, account string) iban.Enrichment {
	if enr, ok := f.byAccount[account]; ok {
		return enr
	}
	return iban.Enrichment{AccountNumber: account, Available: false, Reason: "enrichment sources unavailable"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(t *testing.T, handler http.HandlerFunc, enricher Enricher) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIURL: srv.URL, Timeout: 2 * time.Second}, enricher, testLogger())
}

// ============================================================
// Fetch and parse
// ============================================================

func TestFetchDataParsesSubject(t *testing.T) {
	body := `{
		"result": {
			"subject": {
				"name": "ACME SP Z O O",
				"regon": "000331501",
				"krs": "0000012345",
				"statusVat": "Czynny",
				"hasVirtualAccounts": "tak",
				"workingAddress": {"street": "MARSZAŁKOWSKA", "buildingNumber": "1", "city": "WARSZAWA", "postalCode": "00-624"},
				"residenceAddress": "KOŚCIUSZKI 10, 05-220 MARKI",
				"accountNumbers": ["61109010140000071219812874"],
				"representatives": [
					{"firstName": "JAN", "lastName": "KOWALSKI"},
					{"firstName": "", "lastName": "", "nip": "", "pesel": "", "companyName": ""}
				],
				"partners": "not-a-list"
			}
		},
		"requestId": "abc-123"
	}`
	enricher := &fakeEnricher{byAccount: map[string]iban.Enrichment{
		"PL61109010140000071219812874": {
			AccountNumber: "PL61109010140000071219812874",
			FormattedIBAN: "PL61109010140000071219812874",
			Validated:     true,
			Available:     true,
			Source:        "openiban",
			Details:       &iban.BankDetails{BankName: "Santander Bank Polska", BIC: "WBKPPLPP"},
		},
	}}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search/nip/"+testNIP, r.URL.Path)
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, r.URL.Query().Get("date"))
		w.Write([]byte(body))
	}, enricher)

	payload, err := p.FetchData(context.Background(), testNIP)

	require.NoError(t, err)
	assert.Equal(t, true, payload["found"])
	assert.Equal(t, "ACME SP Z O O", payload["name"])
	assert.Equal(t, "Czynny", payload["status_vat"])
	assert.Equal(t, "abc-123", payload["request_id"])
	assert.Equal(t, true, payload["has_virtual_accounts"])

	working, ok := payload["address"].(address.Address)
	require.True(t, ok)
	assert.Equal(t, "MARSZAŁKOWSKA", working.Street)
	assert.Equal(t, "00-624", working.PostalCode)
	assert.Equal(t, "Polska", working.Country)

	// String residence address goes through the free-text parser.
	residence, ok := payload["residence_address"].(address.Address)
	require.True(t, ok)
	assert.Equal(t, "KOŚCIUSZKI", residence.Street)
	assert.Equal(t, "10", residence.BuildingNumber)
	assert.Equal(t, "MARKI", residence.City)
	assert.Equal(t, "05-220", residence.PostalCode)

	reps, ok := payload["representatives"].([]map[string]string)
	require.True(t, ok)
	require.Len(t, reps, 1, "all-blank person entries are dropped")
	assert.Equal(t, "KOWALSKI", reps[0]["last_name"])

	partners, ok := payload["partners"].([]map[string]string)
	require.True(t, ok)
	assert.Empty(t, partners, "mistyped partners field degrades to empty")

	accounts, ok := payload["bank_accounts"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, accounts, 1)
	assert.Equal(t, "PL61109010140000071219812874", accounts[0]["account_number"])
	assert.Equal(t, true, accounts[0]["enrichment_available"])
	assert.Equal(t, "Santander Bank Polska", accounts[0]["bank_name"])
	assert.Equal(t, "WBKPPLPP", accounts[0]["bic"])
}

func TestFetchDataEnrichmentFailureKeepsAccount(t *testing.T) {
	body := `{"result": {"subject": {"name": "ACME", "accountNumbers": ["61109010140000071219812874"]}}}`
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}, &fakeEnricher{})

	payload, err := p.FetchData(context.Background(), testNIP)

	require.NoError(t, err)
	accounts := payload["bank_accounts"].([]map[string]any)
	require.Len(t, accounts, 1)
	assert.Equal(t, false, accounts[0]["enrichment_available"])
}

func TestFetchDataSingleAccountString(t *testing.T) {
	// The registry sometimes collapses a one-element account list to a
	// bare string.
	body := `{"result": {"subject": {"name": "ACME", "accountNumbers": "61109010140000071219812874"}}}`
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}, nil)

	payload, err := p.FetchData(context.Background(), testNIP)

	require.NoError(t, err)
	accounts := payload["bank_accounts"].([]map[string]any)
	require.Len(t, accounts, 1)
	assert.Equal(t, "PL61109010140000071219812874", accounts[0]["account_number"])
}

// ============================================================
// Misses and errors
// ============================================================

func TestFetchDataNotFoundIsSuccess(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, nil)

	payload, err := p.FetchData(context.Background(), testNIP)

	require.NoError(t, err)
	assert.Equal(t, false, payload["found"])
	assert.Equal(t, "company not found in VAT whitelist", payload["message"])
	assert.Equal(t, testNIP, payload["nip"])
}

func TestFetchDataMissingSubjectIsSuccess(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result": {}}`))
	}, nil)

	payload, err := p.FetchData(context.Background(), testNIP)

	require.NoError(t, err)
	assert.Equal(t, false, payload["found"])
}

func TestFetchDataUpstream429IsRateLimited(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, nil)

	_, err := p.FetchData(context.Background(), testNIP)

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))
}

func TestFetchDataInvalidNIP(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected for invalid NIP")
	}, nil)

	_, err := p.FetchData(context.Background(), "1234567890")

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestFetchDataSecondCallWithinSecondIsLimited(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result": {"subject": {"name": "ACME"}}}`))
	}, nil)

	_, err := p.FetchData(context.Background(), testNIP)
	require.NoError(t, err)

	_, err = p.FetchData(context.Background(), testNIP)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))

	coded, ok := apperrors.AsError(err)
	require.True(t, ok)
	require.NotNil(t, coded.NextAvailableAt)
	assert.True(t, coded.NextAvailableAt.After(time.Now().Add(-time.Second)))
}
