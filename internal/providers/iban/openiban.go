package iban

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"companyhub/internal/safejson"
)

// OpenIBAN is the free validation service. It validates reliably but often
// returns empty bank data, in which case the chain moves on.
type OpenIBAN struct {
	baseURL string
	httpc   *http.Client
}

// NewOpenIBAN creates the OpenIBAN client.
func NewOpenIBAN(baseURL string, timeout time.Duration) *OpenIBAN {
	if baseURL == "" {
		baseURL = "https://openiban.com"
	}
	return &OpenIBAN{baseURL: baseURL, httpc: &http.Client{Timeout: timeout}}
}

func (o *OpenIBAN) Name() string { return "openiban" }

func (o *OpenIBAN) Validate(ctx context.Context, iban string) (ValidationResult, error) {
	endpoint := fmt.Sprintf("%s/validate/%s?%s", o.baseURL, url.PathEscape(iban), url.Values{
		"getBIC":           {"true"},
		"validateBankCode": {"true"},
	}.Encode())

	data, err := getJSON(ctx, o.httpc, endpoint)
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{IBAN: iban, Source: o.Name(), Valid: safejson.Bool(data, "valid", false)}
	if !result.Valid {
		return result, nil
	}

	bank := safejson.Map(data, "bankData")
	details := BankDetails{
		BankName:    safejson.Str(bank, "name", ""),
		BankCode:    safejson.Str(bank, "bankCode", ""),
		BIC:         safejson.Str(bank, "bic", ""),
		City:        safejson.Str(bank, "city", ""),
		CountryCode: countryCode(safejson.Str(data, "countryCode", "")),
	}
	// Country code alone is not bank knowledge; require name or code.
	if details.BankName == "" && details.BankCode == "" {
		return result, nil
	}
	details.Country = details.CountryCode
	result.Details = &details
	return result, nil
}

func countryCode(s string) string {
	if len(s) >= 2 {
		return s[:2]
	}
	return s
}

// getJSON performs one GET returning the decoded JSON object, with non-200
// statuses and undecodable bodies surfaced as errors so the chain skips to
// the next validator.
func getJSON(ctx context.Context, httpc *http.Client, endpoint string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return data, nil
}
