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

// APILayer is the apilayer.com bank-data client, last in the chain.
type APILayer struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewAPILayer(baseURL, apiKey string, timeout time.Duration) *APILayer {
	if baseURL == "" {
		baseURL = "https://api.apilayer.com/bank_data"
	}
	return &APILayer{baseURL: baseURL, apiKey: apiKey, httpc: &http.Client{Timeout: timeout}}
}

func (c *APILayer) Name() string { return "apilayer_api" }

func (c *APILayer) Validate(ctx context.Context, iban string) (ValidationResult, error) {
	if c.apiKey == "" {
		return ValidationResult{}, fmt.Errorf("apilayer: no API key configured")
	}

	endpoint := fmt.Sprintf("%s/iban_validate?iban=%s", c.baseURL, url.QueryEscape(iban))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ValidationResult{}, err
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return ValidationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ValidationResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return ValidationResult{}, fmt.Errorf("decode response: %w", err)
	}

	result := ValidationResult{IBAN: iban, Source: c.Name(), Valid: safejson.Bool(data, "valid", false)}
	if !result.Valid {
		return result, nil
	}

	bank := safejson.Map(data, "bank_data")
	details := BankDetails{
		BankName:    safejson.Str(bank, "bank", ""),
		BankCode:    safejson.Str(bank, "bank_code", ""),
		BranchCode:  safejson.Str(bank, "branch_code", ""),
		BIC:         safejson.Str(bank, "bic", ""),
		City:        safejson.Str(bank, "city", ""),
		Country:     safejson.Str(bank, "country", ""),
		CountryCode: safejson.Str(bank, "country_iso", ""),
	}
	if !details.Empty() {
		result.Details = &details
	}
	return result, nil
}
