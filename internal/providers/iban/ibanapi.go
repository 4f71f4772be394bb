package iban

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"companyhub/internal/safejson"
)

// IBANAPI is the ibanapi.com client. It carries the richest bank data of the
// configured validators and therefore sits first in the chain. Without an
// API key it reports itself permanently unavailable.
type IBANAPI struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewIBANAPI(baseURL, apiKey string, timeout time.Duration) *IBANAPI {
	if baseURL == "" {
		baseURL = "https://api.ibanapi.com/v1"
	}
	return &IBANAPI{baseURL: baseURL, apiKey: apiKey, httpc: &http.Client{Timeout: timeout}}
}

func (c *IBANAPI) Name() string { return "ibanapi_com" }

func (c *IBANAPI) Validate(ctx context.Context, iban string) (ValidationResult, error) {
	if c.apiKey == "" {
		return ValidationResult{}, fmt.Errorf("ibanapi: no API key configured")
	}

	endpoint := fmt.Sprintf("%s/validate/%s?api_key=%s", c.baseURL, url.PathEscape(iban), url.QueryEscape(c.apiKey))
	data, err := getJSON(ctx, c.httpc, endpoint)
	if err != nil {
		return ValidationResult{}, err
	}

	// Result codes other than 200 mean the IBAN failed validation.
	result := ValidationResult{IBAN: iban, Source: c.Name()}
	if code, ok := data["result"].(float64); !ok || int(code) != http.StatusOK {
		return result, nil
	}
	result.Valid = true

	payload := safejson.Map(data, "data")
	bank := safejson.Map(payload, "bank")
	details := BankDetails{
		BankName:    safejson.Str(bank, "bank_name", ""),
		BankCode:    safejson.Str(bank, "bank_code", ""),
		BIC:         safejson.Str(bank, "bic", ""),
		City:        safejson.Str(bank, "city", ""),
		Country:     safejson.Str(payload, "country_name", ""),
		CountryCode: safejson.Str(payload, "country_code", ""),
		Currency:    safejson.Str(payload, "currency_code", ""),
	}
	if !details.Empty() {
		result.Details = &details
	}
	return result, nil
}
