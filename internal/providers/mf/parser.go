package mf

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"companyhub/internal/address"
	"companyhub/internal/providers"
	"companyhub/internal/providers/iban"
	"companyhub/internal/safejson"
	"companyhub/pkg/requestcontext"
)

// Enricher resolves bank metadata for account numbers. Satisfied by
// *iban.Chain.
type Enricher interface {
	Enrich(ctx context.Context, account string) iban.Enrichment
}

// Parser turns raw whitelist responses into normalized payloads. Every field
// degrades independently: a mistyped address or person entry is dropped or
// kept raw, never fatal.
type Parser struct {
	enricher Enricher
	logger   *slog.Logger
}

func NewParser(enricher Enricher, logger *slog.Logger) *Parser {
	return &Parser{enricher: enricher, logger: logger}
}

// Parse normalizes one successful whitelist response for nip on date.
func (p *Parser) Parse(ctx context.Context, data map[string]any, nip, date string) providers.Payload {
	result := safejson.Map(data, "result")
	if result == nil {
		return p.notFound(ctx, nip, date, "invalid response format from whitelist API")
	}

	subject := safejson.Map(result, "subject")
	if subject == nil {
		return p.notFound(ctx, nip, date, "no subject data in whitelist response")
	}

	payload := providers.Payload{
		"found":                     true,
		"nip":                       nip,
		"date":                      date,
		"request_id":                safejson.Str(data, "requestId", ""),
		"fetched_at":                requestcontext.Now(ctx).UTC().Format(time.RFC3339),
		"name":                      safejson.Str(subject, "name", ""),
		"regon":                     safejson.Str(subject, "regon", ""),
		"krs":                       safejson.Str(subject, "krs", ""),
		"status_vat":                safejson.Str(subject, "statusVat", ""),
		"registration_legal_date":   safejson.Str(subject, "registrationLegalDate", ""),
		"registration_denial_basis": safejson.Str(subject, "registrationDenialBasis", ""),
		"registration_denial_date":  safejson.Str(subject, "registrationDenialDate", ""),
		"restoration_basis":         safejson.Str(subject, "restorationBasis", ""),
		"restoration_date":          safejson.Str(subject, "restorationDate", ""),
		"removal_basis":             safejson.Str(subject, "removalBasis", ""),
		"removal_date":              safejson.Str(subject, "removalDate", ""),
		"has_virtual_accounts":      safejson.Bool(subject, "hasVirtualAccounts", false),
		"address":                   p.parseAddress(ctx, subject["workingAddress"]),
		"residence_address":         p.parseAddress(ctx, subject["residenceAddress"]),
		"representatives":           parsePersons(safejson.Slice(subject, "representatives")),
		"authorized_persons":        parsePersons(safejson.Slice(subject, "authorizedClerks")),
		"partners":                  parsePersons(safejson.Slice(subject, "partners")),
	}
	payload["bank_accounts"] = p.parseBankAccounts(ctx, subject, date)
	return payload
}

// NotFound builds the payload recorded when the registry has no entry.
func (p *Parser) NotFound(ctx context.Context, nip, date, message string) providers.Payload {
	return p.notFound(ctx, nip, date, message)
}

func (p *Parser) notFound(ctx context.Context, nip, date, message string) providers.Payload {
	return providers.Payload{
		"found":      false,
		"nip":        nip,
		"date":       date,
		"message":    message,
		"fetched_at": requestcontext.Now(ctx).UTC().Format(time.RFC3339),
	}
}

// parseAddress accepts the two shapes the registry is known to emit: a
// structured object or a single free-text line.
func (p *Parser) parseAddress(ctx context.Context, raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return address.Parse(v)
	case map[string]any:
		return address.Address{
			Street:          safejson.Str(v, "street", ""),
			BuildingNumber:  safejson.Str(v, "buildingNumber", ""),
			ApartmentNumber: safejson.Str(v, "apartmentNumber", ""),
			City:            safejson.Str(v, "city", ""),
			PostalCode:      safejson.Str(v, "postalCode", ""),
			Country:         safejson.Str(v, "country", "Polska"),
		}
	default:
		p.logger.WarnContext(ctx, "address is neither string nor object", "type", typeName(raw))
		return nil
	}
}

// parseBankAccounts normalizes account numbers to IBAN form and enriches
// each through the fallback chain. Enrichment failures mark the account,
// they never drop it.
func (p *Parser) parseBankAccounts(ctx context.Context, subject map[string]any, date string) []map[string]any {
	accounts := safejson.StrSlice(subject, "accountNumbers")
	out := make([]map[string]any, 0, len(accounts))

	for _, account := range accounts {
		if strings.TrimSpace(account) == "" {
			continue
		}
		formatted := iban.FormatAsIBAN(account, "PL")
		info := map[string]any{
			"account_number": formatted,
			"validated":      true,
			"date":           date,
		}
		if p.enricher != nil {
			enr := p.enricher.Enrich(ctx, formatted)
			info["enrichment"] = enr
			info["enrichment_available"] = enr.Available
			if enr.Details != nil {
				info["bank_name"] = enr.Details.BankName
				info["bic"] = enr.Details.BIC
			}
			if enr.FormattedIBAN != "" {
				info["formatted_iban"] = enr.FormattedIBAN
			}
		} else {
			info["enrichment_available"] = false
		}
		out = append(out, info)
	}
	return out
}

// parsePersons keeps representative/clerk/partner entries that carry at
// least one non-blank field and drops everything else.
func parsePersons(raw []any) []map[string]string {
	out := make([]map[string]string, 0, len(raw))
	for _, entry := range raw {
		person, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		parsed := map[string]string{
			"company_name": safejson.Str(person, "companyName", ""),
			"first_name":   safejson.Str(person, "firstName", ""),
			"last_name":    safejson.Str(person, "lastName", ""),
			"nip":          safejson.Str(person, "nip", ""),
			"pesel":        safejson.Str(person, "pesel", ""),
		}
		if hasContent(parsed) {
			out = append(out, parsed)
		}
	}
	return out
}

func hasContent(fields map[string]string) bool {
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func typeName(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case float64:
		return "number"
	case bool:
		return "bool"
	default:
		return "unknown"
	}
}
