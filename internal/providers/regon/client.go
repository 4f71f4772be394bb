package regon

import (
	"context"
	"errors"
	"fmt"

	"companyhub/pkg/apperrors"
)

// APIClient runs the two BIR data operations over an authenticated session.
type APIClient struct {
	soap    *SoapClient
	session *SessionManager
}

// NewAPIClient creates the high-level BIR client.
func NewAPIClient(soap *SoapClient, session *SessionManager) *APIClient {
	return &APIClient{soap: soap, session: session}
}

// SearchByNIP runs DaneSzukajPodmioty and returns the inner result XML
// (a <dane> record list), or "" when the service reported nothing.
func (c *APIClient) SearchByNIP(ctx context.Context, nip string) (string, error) {
	raw, err := c.callWithSession(ctx, actionSearch, func() string {
		return searchEnvelope(c.soap.apiURL, nip)
	})
	if err != nil {
		return "", err
	}
	inner, _ := elementText(ExtractEnvelope(raw), "DaneSzukajPodmiotyResult")
	return inner, nil
}

// FullReport runs DanePobierzPelnyRaport for the report matching the entity
// type and returns the inner result XML.
func (c *APIClient) FullReport(ctx context.Context, regon, reportName string) (string, error) {
	raw, err := c.callWithSession(ctx, actionReport, func() string {
		return reportEnvelope(c.soap.apiURL, regon, reportName)
	})
	if err != nil {
		return "", err
	}
	inner, ok := elementText(ExtractEnvelope(raw), "DanePobierzPelnyRaportResult")
	if !ok {
		return "", apperrors.New(apperrors.CodeProvider, Source, "no report data in response")
	}
	return inner, nil
}

// callWithSession executes one call carrying the current session token.
// An unauthorized response invalidates the session and retries exactly once
// with a fresh token; a second rejection surfaces as a provider error.
func (c *APIClient) callWithSession(ctx context.Context, action string, body func() string) (string, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return "", err
	}

	raw, err := c.soap.Call(ctx, action, body(), token)
	if errors.Is(err, errUnauthorized) {
		c.session.Invalidate()
		token, err = c.session.Token(ctx)
		if err != nil {
			return "", err
		}
		raw, err = c.soap.Call(ctx, action, body(), token)
		if errors.Is(err, errUnauthorized) {
			return "", apperrors.New(apperrors.CodeProvider, Source, "unauthorized after session renewal")
		}
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

func searchEnvelope(apiURL, nip string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:ns="http://CIS/BIR/PUBL/2014/07" xmlns:dat="http://CIS/BIR/PUBL/2014/07/DataContract">
	<soap:Header xmlns:wsa="http://www.w3.org/2005/08/addressing">
		<wsa:Action>%s</wsa:Action>
		<wsa:To>%s</wsa:To>
	</soap:Header>
	<soap:Body>
		<ns:DaneSzukajPodmioty>
			<ns:pParametryWyszukiwania>
				<dat:Nip>%s</dat:Nip>
			</ns:pParametryWyszukiwania>
		</ns:DaneSzukajPodmioty>
	</soap:Body>
</soap:Envelope>`, actionSearch, apiURL, nip)
}

func reportEnvelope(apiURL, regon, reportName string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:ns="http://CIS/BIR/PUBL/2014/07">
	<soap:Header xmlns:wsa="http://www.w3.org/2005/08/addressing">
		<wsa:Action>%s</wsa:Action>
		<wsa:To>%s</wsa:To>
	</soap:Header>
	<soap:Body>
		<ns:DanePobierzPelnyRaport>
			<ns:pRegon>%s</ns:pRegon>
			<ns:pNazwaRaportu>%s</ns:pNazwaRaportu>
		</ns:DanePobierzPelnyRaport>
	</soap:Body>
</soap:Envelope>`, actionReport, apiURL, regon, reportName)
}
