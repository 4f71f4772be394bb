// Package regon implements the stateful BIR registry source: SOAP transport,
// session lifecycle, and response mapping into the normalized schema.
package regon

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"companyhub/pkg/apperrors"
)

const (
	actionLogin  = "http://CIS/BIR/PUBL/2014/07/IUslugaBIRzewnPubl/Zaloguj"
	actionSearch = "http://CIS/BIR/PUBL/2014/07/IUslugaBIRzewnPubl/DaneSzukajPodmioty"
	actionReport = "http://CIS/BIR/PUBL/2014/07/IUslugaBIRzewnPubl/DanePobierzPelnyRaport"
)

// errUnauthorized marks a transport-level auth rejection. The API client
// invalidates the session and retries exactly once on it.
var errUnauthorized = errors.New("regon: unauthorized")

// The service wraps its SOAP envelope in a MIME multipart body; everything
// outside the envelope is noise.
var envelopeRe = regexp.MustCompile(`(?s)<s:Envelope.*?</s:Envelope>`)

// SoapClient executes SOAP calls against the BIR endpoint. It builds
// envelopes and extracts raw payloads; interpreting them is the mapper's job.
type SoapClient struct {
	apiURL string
	httpc  *http.Client
	logger *slog.Logger
}

// NewSoapClient creates a SOAP transport with a bounded per-call timeout.
func NewSoapClient(apiURL string, timeout time.Duration, logger *slog.Logger) *SoapClient {
	return &SoapClient{
		apiURL: apiURL,
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Call posts one SOAP envelope. A non-empty sessionID rides in the sid
// header the way the BIR service expects.
func (c *SoapClient) Call(ctx context.Context, action, body, sessionID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeProvider, Source, "build request")
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("Accept", "application/soap+xml")
	if sessionID != "" {
		req.Header.Set("sid", sessionID)
	}

	c.logger.DebugContext(ctx, "soap request", "source", Source, "action", action)

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", apperrors.Wrap(err, apperrors.CodeProvider, Source, "request timeout")
		}
		return "", apperrors.Wrap(err, apperrors.CodeProvider, Source, "request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeProvider, Source, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", errUnauthorized
	case resp.StatusCode != http.StatusOK:
		e := apperrors.New(apperrors.CodeProvider, Source,
			fmt.Sprintf("soap request failed with status %d", resp.StatusCode))
		e.HTTPStatus = resp.StatusCode
		return "", e
	}

	return string(raw), nil
}

// ExtractEnvelope trims a multipart response down to the SOAP envelope,
// returning the input unchanged when no envelope is found.
func ExtractEnvelope(raw string) string {
	if m := envelopeRe.FindString(raw); m != "" {
		return m
	}
	return raw
}

// elementText scans an XML document for the first element with the given
// local name and returns its trimmed character data.
func elementText(doc, localName string) (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	inTarget := false
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == localName {
				inTarget = true
				text.Reset()
			}
		case xml.CharData:
			if inTarget {
				text.Write(t)
			}
		case xml.EndElement:
			if inTarget && t.Name.Local == localName {
				return strings.TrimSpace(text.String()), true
			}
		}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
