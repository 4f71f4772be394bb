package regon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"companyhub/pkg/apperrors"
)

// Sessions expire server-side after 30 minutes of the Zaloguj handshake.
const sessionTTL = 30 * time.Minute

// SessionManager owns the BIR session token: NoSession -> Active -> Expired.
// The token never leaves this type except through Token, and login is
// single-flight so concurrent renewals collapse into one handshake.
type SessionManager struct {
	soap   *SoapClient
	apiKey string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time

	group singleflight.Group
}

// NewSessionManager creates a session manager around the SOAP transport.
func NewSessionManager(soap *SoapClient, apiKey string, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		soap:   soap,
		apiKey: apiKey,
		logger: logger,
		now:    time.Now,
	}
}

// Token returns the active session token, performing the login handshake
// when none is held or the held one expired.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token != "" && m.now().Before(m.expires) {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("login", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have renewed
		// between the fast path and joining the group.
		m.mu.Lock()
		if m.token != "" && m.now().Before(m.expires) {
			token := m.token
			m.mu.Unlock()
			return token, nil
		}
		m.mu.Unlock()
		return m.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the held token. Called after a downstream unauthorized
// response so the next Token call performs a fresh handshake.
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expires = time.Time{}
}

func (m *SessionManager) login(ctx context.Context) (string, error) {
	if m.apiKey == "" {
		return "", apperrors.New(apperrors.CodeSession, Source, "API key not configured")
	}

	m.logger.InfoContext(ctx, "creating session", "source", Source)

	raw, err := m.soap.Call(ctx, actionLogin, loginEnvelope(m.soap.apiURL, m.apiKey), "")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeSession, Source, "login handshake failed")
	}

	token, ok := elementText(ExtractEnvelope(raw), "ZalogujResult")
	if !ok || token == "" {
		return "", apperrors.New(apperrors.CodeSession, Source, "empty session token in login response")
	}

	m.mu.Lock()
	m.token = token
	m.expires = m.now().Add(sessionTTL)
	m.mu.Unlock()

	return token, nil
}

func loginEnvelope(apiURL, apiKey string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope" xmlns:ns="http://CIS/BIR/PUBL/2014/07">
	<soap:Header xmlns:wsa="http://www.w3.org/2005/08/addressing">
		<wsa:To>%s</wsa:To>
		<wsa:Action>%s</wsa:Action>
	</soap:Header>
	<soap:Body>
		<ns:Zaloguj>
			<ns:pKluczUzytkownika>%s</ns:pKluczUzytkownika>
		</ns:Zaloguj>
	</soap:Body>
</soap:Envelope>`, apiURL, actionLogin, apiKey)
}
