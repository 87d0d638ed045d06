// Package auth acquires, refreshes and persists the Strava OAuth token record.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lildude/stravalytics/internal/client"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var (
	// ErrCredentialMissing is returned when the application credentials are not configured.
	ErrCredentialMissing = errors.New("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET must be set")

	// ErrUnauthenticated is returned when no usable token exists and one cannot be obtained without the user.
	ErrUnauthenticated = errors.New("not authenticated with Strava")
)

const (
	DefaultAuthURL  = "https://www.strava.com/oauth/authorize"
	DefaultTokenURL = "https://www.strava.com/oauth/token"
	DefaultScope    = "read,activity:read_all"
)

type State int

const (
	NoToken State = iota
	Valid
	Expired
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "no token"
	}
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scope is sent as is; Strava separates scopes with commas.
	Scope    string
	AuthURL  string
	TokenURL string
}

// Manager owns the token lifecycle: it hands out a valid access token,
// refreshing and persisting the record when it has expired.
type Manager struct {
	oauth    *oauth2.Config
	tokenURL string
	client   *client.Client
	hc       *http.Client
	store    Store
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewManager returns a Manager. A nil hc means http.DefaultClient.
func NewManager(cfg Config, store Store, hc *http.Client, log logrus.FieldLogger) (*Manager, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrCredentialMissing
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}

	tu, err := url.Parse(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("parsing token URL: %w", err)
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{cfg.Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenURL: cfg.TokenURL,
		client:   client.NewClient(tu, hc),
		hc:       hc,
		store:    store,
		log:      log,
		now:      time.Now,
	}, nil
}

func (m *Manager) RedirectURL() string {
	return m.oauth.RedirectURL
}

// AuthCodeURL returns the URL the user visits to grant access.
func (m *Manager) AuthCodeURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for a token record and persists it.
func (m *Manager) Exchange(ctx context.Context, code string) (*Record, error) {
	rec, err := m.grant(ctx, url.Values{
		"grant_type": {"authorization_code"},
		"code":       {code},
	})
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	var athlete struct {
		Username string `json:"username"`
	}
	if ok, _ := rec.ExtraField("athlete", &athlete); ok {
		m.log.WithField("username", athlete.Username).Info("successfully authenticated")
	} else {
		m.log.Info("successfully authenticated")
	}
	return rec, nil
}

// Refresh obtains a new record with the given refresh token. The new record,
// including any rotated refresh token, replaces the stored one.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (*Record, error) {
	rec, err := m.grant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		var apiErr *client.Error
		if errors.As(err, &apiErr) && apiErr.ClientError() {
			return nil, fmt.Errorf("%w: refresh rejected: %w", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	m.log.WithField("expires_at", rec.Expiry().Format(time.RFC3339)).Info("refreshed access token")
	return rec, nil
}

func (m *Manager) grant(ctx context.Context, data url.Values) (*Record, error) {
	data.Set("client_id", m.oauth.ClientID)
	data.Set("client_secret", m.oauth.ClientSecret)

	req, err := m.client.NewFormRequest(ctx, m.tokenURL, data)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := m.client.Do(req, &raw); err != nil {
		return nil, err
	}
	return parseGrant(raw, m.now())
}

// State reports the lifecycle state of the stored record.
func (m *Manager) State(ctx context.Context) (State, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return NoToken, err
	}
	switch {
	case rec == nil:
		return NoToken, nil
	case rec.Valid(m.now()):
		return Valid, nil
	default:
		return Expired, nil
	}
}

func (m *Manager) validRecord(ctx context.Context) (*Record, error) {
	rec, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	// Records without a refresh token are loaded as nil.
	if rec == nil {
		return nil, fmt.Errorf("%w: no stored token", ErrUnauthenticated)
	}
	if rec.Valid(m.now()) {
		return rec, nil
	}
	m.log.WithField("expired_at", rec.Expiry().Format(time.RFC3339)).Debug("access token expired, refreshing")
	return m.Refresh(ctx, rec.RefreshToken)
}

// ValidToken returns an access token that is valid now. A stored valid
// token is returned without any network call; an expired one is refreshed once.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	rec, err := m.validRecord(ctx)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

type tokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	rec, err := s.m.validRecord(s.ctx)
	if err != nil {
		return nil, err
	}
	return rec.Token(), nil
}

// TokenSource adapts the manager for golang.org/x/oauth2.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, tokenSource{ctx: ctx, m: m})
}

// HTTPClient returns a client that authorizes every request with a valid access token.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	if m.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.hc)
	}
	return oauth2.NewClient(ctx, m.TokenSource(ctx))
}
