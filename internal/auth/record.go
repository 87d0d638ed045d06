package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Record is the token record returned by the Strava token endpoint. Every
// field other than the three the tool relies on is kept verbatim in Extra.
type Record struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is in Unix seconds.
	ExpiresAt int64
	Extra     map[string]json.RawMessage
}

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldExpiresAt    = "expires_at"
	fieldExpiresIn    = "expires_in"
)

// complete reports whether all three core fields are present.
func (r *Record) complete() bool {
	return r != nil && r.AccessToken != "" && r.RefreshToken != "" && r.ExpiresAt > 0
}

// Valid reports whether the access token can still be used at now.
func (r *Record) Valid(now time.Time) bool {
	return r.complete() && now.Unix() < r.ExpiresAt
}

func (r *Record) Expiry() time.Time {
	return time.Unix(r.ExpiresAt, 0)
}

// Token converts the record for use with golang.org/x/oauth2 transports.
func (r *Record) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: r.RefreshToken,
		Expiry:       r.Expiry(),
	}
}

// ExtraField decodes an extra field returned by the token endpoint, such as
// "athlete", into v. It reports false if the field is absent.
func (r *Record) ExtraField(key string, v any) (bool, error) {
	raw, ok := r.Extra[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding token field %q: %w", key, err)
	}
	return true, nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		m[k] = v
	}
	m[fieldAccessToken] = r.AccessToken
	m[fieldRefreshToken] = r.RefreshToken
	m[fieldExpiresAt] = r.ExpiresAt
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var rec Record
	if err := popString(m, fieldAccessToken, &rec.AccessToken); err != nil {
		return err
	}
	if err := popString(m, fieldRefreshToken, &rec.RefreshToken); err != nil {
		return err
	}
	if raw, ok := m[fieldExpiresAt]; ok {
		var f float64
		if string(raw) != "null" {
			if err := json.Unmarshal(raw, &f); err != nil {
				return fmt.Errorf("decoding %s: %w", fieldExpiresAt, err)
			}
		}
		rec.ExpiresAt = int64(f)
		delete(m, fieldExpiresAt)
	}
	if len(m) > 0 {
		rec.Extra = m
	}

	*r = rec
	return nil
}

func popString(m map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := m[key]
	if !ok {
		return nil
	}
	delete(m, key)
	if string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// parseGrant turns a token endpoint response into a complete record. When
// the response carries only a relative lifetime, expires_at is computed from now.
func parseGrant(data []byte, now time.Time) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if rec.ExpiresAt == 0 {
		var in float64
		if ok, err := rec.ExtraField(fieldExpiresIn, &in); ok && err == nil && in > 0 {
			rec.ExpiresAt = now.Unix() + int64(in)
		}
	}
	if !rec.complete() {
		return nil, fmt.Errorf("token response is missing %s, %s or %s", fieldAccessToken, fieldRefreshToken, fieldExpiresAt)
	}
	return &rec, nil
}
