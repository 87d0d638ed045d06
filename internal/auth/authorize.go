package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrStateMismatch is returned when the redirect does not carry the state we sent.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	ErrAuthTimeout = errors.New("timed out waiting for the authorization redirect")
)

// Authorizer runs the interactive authorization code flow.
type Authorizer struct {
	m       *Manager
	out     io.Writer
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewAuthorizer(m *Manager, out io.Writer, timeout time.Duration, log logrus.FieldLogger) *Authorizer {
	return &Authorizer{m: m, out: out, timeout: timeout, log: log}
}

type result struct {
	rec *Record
	err error
}

// Run prints the authorize URL and serves the redirect URI until Strava
// redirects back with a code, which is then exchanged and persisted.
func (a *Authorizer) Run(ctx context.Context) (*Record, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	u, err := url.Parse(a.m.RedirectURL())
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid redirect URI %q", a.m.RedirectURL())
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listening for the redirect on %s: %w", u.Host, err)
	}

	results := make(chan result, 1)
	server := &http.Server{
		Handler:           a.handler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			send(results, result{err: fmt.Errorf("callback server: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(a.out, "To authorize, open this URL in your browser:\n\n%s\n\nWaiting for the redirect to %s ...\n", a.m.AuthCodeURL(state), a.m.RedirectURL())

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	select {
	case res := <-results:
		return res.rec, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrAuthTimeout
		}
		return nil, ctx.Err()
	}
}

// Paste runs the flow without a local server: the user pastes the URL they
// were redirected to.
func (a *Authorizer) Paste(ctx context.Context, in io.Reader) (*Record, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	fmt.Fprintf(a.out, "To authorize, open this URL in your browser:\n\n%s\n\nPaste the URL you were redirected to: ", a.m.AuthCodeURL(state))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading redirect URL: %w", err)
	}

	u, err := url.Parse(strings.TrimSpace(line))
	if err == nil {
		if got := u.Query().Get("state"); got != "" && got != state {
			return nil, ErrStateMismatch
		}
	}

	code, err := CodeFromRedirectURL(line)
	if err != nil {
		return nil, err
	}
	return a.m.Exchange(ctx, code)
}

// handler handles the redirect back from Strava. The outcome of the first
// request carrying the expected state is sent on done.
func (a *Authorizer) handler(state string, done chan<- result) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			a.log.WithError(err).Error("unable to parse form")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		// Browsers also ask for favicons and the like.
		if r.Form.Get("state") == "" && r.Form.Get("code") == "" && r.Form.Get("error") == "" {
			http.NotFound(w, r)
			return
		}

		if r.Form.Get("state") != state {
			http.Error(w, "state invalid", http.StatusBadRequest)
			send(done, result{err: ErrStateMismatch})
			return
		}
		if e := r.Form.Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			send(done, result{err: fmt.Errorf("authorization denied: %s", e)})
			return
		}
		code := r.Form.Get("code")
		if code == "" {
			http.Error(w, "code not found", http.StatusBadRequest)
			send(done, result{err: errors.New("redirect carried no authorization code")})
			return
		}

		rec, err := a.m.Exchange(r.Context(), code)
		if err != nil {
			a.log.WithError(err).Error("token exchange failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			send(done, result{err: err})
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Authenticated with Strava. You can close this window and return to the terminal.")
		send(done, result{rec: rec})
	})
}

func send(ch chan<- result, res result) {
	select {
	case ch <- res:
	default:
	}
}

// CodeFromRedirectURL extracts the authorization code from the URL Strava
// redirected the browser to.
func CodeFromRedirectURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("no code parameter in %q", raw)
	}
	return code, nil
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
