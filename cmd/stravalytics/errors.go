package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/lildude/stravalytics/internal/auth"
	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/client"
	"github.com/lildude/stravalytics/internal/strava"
)

type stage string

const (
	stageConfig stage = "config"
	stageAuth   stage = "auth"
	stageFetch  stage = "fetch"
	stageCache  stage = "cache"
)

// stageError records which part of a run failed.
type stageError struct {
	stage stage
	err   error
}

func (e *stageError) Error() string { return string(e.stage) + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// hint suggests what the user can do about err.
func hint(err error) string {
	var ce *client.Error
	var dse *strava.DataShapeError
	switch {
	case errors.Is(err, auth.ErrCredentialMissing):
		return "set STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET in the environment or .env"
	case errors.Is(err, auth.ErrUnauthenticated):
		return "run `stravalytics auth` to authorize"
	case errors.Is(err, auth.ErrStateMismatch), errors.Is(err, auth.ErrAuthTimeout):
		return "run `stravalytics auth` again, or `stravalytics auth -paste`"
	case errors.Is(err, cache.ErrCacheMissing):
		return "run `stravalytics fetch` to download your activities"
	case errors.As(err, &dse):
		return "run `stravalytics fetch -force` to replace the cached data"
	case errors.As(err, &ce) && ce.RateLimited():
		return "Strava's rate limit was reached; wait 15 minutes and try again"
	case errors.As(err, &ce) && ce.Unauthorized():
		return "run `stravalytics auth` to authorize again"
	case errors.As(err, &ce) && ce.ServerError():
		return "Strava is having trouble; try again later"
	}
	return ""
}

func printError(w io.Writer, err error) {
	var se *stageError
	if errors.As(err, &se) {
		fmt.Fprintf(w, "error (%s): %v\n", se.stage, se.err)
	} else {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	if h := hint(err); h != "" {
		fmt.Fprintf(w, "hint: %s\n", h)
	}
}
