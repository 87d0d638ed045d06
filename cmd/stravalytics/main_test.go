package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv points the tool at empty temporary directories and clears any
// settings inherited from the developer's environment.
func setEnv(t *testing.T, values map[string]string) (dataDir, cacheDir string) {
	t.Helper()
	for _, k := range []string{
		"STRAVA_CLIENT_ID", "STRAVA_CLIENT_SECRET", "STRAVA_REDIRECT_URI", "STRAVA_SCOPE",
		"STRAVA_AUTH_URL", "STRAVA_TOKEN_URL", "STRAVA_API_URL", "REDIS_URL", "TABLE_DSN",
		"ATHLETE_WEIGHT_KG", "HTTP_TIMEOUT", "AUTH_TIMEOUT", "LOG_LEVEL", "LOG_FILE", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	dataDir, cacheDir = t.TempDir(), t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("CACHE_DIR", cacheDir)
	for k, v := range values {
		t.Setenv(k, v)
	}
	return dataDir, cacheDir
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: stravalytics")

	code, _, stderr = runCmd(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "cache-info")

	code, _, stderr = runCmd(t, "dance")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "dance"`)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		stage string
		hint  string
	}{
		{
			name:  "nothing cached",
			args:  []string{"summary"},
			stage: "error (cache)",
			hint:  "stravalytics fetch",
		},
		{
			name:  "no credentials",
			args:  []string{"fetch"},
			stage: "error (auth)",
			hint:  "STRAVA_CLIENT_ID",
		},
		{
			name:  "not authorized",
			env:   map[string]string{"STRAVA_CLIENT_ID": "1", "STRAVA_CLIENT_SECRET": "secret"},
			args:  []string{"fetch"},
			stage: "error (auth)",
			hint:  "stravalytics auth",
		},
		{
			name:  "bad flag",
			args:  []string{"recent", "-bogus"},
			stage: "error (config)",
		},
		{
			name:  "bad date",
			args:  []string{"summary", "-from", "yesterday"},
			stage: "error (config)",
		},
		{
			name:  "missing id",
			args:  []string{"streams"},
			stage: "error (config)",
		},
		{
			name:  "activity without id",
			args:  []string{"activity", "-id", "0"},
			stage: "error (config)",
		},
		{
			name:  "bad config",
			env:   map[string]string{"LOG_FORMAT": "xml"},
			args:  []string{"summary"},
			stage: "error (config)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			code, _, stderr := runCmd(t, tc.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, tc.stage)
			if tc.hint != "" {
				assert.Contains(t, stderr, tc.hint)
			}
		})
	}
}

const activitiesJSON = `[
  {"id": 2, "name": "Evening Ride", "type": "Ride", "start_date": "2024-03-05T17:00:00Z",
   "start_date_local": "2024-03-05T17:00:00Z", "distance": 30000, "moving_time": 3600,
   "elapsed_time": 3700, "total_elevation_gain": 210, "average_speed": 8.33, "max_speed": 14.2},
  {"id": 1, "name": "Morning Run", "type": "Run", "start_date": "2024-03-04T07:00:00Z",
   "start_date_local": "2024-03-04T07:00:00Z", "distance": 5000, "moving_time": 1500,
   "elapsed_time": 1600, "total_elevation_gain": 40, "average_speed": 3.33, "max_speed": 4.9}
]`

func stravaServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var listCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		atomic.AddInt32(&listCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			fmt.Fprint(w, "[]")
			return
		}
		fmt.Fprint(w, activitiesJSON)
	})
	mux.HandleFunc("/api/v3/activities/2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("include_all_efforts"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 2, "name": "Evening Ride", "type": "Ride", "start_date": "2024-03-05T17:00:00Z",
			"start_date_local": "2024-03-05T17:00:00Z", "distance": 30000, "moving_time": 3600, "elapsed_time": 3700,
			"total_elevation_gain": 210, "average_speed": 8.33, "max_speed": 14.2, "calories": 812.5}`)
	})
	mux.HandleFunc("/api/v3/athlete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 134815, "firstname": "Jane", "lastname": "Doe", "weight": 60}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &listCalls
}

func TestRunFetchAndReport(t *testing.T) {
	ts, listCalls := stravaServer(t)
	_, cacheDir := setEnv(t, map[string]string{
		"STRAVA_CLIENT_ID":     "1",
		"STRAVA_CLIENT_SECRET": "secret",
		"STRAVA_API_URL":       ts.URL,
		"STRAVA_TOKEN_URL":     ts.URL + "/oauth/token",
	})
	token := fmt.Sprintf(`{"access_token":"access-token","refresh_token":"refresh-token","expires_at":%d}`, time.Now().Add(time.Hour).Unix())
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "strava_token.json"), []byte(token), 0o600))

	code, stdout, stderr := runCmd(t, "fetch")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Welcome, Jane!")
	assert.Contains(t, stdout, "2 activities cached")
	assert.Equal(t, int32(1), atomic.LoadInt32(listCalls))

	code, _, stderr = runCmd(t, "fetch")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int32(1), atomic.LoadInt32(listCalls), "second fetch is served from the cache")

	code, stdout, stderr = runCmd(t, "recent", "-n", "1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Evening Ride")
	assert.NotContains(t, stdout, "Morning Run")

	code, stdout, stderr = runCmd(t, "summary", "-type", "Run")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Welcome, Jane!")
	assert.Contains(t, stdout, "Showing 1 of 2 activities")

	code, stdout, stderr = runCmd(t, "records", "-from", "2024-03-05", "-to", "2024-03-05")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Evening Ride")
	assert.NotContains(t, stdout, "Morning Run")

	code, stdout, stderr = runCmd(t, "cache-info")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "yes")

	code, stdout, _ = runCmd(t, "auth", "-status")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "token: valid")

	code, stdout, stderr = runCmd(t, "activity", "-id", "2")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Evening Ride")
	assert.Contains(t, stdout, "30 km")
	assert.Contains(t, stdout, "813 kcal")

	code, _, stderr = runCmd(t, "fetch", "-force", "-limit", "1")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, int32(2), atomic.LoadInt32(listCalls))
	code, stdout, _ = runCmd(t, "recent")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Evening Ride")
	assert.NotContains(t, stdout, "Morning Run")
}

func TestHint(t *testing.T) {
	assert.Empty(t, hint(fmt.Errorf("something else")))
}
