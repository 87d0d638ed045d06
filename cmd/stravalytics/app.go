package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lildude/stravalytics/internal/analysis"
	"github.com/lildude/stravalytics/internal/auth"
	"github.com/lildude/stravalytics/internal/cache"
	"github.com/lildude/stravalytics/internal/client"
	"github.com/lildude/stravalytics/internal/config"
	"github.com/lildude/stravalytics/internal/database"
	"github.com/lildude/stravalytics/internal/fetcher"
	"github.com/lildude/stravalytics/internal/metrics"
	"github.com/lildude/stravalytics/internal/report"
	"github.com/lildude/stravalytics/internal/strava"
	"github.com/lildude/stravalytics/internal/table"
	"github.com/sirupsen/logrus"
)

const (
	redisDataPrefix    = "stravalytics:data:"
	redisStreamsPrefix = "stravalytics:streams:"
)

// app holds the components shared by every command. Nothing here talks to
// Strava until a command needs it.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	hc      *http.Client
	tokens  auth.Store
	fetcher *fetcher.Fetcher
	report  *report.Report
	stdin   io.Reader
	stdout  io.Writer
	closers []io.Closer

	manager *auth.Manager
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, stdin io.Reader, stdout io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		log:    log,
		hc:     &http.Client{Timeout: cfg.HTTPTimeout},
		report: report.New(stdout),
		stdin:  stdin,
		stdout: stdout,
	}

	var data, streams cache.Cache
	if cfg.RedisURL != "" {
		rd, err := cache.NewRedisCache(ctx, cfg.RedisURL, redisDataPrefix)
		if err != nil {
			return nil, &stageError{stage: stageCache, err: err}
		}
		a.closers = append(a.closers, rd)
		rs, err := cache.NewRedisCache(ctx, cfg.RedisURL, redisStreamsPrefix)
		if err != nil {
			a.Close()
			return nil, &stageError{stage: stageCache, err: err}
		}
		a.closers = append(a.closers, rs)
		data, streams = rd, rs
		a.tokens = auth.NewCacheStore(rd)
	} else {
		fd, err := cache.NewFileCache(cfg.DataDir)
		if err != nil {
			return nil, &stageError{stage: stageCache, err: err}
		}
		fs, err := cache.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, &stageError{stage: stageCache, err: err}
		}
		data, streams = fd, fs
		a.tokens = auth.NewFileStore(cfg.TokenPath(auth.TokenFile))
	}

	var tbl table.Store
	if cfg.TableDSN != "" {
		db, err := database.InitDB(cfg.TableDSN)
		if err != nil {
			a.Close()
			return nil, &stageError{stage: stageCache, err: err}
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB)
		}
		tbl = database.NewStore(db)
	} else {
		tbl = table.NewCSVStore(cfg.TablePath())
	}

	a.fetcher = fetcher.New(a.connect, data, streams, tbl, log)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.WithError(err).Warn("closing")
		}
	}
	a.closers = nil
}

func (a *app) authManager() (*auth.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	m, err := auth.NewManager(auth.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  a.cfg.RedirectURI,
		Scope:        a.cfg.Scope,
		AuthURL:      a.cfg.AuthURL,
		TokenURL:     a.cfg.TokenURL,
	}, a.tokens, a.hc, a.log)
	if err != nil {
		return nil, &stageError{stage: stageAuth, err: err}
	}
	a.manager = m
	return m, nil
}

// connect builds the API client on first use. The token is checked up front
// so an unauthenticated run fails before any request is attempted.
func (a *app) connect(ctx context.Context) (fetcher.API, error) {
	m, err := a.authManager()
	if err != nil {
		return nil, err
	}
	if _, err := m.ValidToken(ctx); err != nil {
		return nil, &stageError{stage: stageAuth, err: err}
	}

	base, err := url.Parse(a.cfg.APIURL)
	if err != nil {
		return nil, &stageError{stage: stageConfig, err: fmt.Errorf("parsing STRAVA_API_URL: %w", err)}
	}
	hc := m.HTTPClient(ctx)
	hc.Timeout = a.cfg.HTTPTimeout
	return strava.NewAPI(client.NewClient(base, hc)), nil
}

// weight is the configured weight, or the cached athlete's when unset.
func (a *app) weight(ctx context.Context) float64 {
	if a.cfg.AthleteWeightKg > 0 {
		return a.cfg.AthleteWeightKg
	}
	athlete, err := a.fetcher.LoadAthlete(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMissing) {
			a.log.WithError(err).Warn("reading cached athlete")
		}
		return 0
	}
	w, _ := athlete.WeightKg()
	return w
}

// session loads the table from the cache and applies f.
func (a *app) session(ctx context.Context, f analysis.Filter) (*analysis.Session, error) {
	rows, err := a.fetcher.LoadTable(ctx)
	if err != nil {
		return nil, &stageError{stage: stageCache, err: err}
	}
	s := analysis.New(rows, metrics.Options{WeightKg: a.weight(ctx)})
	return s.WithFilter(f), nil
}
