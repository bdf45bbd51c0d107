package model

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// LoadError reports why the parameter file could not be turned into a Model.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("model: loading %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the raw parameter file.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	Location() string
}

type fileFetcher struct {
	path string
}

// FileFetcher reads the parameter file from the local filesystem.
func FileFetcher(path string) Fetcher {
	return fileFetcher{path: path}
}

func (f fileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.path)
}

func (f fileFetcher) Location() string {
	return f.path
}

type httpFetcher struct {
	client *resty.Client
	url    string
}

// HTTPFetcher downloads the parameter file with client. A nil client gets
// a default one with a one minute timeout.
func HTTPFetcher(client *resty.Client, url string) Fetcher {
	if client == nil {
		client = resty.New().SetTimeout(time.Minute)
	}
	return httpFetcher{client: client, url: url}
}

func (f httpFetcher) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch failed: %s", resp.Status())
	}
	return resp.Body(), nil
}

func (f httpFetcher) Location() string {
	return f.url
}

// Open picks a fetcher for location: http(s) URLs are downloaded, anything
// else is read from disk.
func Open(location string) Fetcher {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return HTTPFetcher(nil, location)
	}
	return FileFetcher(location)
}

// Store loads the model exactly once and hands it out to every caller.
// A failed load is final for the lifetime of the Store.
type Store struct {
	fetcher Fetcher
	once    sync.Once
	done    chan struct{}

	model *Model
	err   error
}

func NewStore(f Fetcher) *Store {
	return &Store{fetcher: f, done: make(chan struct{})}
}

// NewStaticStore returns a Store that is ready with m.
func NewStaticStore(m *Model) *Store {
	s := &Store{done: make(chan struct{}), model: m}
	s.once.Do(func() { close(s.done) })
	return s
}

// Load starts loading in the background. Only the first call does anything.
func (s *Store) Load() {
	s.once.Do(func() {
		go s.load()
	})
}

func (s *Store) load() {
	defer close(s.done)

	src := s.fetcher.Location()
	log.Debug("[Model] Loading model parameters from ", src)
	start := time.Now()

	data, err := s.fetcher.Fetch(context.Background())
	if err != nil {
		s.err = &LoadError{Source: src, Err: err}
		log.Error("[Model] Couldn't fetch model parameters: ", err.Error())
		return
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		s.err = &LoadError{Source: src, Err: err}
		log.Error("[Model] Couldn't parse model parameters: ", err.Error())
		return
	}
	s.model = m
	log.WithFields(log.Fields{
		"source":  src,
		"build":   m.Info.Build,
		"elapsed": time.Since(start),
	}).Info("[Model] Model loaded")
}

// Ready reports whether a model is available without waiting.
func (s *Store) Ready() bool {
	select {
	case <-s.done:
		return s.err == nil
	default:
		return false
	}
}

// Wait starts the load if nobody has yet and blocks until it finishes or
// ctx is done.
func (s *Store) Wait(ctx context.Context) (*Model, error) {
	s.Load()
	select {
	case <-s.done:
		return s.model, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
