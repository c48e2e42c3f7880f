package autoconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/envstore"
	"github.com/tarqd/ldactl/internal/sse"
)

const (
	autoConfigStreamPath = "relay_auto_config"
	readChunkSize        = 4096
)

// Materializer writes the current store snapshot to a file. It is
// satisfied by *materializer.Materializer; the interface exists so this
// package does not need to import it directly.
type Materializer interface {
	Materialize(envs map[string]envstore.Environment, filters map[string]envstore.Filter) error
}

// HookDispatcher runs the external hook process for one change. The CLI
// satisfies it with a small adapter around *hook.Dispatcher.
type HookDispatcher interface {
	Dispatch(ctx context.Context, change HookChange) error
}

// HookChange is the data a HookDispatcher needs to describe one
// invocation. It mirrors hook.Change without this package importing the
// hook package's exec-mode concerns.
type HookChange struct {
	Kind             string
	Env              envstore.Environment
	ExpiredKeySuffix string
}

// FatalError is returned from Run when the stream cannot be retried, and
// carries the process exit code the caller should use.
type FatalError struct {
	ExitCode int
	Cause    error
}

func (e *FatalError) Error() string { return e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// Supervisor owns the auto-configuration stream connection: connecting,
// reconnecting with backoff, decoding frames, applying them to the store,
// and sequencing materialization and hook dispatch for each change.
type Supervisor struct {
	httpClient *http.Client
	streamURI  string
	credential credential.AutoConfigKey

	store        *envstore.Store
	decoder      *Decoder
	materializer Materializer
	hooks        HookDispatcher
	rotator      *credential.Rotator

	once    bool
	loggers ldlog.Loggers

	backoff *backoff
}

// Config bundles Supervisor's dependencies.
type Config struct {
	HTTPClient   *http.Client
	StreamURI    string
	Credential   credential.AutoConfigKey
	Store        *envstore.Store
	Materializer Materializer // nil disables materialization
	Hooks        HookDispatcher // nil disables hook dispatch
	Rotator      *credential.Rotator
	Once         bool
	Loggers      ldlog.Loggers
}

// NewSupervisor constructs a Supervisor from cfg.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{
		httpClient:   cfg.HTTPClient,
		streamURI:    cfg.StreamURI,
		credential:   cfg.Credential,
		store:        cfg.Store,
		decoder:      NewDecoder(cfg.Store, cfg.Loggers),
		materializer: cfg.Materializer,
		hooks:        cfg.Hooks,
		rotator:      cfg.Rotator,
		once:         cfg.Once,
		loggers:      cfg.Loggers,
		backoff:      newBackoff(),
	}
}

// Run connects to the stream and processes changes until ctx is
// cancelled, a fatal error occurs, or (in one-shot mode) the first Put has
// been fully processed. A non-nil, non-*FatalError return indicates the
// caller should treat this as a generic failure (exit code 1).
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		done, err := s.connectAndConsume(ctx)
		if err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return fatal
			}
			s.loggers.Warnf(logMsgStreamOtherError, err)
		}
		if done {
			return nil
		}

		delay := s.backoff.next()
		s.loggers.Infof(logMsgStreamReconnecting, delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// connectAndConsume performs one connection attempt and consumes frames
// until the connection ends. The returned bool is true if the supervisor
// should stop entirely (one-shot mode completed).
func (s *Supervisor) connectAndConsume(ctx context.Context) (bool, error) {
	url := strings.TrimRight(s.streamURI, "/") + "/" + autoConfigStreamPath
	s.loggers.Infof(logMsgStreamConnecting, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &FatalError{ExitCode: 2, Cause: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Authorization", s.credential.GetAuthorizationHeaderValue())
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return false, &FatalError{ExitCode: 3, Cause: fmt.Errorf("authentication rejected with status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusNotFound {
		return false, &FatalError{ExitCode: 4, Cause: fmt.Errorf("stream not found")}
	}
	if resp.StatusCode/100 != 2 {
		s.loggers.Warnf(logMsgStreamHTTPError, resp.StatusCode)
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return s.consume(ctx, resp.Body)
}

// readResult is sent by the background reader goroutine in consume.
type readResult struct {
	chunk []byte
	err   error
}

// consume drives the per-connection select loop: it reads transport bytes
// on a background goroutine so that, between chunks, the loop can also
// service SDK key expiry notices from the Rotator without waiting on the
// next byte from the wire.
func (s *Supervisor) consume(ctx context.Context, body io.Reader) (bool, error) {
	dec := sse.NewDecoder()

	reads := make(chan readResult)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		buf := make([]byte, readChunkSize)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case reads <- readResult{chunk: chunk}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case reads <- readResult{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	defer func() {
		<-readerDone
	}()

	// A nil channel blocks forever in a select, which is exactly what we
	// want when no Rotator is configured.
	var expirations <-chan credential.ExpiryNotice
	if s.rotator != nil {
		expirations = s.rotator.Expirations()
	}

	for {
		frame, ok, err := dec.Decode()
		if err != nil {
			return false, fmt.Errorf("codec error: %w", err)
		}
		if ok {
			done, err := s.applyFrame(ctx, frame)
			if err != nil {
				return false, err
			}
			if done {
				return true, nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return false, nil
		case notice := <-expirations:
			if err := s.dispatchKeyExpired(ctx, notice); err != nil {
				s.loggers.Warnf("%s", err)
			}
		case r := <-reads:
			if r.err != nil {
				if r.err == io.EOF {
					return false, nil
				}
				return false, r.err
			}
			dec.Write(r.chunk)
			s.backoff.reset()
		}
	}
}

func (s *Supervisor) applyFrame(ctx context.Context, frame sse.Frame) (bool, error) {
	result := s.decoder.Decode(frame)

	if result.Err != nil {
		if errors.Is(result.Err, errReconnect) {
			return false, fmt.Errorf("reconnect requested")
		}
		return false, result.Err
	}

	if result.Retry != nil {
		s.backoff.setNextDelay(result.Retry.Delay)
		return false, nil
	}

	if result.Initialized {
		if err := s.materialize(); err != nil {
			s.loggers.Warnf("%s", err)
		}
		if s.once {
			return true, nil
		}
		paths := make([]string, 0, len(result.EnvChanges))
		byPath := make(map[string]EnvChange, len(result.EnvChanges))
		for _, c := range result.EnvChanges {
			paths = append(paths, c.Env.Path)
			byPath[c.Env.Path] = c
		}
		sort.Strings(paths)
		for _, p := range paths {
			s.trackExpiry(byPath[p].Env)
			if err := s.dispatchHook(ctx, byPath[p]); err != nil {
				s.loggers.Warnf("%s", err)
			}
		}
		return false, nil
	}

	if len(result.EnvChanges) == 0 && len(result.FilterChanges) == 0 {
		return false, nil
	}

	if err := s.materialize(); err != nil {
		s.loggers.Warnf("%s", err)
	}
	for _, c := range result.EnvChanges {
		s.trackExpiry(c.Env)
		if err := s.dispatchHook(ctx, c); err != nil {
			s.loggers.Warnf("%s", err)
		}
	}
	// Filter changes are materialized but never dispatch a hook.
	return false, nil
}

func (s *Supervisor) materialize() error {
	if s.materializer == nil {
		return nil
	}
	return s.materializer.Materialize(s.store.SnapshotEnvironments(), s.store.SnapshotFilters())
}

func (s *Supervisor) dispatchHook(ctx context.Context, c EnvChange) error {
	if s.hooks == nil {
		return nil
	}
	return s.hooks.Dispatch(ctx, HookChange{Kind: string(c.Kind), Env: c.Env})
}

// dispatchKeyExpired fires the key_expired hook for an SDK key the Rotator
// has determined has passed its expiry. The environment's current record
// is looked up fresh from the store so the hook still sees the live SDK
// key alongside the expired one's suffix.
func (s *Supervisor) dispatchKeyExpired(ctx context.Context, notice credential.ExpiryNotice) error {
	if s.hooks == nil {
		return nil
	}
	env, _ := s.store.Environment(notice.Path)
	suffix := notice.OldKey.Masked()
	if len(suffix) > 3 {
		suffix = suffix[3:] // strip the "..." prefix Masked() adds
	}
	return s.hooks.Dispatch(ctx, HookChange{
		Kind:             string(KindKeyExpired),
		Env:              env,
		ExpiredKeySuffix: suffix,
	})
}

func (s *Supervisor) trackExpiry(env envstore.Environment) {
	if s.rotator == nil || !env.ExpiringSDKKey.Defined() {
		return
	}
	s.rotator.Track(env.Path, env.EnvID, env.ProjectKey, env.ExpiringSDKKey, env.ExpiringSDKKeyExpiresAt)
}

