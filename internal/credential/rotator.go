package credential

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// ExpiryNotice describes an SDK key that has just passed its expiration
// timestamp and should be treated as no longer valid.
type ExpiryNotice struct {
	Path    string
	Env     EnvironmentID
	ProjKey string
	OldKey  SDKKey
}

// Rotator tracks SDK keys that a Patch/Put has marked as deprecated-with-
// expiry, firing a timer for each one and reporting it on Expirations()
// once the clock passes the expiry timestamp. It supplements the base
// protocol, which otherwise has no way to tell the Hook Dispatcher that a
// previously-valid key should be pruned.
type Rotator struct {
	loggers     ldlog.Loggers
	timers      map[SDKKey]*time.Timer
	expirations chan ExpiryNotice
}

// NewRotator creates a Rotator. Callers must call Stop when finished to
// release any pending timers.
func NewRotator(loggers ldlog.Loggers) *Rotator {
	return &Rotator{
		loggers:     loggers,
		timers:      make(map[SDKKey]*time.Timer),
		expirations: make(chan ExpiryNotice, 1),
	}
}

// Expirations returns the channel on which expiry notices are delivered.
func (r *Rotator) Expirations() <-chan ExpiryNotice {
	return r.expirations
}

// Track starts a timer for oldKey if one isn't already running, to fire at
// expiresAt. If expiresAt is already in the past, it reports the expiry
// immediately instead of starting a timer -- LaunchDarkly sometimes
// delivers "expiring" keys whose expiration has already elapsed, and those
// should not wait for a retroactive timer.
func (r *Rotator) Track(path string, env EnvironmentID, projKey string, oldKey SDKKey, expiresAt time.Time) {
	if !oldKey.Defined() {
		return
	}
	if _, tracking := r.timers[oldKey]; tracking {
		return
	}

	delay := time.Until(expiresAt)
	if delay <= 0 {
		r.fire(path, env, projKey, oldKey)
		return
	}

	r.loggers.Warnf(logMsgKeyWillExpire, oldKey.Masked(), env, projKey, expiresAt)
	r.timers[oldKey] = time.AfterFunc(delay, func() {
		r.fire(path, env, projKey, oldKey)
	})
}

// Forget cancels any pending timer for oldKey without firing an expiry
// notice, used when a later message supersedes the key before it expires.
func (r *Rotator) Forget(oldKey SDKKey) {
	if t, ok := r.timers[oldKey]; ok {
		t.Stop()
		delete(r.timers, oldKey)
	}
}

// Stop cancels all pending timers.
func (r *Rotator) Stop() {
	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
}

func (r *Rotator) fire(path string, env EnvironmentID, projKey string, oldKey SDKKey) {
	delete(r.timers, oldKey)
	r.loggers.Infof(logMsgKeyExpired, oldKey.Masked(), env, projKey)
	r.expirations <- ExpiryNotice{Path: path, Env: env, ProjKey: projKey, OldKey: oldKey}
}

const (
	logMsgKeyWillExpire = "Old SDK key ending in %s for environment %s (%s) will expire at %s"
	logMsgKeyExpired    = "Old SDK key ending in %s for environment %s (%s) has expired"
)
