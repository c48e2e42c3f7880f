package autoconfig

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/tarqd/ldactl/internal/envstore"
	"github.com/tarqd/ldactl/internal/sse"
)

// Decoder turns sse.Frame values into EnvChange / FilterChange values,
// applying each one to a Store as it goes and enforcing ordering via a
// pair of MessageReceivers (one for environments, one for filters).
//
// A single Decoder is meant to be driven by one stream connection at a
// time; see Supervisor for the connection lifecycle around it.
type Decoder struct {
	store   *envstore.Store
	loggers ldlog.Loggers

	envReceiver    *MessageReceiver[envstore.Environment]
	filterReceiver *MessageReceiver[envstore.Filter]

	pendingEnv    []EnvChange
	pendingFilter []FilterChange
}

// NewDecoder returns a Decoder that applies changes to store.
func NewDecoder(store *envstore.Store, loggers ldlog.Loggers) *Decoder {
	d := &Decoder{store: store, loggers: loggers}
	d.envReceiver = NewMessageReceiver[envstore.Environment](&envSink{d: d}, loggers)
	d.filterReceiver = NewMessageReceiver[envstore.Filter](&filterSink{d: d}, loggers)
	return d
}

// envSink and filterSink adapt the Store's ApplyX methods, plus this
// Decoder's pending-change buffers, to the ItemReceiver interface that
// MessageReceiver expects.
type envSink struct{ d *Decoder }

func (s *envSink) Insert(env envstore.Environment) {
	s.d.store.ApplyEnvironmentPatch(env.Path, env)
	s.d.pendingEnv = append(s.d.pendingEnv, EnvChange{Kind: KindInsert, Env: env})
}

func (s *envSink) Update(env envstore.Environment) {
	s.d.store.ApplyEnvironmentPatch(env.Path, env)
	s.d.pendingEnv = append(s.d.pendingEnv, EnvChange{Kind: KindUpdate, Env: env})
}

func (s *envSink) Delete(id string) {
	last, _ := s.d.store.Environment(id)
	s.d.store.ApplyEnvironmentDelete(id, last.Version)
	s.d.pendingEnv = append(s.d.pendingEnv, EnvChange{Kind: KindDelete, Env: last})
}

type filterSink struct{ d *Decoder }

func (s *filterSink) Insert(f envstore.Filter) {
	s.d.store.ApplyFilterPatch(f.Path, f)
	s.d.pendingFilter = append(s.d.pendingFilter, FilterChange{Kind: KindInsert, Filter: f})
}

func (s *filterSink) Update(f envstore.Filter) {
	s.d.store.ApplyFilterPatch(f.Path, f)
	s.d.pendingFilter = append(s.d.pendingFilter, FilterChange{Kind: KindUpdate, Filter: f})
}

func (s *filterSink) Delete(id string) {
	last, _ := s.d.store.Filter(id)
	s.d.store.ApplyFilterDelete(id, last.Version)
	s.d.pendingFilter = append(s.d.pendingFilter, FilterChange{Kind: KindDelete, Filter: last})
}

// Result is what a single Frame decodes into. At most one of EnvChanges,
// FilterChanges, Retry and Err is set; a "put" sets Initialized together
// with EnvChanges.
type Result struct {
	EnvChanges    []EnvChange
	FilterChanges []FilterChange
	Initialized   bool
	Retry         *RetryHint
	Err           error
}

// Decode consumes one sse.Frame and returns the Changes it produced, if
// any. A Comment frame always yields a zero Result. A malformed put/patch/
// delete payload yields a Result with Err set; the caller (the Supervisor)
// treats this as a protocol fault and restarts the connection.
func (d *Decoder) Decode(frame sse.Frame) Result {
	switch frame.Kind {
	case sse.FrameComment:
		return Result{}
	case sse.FrameRetry:
		return Result{Retry: &RetryHint{Delay: time.Duration(frame.RetryMS) * time.Millisecond}}
	case sse.FrameEvent:
		return d.decodeEvent(frame.Event)
	default:
		return Result{}
	}
}

func (d *Decoder) decodeEvent(ev sse.Event) Result {
	d.pendingEnv = nil
	d.pendingFilter = nil

	switch ev.Name {
	case putEvent:
		return d.decodePut(ev.Data)
	case patchEvent:
		return d.decodePatch(ev.Data)
	case deleteEvent:
		return d.decodeDelete(ev.Data)
	case reconnectEvent:
		d.loggers.Infof(logMsgDeliberateReconnect)
		return Result{Err: errReconnect}
	default:
		d.loggers.Warnf(logMsgUnknownEvent, ev.Name)
		return Result{}
	}
}

func (d *Decoder) decodePut(data []byte) Result {
	var msg putMessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		return Result{Err: errMalformedData(putEvent, err)}
	}

	envs := make(map[string]envstore.Environment, len(msg.Data.Environments))
	paths := make([]string, 0, len(msg.Data.Environments))
	for path, entry := range msg.Data.Environments {
		envs[path] = entry.toEnvironment(path)
		paths = append(paths, path)
	}
	sort.Strings(paths)

	filters := make(map[string]envstore.Filter, len(msg.Data.Filters))
	for path, entry := range msg.Data.Filters {
		filters[path] = entry.toFilter(path)
	}

	d.store.ReplaceEnvironments(envs)
	d.store.ReplaceFilters(filters)
	d.envReceiver.ResetSnapshot(envs, func(e envstore.Environment) int { return e.Version })
	d.filterReceiver.ResetSnapshot(filters, func(f envstore.Filter) int { return f.Version })

	d.loggers.Infof(logMsgPutEvent, len(envs), len(filters))

	changes := make([]EnvChange, 0, len(paths))
	for _, path := range paths {
		changes = append(changes, EnvChange{Kind: KindInitialized, Env: envs[path]})
	}
	return Result{EnvChanges: changes, Initialized: true}
}

func (d *Decoder) decodePatch(data []byte) Result {
	var msg patchMessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		return Result{Err: errMalformedData(patchEvent, err)}
	}

	if strings.HasPrefix(msg.Path, filterPathPrefix) {
		var entry filterEntryRep
		if err := json.Unmarshal(msg.Data, &entry); err != nil {
			return Result{Err: errMalformedData(patchEvent, err)}
		}
		f := entry.toFilter(msg.Path)
		d.filterReceiver.Upsert(msg.Path, f, f.Version)
		return Result{FilterChanges: d.pendingFilter}
	}

	// Anything not under filterPathPrefix is an environment path. This
	// includes the base, un-prefixed paths the source itself sends.
	var entry envEntryRep
	if err := json.Unmarshal(msg.Data, &entry); err != nil {
		return Result{Err: errMalformedData(patchEvent, err)}
	}
	env := entry.toEnvironment(msg.Path)
	d.envReceiver.Upsert(msg.Path, env, env.Version)
	return Result{EnvChanges: d.pendingEnv}
}

func (d *Decoder) decodeDelete(data []byte) Result {
	var msg deleteMessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		return Result{Err: errMalformedData(deleteEvent, err)}
	}

	if strings.HasPrefix(msg.Path, filterPathPrefix) {
		d.filterReceiver.Delete(msg.Path, msg.Version)
		return Result{FilterChanges: d.pendingFilter}
	}

	d.envReceiver.Delete(msg.Path, msg.Version)
	return Result{EnvChanges: d.pendingEnv}
}
