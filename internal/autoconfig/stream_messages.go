package autoconfig

import (
	"encoding/json"
	"time"

	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/envstore"
)

// These are the SSE event names the auto-configuration stream sends.
const (
	putEvent       = "put"
	patchEvent     = "patch"
	deleteEvent    = "delete"
	reconnectEvent = "reconnect"

	// filterPathPrefix identifies a patch/delete path as addressing the
	// filter population rather than an environment. Any path that doesn't
	// match it is treated as an environment path -- including the base,
	// un-prefixed paths the source itself uses -- so filters extend the
	// vocabulary without narrowing what already worked.
	filterPathPrefix = "/filters/"
)

// putMessageData is the JSON data for a "put" event: the full environment
// and filter population.
type putMessageData struct {
	Path string        `json:"path"`
	Data putContentRep `json:"data"`
}

type putContentRep struct {
	Environments map[string]envEntryRep    `json:"environments"`
	Filters      map[string]filterEntryRep `json:"filters"`
}

// patchMessageData is the JSON data for a "patch" event: an upsert of a
// single environment or filter, identified by its path. The shape of Data
// depends on whether Path falls under filterPathPrefix, so it is decoded a
// second time once that's known.
type patchMessageData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// deleteMessageData is the JSON data for a "delete" event.
type deleteMessageData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// envEntryRep is the wire representation of an environment, as delivered
// inside a "put" or "patch" event. SDKKey is a flat credential string, per
// the source's own EnvEntry wire shape; an in-progress SDK key rotation is
// carried as an additive sibling field rather than nesting SDKKey itself,
// so the base (non-rotating) wire shape is untouched.
type envEntryRep struct {
	EnvID          credential.EnvironmentID `json:"envID"`
	EnvKey         string                   `json:"envKey"`
	ProjKey        string                   `json:"projKey"`
	MobKey         credential.MobileKey     `json:"mobKey"`
	SDKKey         credential.SDKKey        `json:"sdkKey"`
	ExpiringSDKKey *expiringKeyRep          `json:"expiringSdkKey,omitempty"`
	Version        int                      `json:"version"`
}

type expiringKeyRep struct {
	Value     credential.SDKKey `json:"value"`
	Timestamp int64             `json:"timestamp"` // Unix milliseconds
}

func (e envEntryRep) toEnvironment(path string) envstore.Environment {
	env := envstore.Environment{
		Path:       path,
		ProjectKey: e.ProjKey,
		EnvKey:     e.EnvKey,
		EnvID:      e.EnvID,
		MobileKey:  e.MobKey,
		SDKKey:     e.SDKKey,
		Version:    e.Version,
	}
	if e.ExpiringSDKKey != nil && e.ExpiringSDKKey.Value.Defined() {
		env.ExpiringSDKKey = e.ExpiringSDKKey.Value
		env.ExpiringSDKKeyExpiresAt = time.UnixMilli(e.ExpiringSDKKey.Timestamp)
	}
	return env
}

// filterEntryRep is the wire representation of a filter.
type filterEntryRep struct {
	ProjKey   string `json:"projKey"`
	FilterKey string `json:"key"`
	Version   int    `json:"version"`
}

func (f filterEntryRep) toFilter(path string) envstore.Filter {
	return envstore.Filter{
		Path:       path,
		ProjectKey: f.ProjKey,
		FilterKey:  f.FilterKey,
		Version:    f.Version,
	}
}
