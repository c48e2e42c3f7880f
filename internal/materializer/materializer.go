// Package materializer writes the environment store's snapshot to a file
// atomically: a reader of the target path never observes a partial or
// empty write.
package materializer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/envstore"
)

// record is the on-disk shape of one environment entry.
type record struct {
	EnvID     credential.EnvironmentID `json:"envID"`
	EnvKey    string                   `json:"envKey"`
	ProjKey   string                   `json:"projKey"`
	MobileKey credential.MobileKey     `json:"mobKey"`
	SDKKey    credential.SDKKey        `json:"sdkKey"`
	Version   int                      `json:"version"`
}

// filterRecord is the on-disk shape of one filter entry.
type filterRecord struct {
	ProjKey   string `json:"projKey"`
	FilterKey string `json:"key"`
	Version   int    `json:"version"`
}

// Error wraps a materialization failure. Per the hook/materialize error
// taxonomy, this is always non-fatal: the caller logs and continues.
type Error struct {
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("materialize: %s", e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Materializer writes Store snapshots to a fixed target path.
type Materializer struct {
	targetPath  string
	filtersPath string
}

// New returns a Materializer that writes environments to targetPath. Filters,
// if any are present, are written to a sibling file so the environment file's
// top-level object stays exactly what the source describes: a map of
// environment path to record, with no wrapper key. targetPath must name a
// file, not a directory; its parent directory must already exist.
func New(targetPath string) *Materializer {
	return &Materializer{
		targetPath:  targetPath,
		filtersPath: siblingPath(targetPath, ".filters"),
	}
}

// siblingPath inserts suffix before target's extension, e.g.
// ("/data/envs.json", ".filters") -> "/data/envs.filters.json".
func siblingPath(target, suffix string) string {
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	return base + suffix + ext
}

// Materialize serializes envs to the target path as a flat JSON object
// keyed by environment path, and filters (when non-empty) to a sibling
// file keyed by filter path. Each file is replaced atomically; on any
// failure the temp file is removed and an *Error is returned, and any
// file that already existed is left untouched.
func (m *Materializer) Materialize(envs map[string]envstore.Environment, filters map[string]envstore.Filter) error {
	envDoc := make(map[string]record, len(envs))
	for path, env := range envs {
		envDoc[path] = record{
			EnvID:     env.EnvID,
			EnvKey:    env.EnvKey,
			ProjKey:   env.ProjectKey,
			MobileKey: env.MobileKey,
			SDKKey:    env.SDKKey,
			Version:   env.Version,
		}
	}

	if err := writeJSONAtomic(m.targetPath, envDoc); err != nil {
		return err
	}

	if len(filters) == 0 {
		return nil
	}

	filterDoc := make(map[string]filterRecord, len(filters))
	for path, f := range filters {
		filterDoc[path] = filterRecord{
			ProjKey:   f.ProjectKey,
			FilterKey: f.FilterKey,
			Version:   f.Version,
		}
	}

	return writeJSONAtomic(m.filtersPath, filterDoc)
}

// writeJSONAtomic marshals v and atomically replaces targetPath's contents
// via a temp-file-then-rename within the same directory.
func writeJSONAtomic(targetPath string, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return &Error{Cause: err}
	}

	dir := filepath.Dir(targetPath)
	base := filepath.Base(targetPath)

	// securejoin guards against the target's directory component
	// containing a symlink that escapes outside of an intended root; the
	// temp file and the final rename target both resolve through it so
	// they land in the same real directory (required for an atomic
	// same-filesystem rename).
	resolvedDir, err := securejoin.SecureJoin(dir, ".")
	if err != nil {
		return &Error{Cause: fmt.Errorf("resolving output directory %s: %w", dir, err)}
	}

	tmp, err := os.CreateTemp(resolvedDir, base+".tmp-*")
	if err != nil {
		return &Error{Cause: fmt.Errorf("creating temp file: %w", err)}
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return &Error{Cause: fmt.Errorf("writing temp file: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &Error{Cause: fmt.Errorf("fsyncing temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Cause: fmt.Errorf("closing temp file: %w", err)}
	}

	finalPath, err := securejoin.SecureJoin(resolvedDir, base)
	if err != nil {
		return &Error{Cause: fmt.Errorf("resolving target path: %w", err)}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &Error{Cause: fmt.Errorf("renaming temp file to %s: %w", finalPath, err)}
	}

	success = true
	return nil
}
