// Package hook dispatches one external process invocation per environment
// change, either translating the change into environment variables or
// writing it as JSON to the child's standard input.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/envstore"
)

// ExecMode selects how a Change is communicated to the hook process.
type ExecMode string

const (
	// ExecModeEnv passes change fields as LDAC_-prefixed environment
	// variables.
	ExecModeEnv ExecMode = "env"
	// ExecModeChangeJSON writes a JSON document to the child's stdin.
	ExecModeChangeJSON ExecMode = "change-json"
)

// Kind is the event kind reported to the hook, matching the stream's own
// change vocabulary plus the synthetic "initialized" and "key_expired"
// kinds.
type Kind string

const (
	KindInsert      Kind = "insert"
	KindUpdate      Kind = "update"
	KindDelete      Kind = "delete"
	KindInitialized Kind = "initialized"
	KindKeyExpired  Kind = "key_expired"
)

// Change is the payload a single Dispatch call delivers to the hook.
type Change struct {
	Kind Kind
	Env  envstore.Environment
	// ExpiredKeySuffix is set only for KindKeyExpired: the last four
	// characters of the SDK key that just expired, never the full value.
	ExpiredKeySuffix string
}

// changeJSON is the wire shape written to a child's stdin in
// ExecModeChangeJSON.
type changeJSON struct {
	Kind             Kind                     `json:"kind"`
	ProjectKey       string                   `json:"projectKey"`
	EnvironmentKey   string                   `json:"environmentKey"`
	EnvironmentID    credential.EnvironmentID `json:"environmentId"`
	MobileKey        credential.MobileKey     `json:"mobileKey"`
	SDKKey           credential.SDKKey        `json:"sdkKey"`
	ExpiredKeySuffix string                   `json:"expiredKeySuffix,omitempty"`
}

// Error reports that a hook invocation failed, either to spawn or with a
// non-zero exit. Per the error taxonomy this is always non-fatal to the
// supervisor.
type Error struct {
	Kind     Kind
	ExitCode int
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("hook %q: %s", e.Kind, e.Cause)
	}
	return fmt.Sprintf("hook %q exited with status %d", e.Kind, e.ExitCode)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Dispatcher spawns the configured hook command once per Dispatch call. It
// holds no concurrency-control state of its own; invariant I4 (one hook in
// flight at a time) is the caller's responsibility, satisfied by driving
// Dispatch from the single-goroutine supervisor loop.
type Dispatcher struct {
	command string
	args    []string
	mode    ExecMode
}

// New returns a Dispatcher that invokes command with args appended to
// every invocation, communicating change data per mode.
func New(command string, args []string, mode ExecMode) *Dispatcher {
	return &Dispatcher{command: command, args: args, mode: mode}
}

// Dispatch runs the hook command once for change. It blocks until the
// child exits or ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, change Change) error {
	cmd := exec.CommandContext(ctx, d.command, d.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	switch d.mode {
	case ExecModeEnv:
		cmd.Env = append(os.Environ(), envVars(change)...)
	case ExecModeChangeJSON:
		cmd.Env = os.Environ()
		payload, err := json.Marshal(toChangeJSON(change))
		if err != nil {
			return &Error{Kind: change.Kind, Cause: fmt.Errorf("encoding change payload: %w", err)}
		}
		cmd.Stdin = bytes.NewReader(payload)
	default:
		return &Error{Kind: change.Kind, Cause: fmt.Errorf("unrecognized exec mode %q", d.mode)}
	}

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &Error{Kind: change.Kind, ExitCode: exitErr.ExitCode()}
		}
		return &Error{Kind: change.Kind, Cause: err}
	}
	return nil
}

func envVars(c Change) []string {
	vars := []string{
		"LDAC_EVENT_KIND=" + string(c.Kind),
		"LDAC_PROJECT_KEY=" + c.Env.ProjectKey,
		"LDAC_ENV_KEY=" + c.Env.EnvKey,
		"LDAC_ENV_ID=" + string(c.Env.EnvID),
		"LDAC_MOBILE_KEY=" + string(c.Env.MobileKey),
		"LDAC_SDK_KEY=" + string(c.Env.SDKKey),
	}
	if c.Kind == KindKeyExpired {
		vars = append(vars, "LDAC_EXPIRED_KEY_SUFFIX="+c.ExpiredKeySuffix)
	}
	return vars
}

func toChangeJSON(c Change) changeJSON {
	return changeJSON{
		Kind:             c.Kind,
		ProjectKey:       c.Env.ProjectKey,
		EnvironmentKey:   c.Env.EnvKey,
		EnvironmentID:    c.Env.EnvID,
		MobileKey:        c.Env.MobileKey,
		SDKKey:           c.Env.SDKKey,
		ExpiredKeySuffix: c.ExpiredKeySuffix,
	}
}
