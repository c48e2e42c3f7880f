// Package config resolves ldactl's settings from command-line flags and
// their environment-variable fallbacks, and validates the result.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	ct "github.com/launchdarkly/go-configtypes"

	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/hook"
)

// Exit codes, per the external interface contract.
const (
	ExitNormal        = 0
	ExitGenericError   = 1
	ExitConfigError    = 2
	ExitAuthFatal      = 3
	ExitStreamNotFound = 4
)

const defaultStreamURI = "https://stream.launchdarkly.com/"

// Options holds the fully-resolved configuration for one run of ldactl.
type Options struct {
	Credential credential.AutoConfigKey `conf:"LD_RELAY_AUTO_CONFIG_KEY"`
	StreamURI  string                   `conf:"LD_STREAM_URI"`
	Once       bool

	OutputFile string           `conf:"LDAC_OUTPUT_FILE"`
	ExecMode   hook.ExecMode    `conf:"LDAC_EXEC_MODE"`
	Exec       string           `conf:"LDAC_EXEC"`
	ExecArgs   []string

	Verbose bool `conf:"LDAC_VERBOSE"`
}

// ParseArgs parses CLI flags (with environment-variable fallbacks applied
// for anything left at its zero value) and validates the result.
//
// args should be os.Args[1:].
func ParseArgs(args []string) (Options, error) {
	opts := Options{
		StreamURI: defaultStreamURI,
		ExecMode:  hook.ExecModeEnv,
	}

	fs := flag.NewFlagSet("ldactl", flag.ContinueOnError)

	var credentialFlag, streamURIFlag, outputFileFlag, execModeFlag, execFlag string
	var onceFlag, verboseFlag bool

	fs.StringVar(&credentialFlag, "credential", "", "relay auto-configuration key")
	fs.StringVar(&credentialFlag, "k", "", "relay auto-configuration key (shorthand)")
	fs.StringVar(&streamURIFlag, "stream-uri", "", "auto-configuration stream base URI")
	fs.StringVar(&streamURIFlag, "u", "", "auto-configuration stream base URI (shorthand)")
	fs.BoolVar(&onceFlag, "once", false, "exit after the first full snapshot")
	fs.BoolVar(&onceFlag, "o", false, "exit after the first full snapshot (shorthand)")
	fs.StringVar(&outputFileFlag, "output-file", "", "path to materialize the environment snapshot to")
	fs.StringVar(&outputFileFlag, "f", "", "path to materialize the environment snapshot to (shorthand)")
	fs.StringVar(&execModeFlag, "exec-mode", "", "hook invocation mode: env or change-json")
	fs.StringVar(&execModeFlag, "m", "", "hook invocation mode (shorthand)")
	fs.StringVar(&execFlag, "exec", "", "hook command to invoke on each change")
	fs.StringVar(&execFlag, "e", "", "hook command to invoke on each change (shorthand)")
	fs.BoolVar(&verboseFlag, "verbose", false, "enable debug-level logging")
	fs.BoolVar(&verboseFlag, "v", false, "enable debug-level logging (shorthand)")

	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("parsing flags: %w", err)
	}

	opts.ExecArgs = fs.Args()
	opts.Once = onceFlag
	opts.Verbose = verboseFlag

	reader := ct.NewVarReaderFromEnvironment()

	opts.Credential = credential.AutoConfigKey(firstNonEmpty(credentialFlag, envString(reader, "LD_RELAY_AUTO_CONFIG_KEY")))
	opts.StreamURI = firstNonEmpty(streamURIFlag, envString(reader, "LD_STREAM_URI"), defaultStreamURI)
	opts.OutputFile = firstNonEmpty(outputFileFlag, envString(reader, "LDAC_OUTPUT_FILE"))
	opts.Exec = firstNonEmpty(execFlag, envString(reader, "LDAC_EXEC"))
	opts.ExecMode = hook.ExecMode(firstNonEmpty(execModeFlag, envString(reader, "LDAC_EXEC_MODE"), string(hook.ExecModeEnv)))
	if !opts.Verbose {
		var v bool
		reader.Read("LDAC_VERBOSE", &v)
		opts.Verbose = v
	}

	if err := validate(&opts); err != nil {
		return opts, err
	}

	return opts, nil
}

func validate(opts *Options) error {
	var result ct.ValidationResult

	if !opts.Credential.Defined() {
		result.AddError(ct.ValidationPath{"LD_RELAY_AUTO_CONFIG_KEY"}, errors.New("a relay auto-configuration key is required"))
	}
	if opts.StreamURI == "" {
		result.AddError(ct.ValidationPath{"LD_STREAM_URI"}, errors.New("stream URI must not be empty"))
	}
	switch opts.ExecMode {
	case hook.ExecModeEnv, hook.ExecModeChangeJSON:
	default:
		result.AddError(ct.ValidationPath{"LDAC_EXEC_MODE"}, fmt.Errorf("unrecognized exec mode %q", opts.ExecMode))
	}
	if opts.Exec == "" && opts.OutputFile == "" {
		result.AddError(nil, errors.New("at least one of --exec or --output-file must be set, or there is nothing to do"))
	}

	if !result.OK() {
		return result.GetError()
	}
	return nil
}

func envString(reader *ct.VarReader, name string) string {
	var v string
	reader.Read(name, &v)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
