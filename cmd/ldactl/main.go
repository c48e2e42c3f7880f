package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/tarqd/ldactl/config"
	"github.com/tarqd/ldactl/internal/autoconfig"
	"github.com/tarqd/ldactl/internal/credential"
	"github.com/tarqd/ldactl/internal/envstore"
	"github.com/tarqd/ldactl/internal/hook"
	"github.com/tarqd/ldactl/internal/httpconfig"
	"github.com/tarqd/ldactl/internal/logging"
	"github.com/tarqd/ldactl/internal/materializer"
	"github.com/tarqd/ldactl/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := config.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ldactl:", err)
		return config.ExitConfigError
	}

	minLevel := ldlog.Info
	if opts.Verbose {
		minLevel = ldlog.Debug
	}
	loggers := logging.New(minLevel)
	loggers.Infof("Starting ldactl %s", version.Version)

	httpCfg, err := httpconfig.NewHTTPConfig("", nil, "ldactl/"+version.Version, loggers)
	if err != nil {
		loggers.Errorf("invalid HTTP configuration: %s", err)
		return config.ExitConfigError
	}
	client, err := httpCfg.Client()
	if err != nil {
		loggers.Errorf("building HTTP client: %s", err)
		return config.ExitConfigError
	}

	store := envstore.NewStore()

	var mat autoconfig.Materializer
	if opts.OutputFile != "" {
		mat = materializer.New(opts.OutputFile)
	}

	var hooks autoconfig.HookDispatcher
	if opts.Exec != "" {
		hooks = hookAdapter{d: hook.New(opts.Exec, opts.ExecArgs, opts.ExecMode)}
	}

	rotator := credential.NewRotator(loggers)
	defer rotator.Stop()

	supervisor := autoconfig.NewSupervisor(autoconfig.Config{
		HTTPClient:   client,
		StreamURI:    opts.StreamURI,
		Credential:   opts.Credential,
		Store:        store,
		Materializer: mat,
		Hooks:        hooks,
		Rotator:      rotator,
		Once:         opts.Once,
		Loggers:      loggers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Run(ctx); err != nil {
		var fatal *autoconfig.FatalError
		if errors.As(err, &fatal) {
			loggers.Errorf("fatal: %s", fatal.Cause)
			return fatal.ExitCode
		}
		loggers.Errorf("%s", err)
		return config.ExitGenericError
	}

	return config.ExitNormal
}

// hookAdapter bridges hook.Dispatcher's Change type to the
// autoconfig.HookDispatcher interface, keeping the two packages decoupled.
type hookAdapter struct {
	d *hook.Dispatcher
}

func (a hookAdapter) Dispatch(ctx context.Context, change autoconfig.HookChange) error {
	return a.d.Dispatch(ctx, hook.Change{
		Kind:             hook.Kind(change.Kind),
		Env:              change.Env,
		ExpiredKeySuffix: change.ExpiredKeySuffix,
	})
}

