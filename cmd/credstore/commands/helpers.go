package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/systmms/credstore/internal/config"
	dserrors "github.com/systmms/credstore/internal/errors"
	"github.com/systmms/credstore/internal/logging"
	"github.com/systmms/credstore/internal/metrics"
	"github.com/systmms/credstore/internal/platform"
	"github.com/systmms/credstore/internal/registry"
)

// withRegistry loads the configuration, builds every store and runs fn.
// Metrics for the run are written afterwards when --metrics-file is set.
func withRegistry(cmd *cobra.Command, cfg *config.Config, fn func(r *registry.Registry) error) (err error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if err := cfg.Load(); err != nil {
		return err
	}

	var (
		recorder metrics.Recorder = metrics.Nop{}
		gatherer *prometheus.Registry
	)
	if cfg.MetricsFile != "" {
		gatherer = prometheus.NewRegistry()
		recorder = metrics.NewPrometheus(gatherer)
	}

	r, err := registry.FromDefinition(cmd.Context(), cfg.Definition, registry.Options{
		Logger:        cfg.Logger,
		Recorder:      recorder,
		Authenticator: authenticator(cmd, cfg),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			cfg.Logger.Warn("closing stores: %v", cerr)
		}
		if gatherer == nil {
			return
		}
		if werr := metrics.WriteTextfile(cfg.MetricsFile, gatherer); werr != nil {
			cfg.Logger.Warn("writing metrics to %s: %v", cfg.MetricsFile, werr)
			if err == nil {
				err = werr
			}
		}
	}()

	return fn(r)
}

// withStore is withRegistry for commands that work on a single store.
func withStore(cmd *cobra.Command, cfg *config.Config, name string, fn func(reg *registry.Registered) error) error {
	return withRegistry(cmd, cfg, func(r *registry.Registry) error {
		reg, err := r.Get(name)
		if err != nil {
			return err
		}
		cfg.Logger.Debug("using store %s (%s)", reg.Name, reg.Store.ID())
		return fn(reg)
	})
}

// authenticator asks on the command's input before a presence-protected
// secret is released. Non-interactive runs refuse instead.
func authenticator(cmd *cobra.Command, cfg *config.Config) platform.Authenticator {
	if cfg.NonInteractive {
		return func(loc platform.Location) error {
			return platform.Errorf(platform.StatusInteractionNotAllowed,
				"%s/%s requires user presence", loc.Service, loc.Account)
		}
	}

	var (
		mu sync.Mutex
		in *bufio.Reader
	)
	return func(loc platform.Location) error {
		mu.Lock()
		defer mu.Unlock()
		if in == nil {
			in = bufio.NewReader(cmd.InOrStdin())
		}
		where := loc.AccessGroup
		if loc.Keychain != "" {
			where = loc.Keychain
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Allow access to %s/%s in %s? [y/N] ", loc.Service, loc.Account, where)
		answer, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return platform.Wrap(platform.StatusAuthFailed, err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return nil
		default:
			return platform.Errorf(platform.StatusUserCanceled, "access to %s/%s was denied", loc.Service, loc.Account)
		}
	}
}

func addStoreFlags(cmd *cobra.Command, store *string, modifiers *map[string]string) {
	cmd.Flags().StringVarP(store, "store", "s", "", "Store to use (defaults to the configured default store)")
	if modifiers != nil {
		cmd.Flags().StringToStringVarP(modifiers, "modifier", "m", nil, "Per-entry modifier, e.g. access-group=team.app (repeatable)")
	}
}

// redactedStoreError is dserrors.StoreError with secrets masked out of the
// details, for failures whose backend message may echo the stored value.
func redactedStoreError(store, operation string, err error, secrets ...string) error {
	serr := dserrors.StoreError(store, operation, err)
	ue, ok := serr.(dserrors.UserError)
	if !ok {
		return serr
	}
	ue.Details = logging.Redact(ue.Details, secrets)
	return ue
}
