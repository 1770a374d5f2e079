package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/vmtune"
	"github.com/aretw0/vmtune/internal/config"
	"github.com/aretw0/vmtune/internal/logging"
	"github.com/aretw0/vmtune/internal/presentation/tui"
	"github.com/aretw0/vmtune/pkg/adapters/bootfile"
	"github.com/aretw0/vmtune/pkg/adapters/libvirt"
	"github.com/aretw0/vmtune/pkg/adapters/redis"
	"github.com/aretw0/vmtune/pkg/adapters/sqlite"
	"github.com/aretw0/vmtune/pkg/adapters/virsh"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/observability"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// app is the per-invocation wiring: configuration, logger, engine and the
// resources that must be released when the command ends.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  *vmtune.Engine
	styler  *tui.Styler
	metrics *prometheus.Registry
	closers []func() error
}

// newApp builds the engine with standard CLI conventions.
func newApp(cmd *cobra.Command) (*app, error) {
	// 1. Configuration
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, usageError("%w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	// 2. Logger
	level, err := logging.Level(cfg.LogLevel)
	if err != nil {
		return nil, usageError("%w", err)
	}
	a := &app{
		cfg:     cfg,
		logger:  logging.NewWriter(cmd.ErrOrStderr(), level),
		styler:  tui.NewStyler(cmd.OutOrStdout()),
		metrics: prometheus.NewRegistry(),
	}

	// 3. Engine options
	m := observability.NewMetrics(a.metrics)
	opts := []vmtune.Option{
		vmtune.WithLogger(a.logger),
		vmtune.WithLifecycleHooks(m.Hooks()),
		vmtune.WithCallTimeout(cfg.CallTimeout),
		vmtune.WithKeepBackups(cfg.KeepBackups),
	}

	if cfg.Journal != "" {
		journal, err := sqlite.Open(cfg.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.closers = append(a.closers, journal.Close)
		opts = append(opts, vmtune.WithJournal(journal))
	}

	if cfg.Redis.Addr != "" {
		locker, err := redis.Dial(cmd.Context(), cfg.Redis.Addr, cfg.Redis.Prefix)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, locker.Close)
		opts = append(opts, vmtune.WithLocker(locker, cfg.Redis.LockTTL))
	}

	// 4. Initialize
	a.engine, err = vmtune.New(cfg.BackupDir, opts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return a, nil
}

// close writes the metrics textfile, if configured, and releases resources.
func (a *app) close() {
	if a.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.metrics); err != nil {
			a.logger.Warn("Failed to write metrics", "path", a.cfg.MetricsFile, "err", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to release resource", "err", err)
		}
	}
}

// target builds the target for documents of kind doc from flags and config.
func (a *app) target(cmd *cobra.Command, doc document.Kind) (ports.Target, error) {
	switch doc {
	case document.KindParamLine:
		path := a.cfg.Boot.Path
		if flag, _ := cmd.Flags().GetString("boot-file"); flag != "" {
			path = flag
		}
		return bootfile.New(path,
			bootfile.WithKey(a.cfg.Boot.Key),
			bootfile.WithRegenerate(a.cfg.Boot.Regenerate),
		), nil

	case document.KindTree:
		name, _ := cmd.Flags().GetString("domain")
		if name == "" {
			return nil, usageError("--domain is required for domain descriptor kinds")
		}
		useVirsh, _ := cmd.Flags().GetBool("virsh")
		if useVirsh || a.cfg.Libvirt.UseVirsh {
			return virsh.New(name,
				virsh.WithBinary(a.cfg.Libvirt.Virsh),
				virsh.WithURI(a.cfg.Libvirt.URI),
			), nil
		}
		return libvirt.New(name, libvirt.WithSocket(a.cfg.Libvirt.Socket)), nil

	default:
		return nil, fmt.Errorf("unsupported document kind %q", doc)
	}
}

// params merges config defaults, the params file and --set flags, in that order.
func (a *app) params(cmd *cobra.Command, kind string) (registry.Params, error) {
	out := registry.Params{}
	for k, v := range a.cfg.Params[kind] {
		out[k] = v
	}

	if path, _ := cmd.Flags().GetString("params-file"); path != "" {
		file, err := config.ReadMap(path)
		if err != nil {
			return nil, usageError("%w", err)
		}
		for k, v := range file {
			out[k] = v
		}
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usageError("--set wants key=value, got %q", s)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// addParamFlags registers the flags read by params.
func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("set", nil, "Fragment parameter as key=value (repeatable)")
	cmd.Flags().StringP("params-file", "f", "", "YAML or TOML file with fragment parameters")
}
