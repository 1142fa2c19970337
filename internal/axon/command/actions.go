package command

import (
	"context"
	"fmt"

	"github.com/Alwanly/axon-agent/internal/axon/payload"
	"github.com/Alwanly/axon-agent/internal/models"
	"github.com/Alwanly/axon-agent/pkg/logger"
)

// DropCachesPath is the kernel knob written by a privileged drop_cache.
const DropCachesPath = "/proc/sys/vm/drop_caches"

// ActionOptions controls the default action bindings.
type ActionOptions struct {
	// Privileged runs the real effects. When false every action only logs.
	Privileged bool
	// DropCachesPath overrides DropCachesPath, for tests.
	DropCachesPath string
	// Restart asks the agent to shut down so its supervisor restarts it.
	Restart func()
}

// DropCache flushes dirty pages and drops the page cache.
func DropCache(log *logger.CanonicalLogger, opts ActionOptions) Action {
	path := opts.DropCachesPath
	if path == "" {
		path = DropCachesPath
	}
	return func(ctx context.Context, cmd models.Command) error {
		if !opts.Privileged {
			log.Info("dropping cache (simulated)", logger.String(logger.FieldActionID, cmd.ActionID))
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := dropPageCache(path); err != nil {
			return fmt.Errorf("drop page cache: %w", err)
		}
		log.Info("page cache dropped", logger.String("path", path))
		return nil
	}
}

// RestartProcess requests a graceful restart of the agent.
func RestartProcess(log *logger.CanonicalLogger, opts ActionOptions) Action {
	return func(ctx context.Context, cmd models.Command) error {
		if !opts.Privileged {
			log.Info("restarting process (simulated)", logger.String(logger.FieldActionID, cmd.ActionID))
			return nil
		}
		if opts.Restart == nil {
			return fmt.Errorf("restart is not available")
		}
		log.Info("restart requested, shutting down for supervisor restart")
		opts.Restart()
		return nil
	}
}

// RegisterDefaults binds drop_cache and restart_process.
func RegisterDefaults(d *Dispatcher, log *logger.CanonicalLogger, opts ActionOptions) {
	d.Register(payload.ActionDropCache, DropCache(log, opts))
	d.Register(payload.ActionRestartProcess, RestartProcess(log, opts))
}
