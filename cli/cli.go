// Package cli provides the vega command-line interface.
// It exports Run() and RunWithHooks() to allow extension by wrapper projects.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zot/vega/internal/assets"
	"github.com/zot/vega/internal/bundle"
	"github.com/zot/vega/internal/config"
	"github.com/zot/vega/internal/lua"
	"github.com/zot/vega/internal/platform"
)

// Version is the vega release reported by the version command.
var Version = "0.1.0"

// ScriptThread names the goroutine that owns the Lua state in log lines.
const ScriptThread = "lua-executor"

// Hooks allows extending the CLI with additional commands.
type Hooks struct {
	// Commands returns extra commands added to the root command.
	Commands func() []*cobra.Command

	// CustomVersion returns version info to append (optional).
	CustomVersion func() string
}

// Run executes the CLI with the given arguments.
// Returns exit code (0 = success, non-zero = error).
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(hooks)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

// app carries the state shared by every command of one invocation.
type app struct {
	flags config.Flags
	hooks *Hooks
}

// NewRootCommand builds the vega command tree.
func NewRootCommand(hooks *Hooks) *cobra.Command {
	a := &app{hooks: hooks}
	root := &cobra.Command{
		Use:   "vega",
		Short: "Run Lua applications from packaged assets",
		Long: `vega runs a Lua application whose scripts are packaged with the binary.

require() first tries the standard preload and package.path loaders, then the
packaged assets: the asset root, then vega_lua/, trying NAME, NAME.lua and
NAME.lc in each.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	a.flags.Register(root.PersistentFlags())

	root.AddCommand(
		a.runCommand(),
		a.searchCommand(),
		a.lsCommand(),
		a.catCommand(),
		a.extractCommand(),
		a.bundleCommand(),
		a.mcpCommand(),
		a.versionCommand(),
	)
	if hooks != nil && hooks.Commands != nil {
		root.AddCommand(hooks.Commands()...)
	}
	return root
}

// loadConfig loads the configuration and sends its log output to the
// command's stderr.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(a.flags)
	if err != nil {
		return nil, err
	}
	cfg.SetLogOutput(cmd.ErrOrStderr())
	return cfg, nil
}

// openStore returns the asset directory named by the config, or the bundle
// appended to the running executable.
func (a *app) openStore(cfg *config.Config) (assets.Store, error) {
	if dir := cfg.Assets.Dir; dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("asset directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("asset directory %s is not a directory", dir)
		}
		cfg.Log(1, "reading assets from directory %s", dir)
		return assets.NewFSStore(os.DirFS(dir)), nil
	}

	b, err := bundle.OpenSelf()
	if err != nil {
		if errors.Is(err, bundle.ErrNotBundled) {
			return nil, fmt.Errorf("%w (use --dir to read assets from a directory)", err)
		}
		return nil, err
	}
	cfg.Log(1, "reading assets from bundle %s", b.Path)
	return assets.NewFSStore(b.FS()), nil
}

// session is a configured runtime over the selected asset store.
type session struct {
	cfg     *config.Config
	store   assets.Store
	runtime *lua.Runtime
}

func (a *app) newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(cfg)
	if err != nil {
		return nil, err
	}

	pctx := platform.NewContext()
	if err := pctx.SetAssets(store); err != nil {
		return nil, err
	}
	if err := pctx.SetScriptThread(ScriptThread); err != nil {
		return nil, err
	}

	rt, err := lua.NewRuntime(cfg, pctx)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, store: store, runtime: rt}, nil
}

func (s *session) close() {
	s.runtime.Shutdown()
}
