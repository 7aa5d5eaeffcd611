package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zot/vega/internal/assets"
	"github.com/zot/vega/internal/bundle"
	"github.com/zot/vega/internal/mcp"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [entry]",
		Short: "Run the application entry point script",
		Long: `Run the entry point script with require(). The entry defaults to the
configured lua.entry ("main"), so main.lua in the asset root is found first.

Examples:
  vega run
  vega run app --dir assets/
  vega run --error-mode report`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			entry := s.cfg.Lua.Entry
			if len(args) > 0 {
				entry = args[0]
			}
			return s.runtime.Execute(entry)
		},
	}
}

func (a *app) searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <module>",
		Short: "Print the asset require() would load for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			path, ok, err := s.runtime.Search(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("module %q not found in assets", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func (a *app) lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [dir]",
		Short: "List an asset directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := a.openStore(cfg)
			if err != nil {
				return err
			}
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			names, err := assets.List(store, dir)
			if err != nil {
				return fmt.Errorf("failed to list %q: %w", dir, err)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <asset>",
		Short: "Display the contents of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := a.openStore(cfg)
			if err != nil {
				return err
			}
			content, err := assets.ReadAll(store, args[0])
			if err != nil {
				return fmt.Errorf("failed to read asset: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}

func (a *app) extractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [dir]",
		Short: "Extract the bundled assets to a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetDir := "."
			if len(args) > 0 {
				targetDir = args[0]
			}
			b, err := bundle.OpenSelf()
			if err != nil {
				return err
			}
			if err := b.Extract(targetDir); err != nil {
				return fmt.Errorf("failed to extract bundle: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted assets to: %s\n", targetDir)
			return nil
		},
	}
}

func (a *app) bundleCommand() *cobra.Command {
	var output, source string
	cmd := &cobra.Command{
		Use:   "bundle <asset-dir>",
		Short: "Create a binary with an asset directory bundled",
		Long: `Append an asset directory to a copy of a binary. The result runs its
bundled scripts with "vega run" and no --dir.

Examples:
  vega bundle assets/ -o my-app
  vega bundle assets/ -o my-app --src ./vega-linux-arm64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assetDir := args[0]
			if info, err := os.Stat(assetDir); err != nil || !info.IsDir() {
				return fmt.Errorf("asset directory %s does not exist", assetDir)
			}
			sourcePath := source
			if sourcePath == "" {
				var err error
				if sourcePath, err = os.Executable(); err != nil {
					return fmt.Errorf("failed to get executable path: %w", err)
				}
			}
			if err := bundle.Create(sourcePath, assetDir, output); err != nil {
				return fmt.Errorf("failed to create bundle: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created bundled binary: %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for bundled binary (required)")
	cmd.Flags().StringVar(&source, "src", "", "Source binary to bundle (default: current executable)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assets and resolver over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			srv := mcp.NewServer("vega", Version, s.store, s.runtime, s.cfg)
			return srv.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vega version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vega v%s\n", Version)
			if a.hooks != nil && a.hooks.CustomVersion != nil {
				fmt.Fprintln(cmd.OutOrStdout(), a.hooks.CustomVersion())
			}
		},
	}
}
