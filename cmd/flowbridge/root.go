package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowbridge",
		Short: "flowbridge bridges an action dispatcher and a continuation flow engine",
		Long: `flowbridge serves flow definitions over HTTP. Each flow is exposed as an
action under /flow/{id}; a paused flow is continued with its resume token
(pausedKey), carried either as a request parameter or in the session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newDiagramCommand())
	cmd.AddCommand(newInstallCommand())
	cmd.AddCommand(newReloadCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	var configPath, listenAddr, flowsDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = settingsPath()
			}
			cfg := loadConfigFile(path)
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if flowsDir != "" {
				cfg.FlowsDir = flowsDir
			}
			return runServe(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "settings file (default ~/.flowbridge/settings.json)")
	cmd.Flags().StringVar(&listenAddr, "listen-addr", "", "override the listen address")
	cmd.Flags().StringVar(&flowsDir, "flows-dir", "", "override the flow definitions directory")
	return cmd
}

func newReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask a running server to re-read its settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !signalRunningServer(cmd.OutOrStdout()) {
				return fmt.Errorf("no running server found via %s", pidPath())
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
