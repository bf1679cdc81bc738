package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/internal/expressions"
	"github.com/rendis/flowbridge/internal/validation"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate flow definition files",
		Long: `Validate YAML or JSON flow definitions: structure, state references,
expressions and reachability. Stops at the first invalid file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args)
		},
	}
}

func runValidate(out io.Writer, paths []string) error {
	// Handlers the server registers, so handler references resolve the same way.
	actions := engine.NewActionRegistry()
	if err := actions.Register(bridge.DispatchActionName, bridge.NewDispatchAction(expressions.NewInterpolator(nil))); err != nil {
		return err
	}
	v, err := validation.NewFlowValidator(actions)
	if err != nil {
		return err
	}
	for _, p := range paths {
		def, err := engine.ReadDefinition(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if err := v.ValidateDefinition(def); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		fmt.Fprintf(out, "ok  %s (%s, %d states)\n", p, def.ID, len(def.States))
	}
	return nil
}
