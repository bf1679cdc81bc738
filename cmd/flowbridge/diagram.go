package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rendis/flowbridge/internal/diagram"
	"github.com/rendis/flowbridge/internal/dispatch"
	"github.com/rendis/flowbridge/internal/engine"
)

func newDiagramCommand() *cobra.Command {
	var current string
	cmd := &cobra.Command{
		Use:   "diagram <file>",
		Short: "Print a flow definition as a Mermaid flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := engine.ReadDefinition(args[0])
			if err != nil {
				return err
			}
			model, err := diagram.Build(def, current)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), diagram.RenderMermaid(model))
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "state", "", "highlight this state")
	return cmd
}

// diagramHandler serves GET /diagram/{id}[?state=...] as Mermaid text.
func diagramHandler(flows *engine.FlowRegistry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		def, err := flows.Get(r.PathValue("id"))
		if err != nil {
			dispatch.WriteError(w, err)
			return
		}
		model, err := diagram.Build(def, r.URL.Query().Get("state"))
		if err != nil {
			dispatch.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, diagram.RenderMermaid(model))
	})
}
