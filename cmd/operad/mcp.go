package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/pkg/adapters/mcp"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Model Context Protocol server",
	Long: `Exposes clause parsing, workflow compilation, execution and freeze
decisions as MCP tools over stdio (default) or SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Engine, app.Manager, strings.TrimSpace(operad.Version), mcp.WithLogger(logger))

		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			return srv.ServeStdio()
		case "sse":
			addr, _ := cmd.Flags().GetString("addr")
			baseURL, _ := cmd.Flags().GetString("base-url")
			ctx, cancel := runner.SignalContext(cmd.Context())
			defer cancel()
			return srv.ServeSSE(ctx, addr, baseURL)
		default:
			return fmt.Errorf("unknown transport %q (want stdio or sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", ":8081", "Listen address for sse")
	mcpCmd.Flags().String("base-url", "http://localhost:8081", "Public base URL for sse")
}
