package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/IngaleChinmay04/MongoNexus/internal/config"
	"github.com/IngaleChinmay04/MongoNexus/internal/database"
	"github.com/IngaleChinmay04/MongoNexus/internal/httpapi"
	"github.com/IngaleChinmay04/MongoNexus/internal/metrics"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve exposes schema inference and streaming queries over HTTP.

Routes:
  POST /api/mongo/schema             infer a collection (or database) schema
  POST /api/mongo/schema/jsonschema  infer a collection schema as JSON Schema
  GET  /api/mongo/collections        list collections (?db_name=...)
  POST /api/stream/find              stream a find query as Server-Sent Events
  POST /api/stream/aggregate         stream an aggregation as Server-Sent Events
  GET  /healthz                      store connectivity
  GET  /metrics                      Prometheus metrics

SIGINT or SIGTERM shuts the server down gracefully.

Example:
  mongonexus serve --config mongonexus.yaml --listen :8000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Override server.listen")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	m := metrics.New()
	a, err := connect(cmd.Context(), m)
	if err != nil {
		return err
	}
	defer a.close()
	a.cfg.ApplyOverrides(config.Overrides{Listen: listenAddr})

	ctx, stop := database.SignalContext(cmd.Context(), func(sig os.Signal) {
		a.log.Infof("Received %v, shutting down", sig)
	})
	defer stop()

	return httpapi.New(a.svc, a.cfg.Server, m, a.log).ListenAndServe(ctx)
}
