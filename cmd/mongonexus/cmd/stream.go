package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
	"github.com/IngaleChinmay04/MongoNexus/internal/database"
	"github.com/IngaleChinmay04/MongoNexus/internal/render"
	"github.com/IngaleChinmay04/MongoNexus/internal/stream"
	"github.com/IngaleChinmay04/MongoNexus/internal/wire"
)

var (
	streamFilter     string
	streamProjection string
	streamSort       string
	streamPipeline   string
	streamSkip       int64
	streamLimit      int64
)

var streamCmd = &cobra.Command{
	Use:   "stream <collection>",
	Short: "Run a find or aggregate query as a stream of batches",
	Long: `Stream runs a query and writes its events to stdout as NDJSON, one
{"event": ..., "data": ...} object per line: a metadata event, one batch
event per pull, then complete (or a single error event).

With --pipeline the query is an aggregation; otherwise it is a find.
Interrupting the command (Ctrl-C) cancels the stream and releases the cursor.

Example:
  mongonexus stream --db shop orders --filter '{"status": "A"}' --sort '{"qty": -1}' --limit 50
  mongonexus stream --db shop orders --pipeline '[{"$match": {"qty": {"$gt": 5}}}]' --batch-size 20`,
	Args: cobra.ExactArgs(1),
	RunE: runStream,
}

func init() {
	streamCmd.Flags().StringVar(&streamFilter, "filter", "", "Query filter (Extended JSON)")
	streamCmd.Flags().StringVar(&streamProjection, "projection", "", "Projection document")
	streamCmd.Flags().StringVar(&streamSort, "sort", "", "Sort document, or array of single-key documents")
	streamCmd.Flags().StringVar(&streamPipeline, "pipeline", "", "Aggregation pipeline (JSON array of stages)")
	streamCmd.Flags().Int64Var(&streamSkip, "skip", 0, "Documents to skip")
	streamCmd.Flags().Int64Var(&streamLimit, "limit", 0, "Maximum documents to return (0 for no limit)")
	rootCmd.AddCommand(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	a, err := connect(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer a.close()

	dbName, err := a.database()
	if err != nil {
		return err
	}

	req, err := buildRequest(
		map[string]interface{}{
			"db_name":         dbName,
			"collection_name": args[0],
			"skip":            streamSkip,
			"limit":           streamLimit,
			"batch_size":      batchSize,
		},
		map[string]string{
			"filter":     streamFilter,
			"projection": streamProjection,
			"sort":       streamSort,
			"pipeline":   streamPipeline,
		},
	)
	if err != nil {
		return err
	}

	ctx, stop := database.SignalContext(cmd.Context(), func(sig os.Signal) {
		a.log.Infof("Received %v, cancelling stream", sig)
	})
	defer stop()

	session, err := a.svc.Prepare(ctx, req.Spec(streamPipeline != ""))
	if err != nil {
		return fmt.Errorf("%s", apperr.Sanitize(err))
	}

	out := wire.NewNDJSONWriter(cmd.OutOrStdout())
	runErr := session.Run(ctx, out.Emit)

	render.NewPrinter(cmd.ErrOrStderr(), !noColor).StreamSummary(session.State(), session.Emitted(), session.ID)
	if session.State() == stream.StateFailed {
		return fmt.Errorf("stream failed: %s", apperr.Sanitize(runErr))
	}
	return nil
}
