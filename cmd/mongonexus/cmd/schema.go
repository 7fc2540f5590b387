package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IngaleChinmay04/MongoNexus/internal/explorer"
	"github.com/IngaleChinmay04/MongoNexus/internal/render"
	"github.com/IngaleChinmay04/MongoNexus/internal/wire"
)

var (
	schemaFilter     string
	schemaJSONSchema bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema [collection]",
	Short: "Infer the schema of a collection or a whole database",
	Long: `Schema samples documents and reports, for every field path, the observed
types, how often the field is present, null counts, example values and
string formats.

Without a collection argument every collection of the database is inferred.

Example:
  mongonexus schema --db shop orders --sample-size 200
  mongonexus schema --db shop orders --filter '{"status": "A"}' -o yaml
  mongonexus schema --db shop orders --jsonschema`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFilter, "filter", "",
		"Only sample documents matching this filter (Extended JSON)")
	schemaCmd.Flags().BoolVar(&schemaJSONSchema, "jsonschema", false,
		"Print the schema as a JSON Schema document")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()

	database, err := a.database()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if schemaFilter != "" || schemaJSONSchema {
			return fmt.Errorf("--filter and --jsonschema need a collection")
		}
		db, err := a.svc.InferDatabase(ctx, database, a.cfg.Schema.SampleSize)
		if err != nil {
			return err
		}
		if a.format != render.FormatTable {
			return render.Document(cmd.OutOrStdout(), a.format, wire.NewDatabaseView(db))
		}
		p := a.printer(cmd)
		for _, c := range db.Collections {
			p.Schema(c.Name, c.Schema)
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}

	req, err := buildRequest(
		map[string]interface{}{"db_name": database, "collection_name": args[0]},
		map[string]string{"filter": schemaFilter},
	)
	if err != nil {
		return err
	}
	sreq := explorer.SchemaRequest{
		Database:   req.Database,
		Collection: req.Collection,
		Filter:     req.Filter,
		SampleSize: a.cfg.Schema.SampleSize,
	}

	if schemaJSONSchema {
		js, err := a.svc.InferJSONSchema(ctx, sreq)
		if err != nil {
			return err
		}
		format := a.format
		if format == render.FormatTable {
			format = render.FormatJSON
		}
		return render.Document(cmd.OutOrStdout(), format, js)
	}

	sch, err := a.svc.InferSchema(ctx, sreq)
	if err != nil {
		return err
	}
	if a.format != render.FormatTable {
		return render.Document(cmd.OutOrStdout(), a.format, wire.NewSchemaView(database, args[0], sch))
	}
	a.printer(cmd).Schema(args[0], sch)
	return nil
}
