package cmd

import (
	"github.com/spf13/cobra"

	"github.com/IngaleChinmay04/MongoNexus/internal/render"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the collections of a database",
	Long: `Collections lists the collection names of the selected database in
alphabetical order.

Example:
  mongonexus collections --db shop`,
	Args: cobra.NoArgs,
	RunE: runCollections,
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}

func runCollections(cmd *cobra.Command, args []string) error {
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
	names, err := a.svc.ListCollections(ctx, database)
	if err != nil {
		return err
	}
	if names == nil {
		names = []string{}
	}

	if a.format != render.FormatTable {
		return render.Document(cmd.OutOrStdout(), a.format, map[string]interface{}{
			"db_name":     database,
			"collections": names,
		})
	}
	a.printer(cmd).Collections(database, names)
	return nil
}
