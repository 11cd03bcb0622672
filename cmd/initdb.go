package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/facturas-loader/internal/errors"
)

var resetDB bool

// initDBCmd creates the schema of the configured database.
var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the database schema",
	Long: `Create the header, item, trailer and logs tables (and, on PostgreSQL, the
currencies and parser_error enum types). Existing tables are kept unless
--reset is given, which drops them first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sk, err := openSink(ctx)
		if err != nil {
			return err
		}
		defer sk.Close()

		if err := sk.Init(ctx, resetDB); err != nil {
			return errors.Wrap(err, "failed to initialise schema")
		}

		if resetDB {
			fmt.Printf("Schema recreated on %s\n", appConfig.Database.Driver)
		} else {
			fmt.Printf("Schema ready on %s\n", appConfig.Database.Driver)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
	initDBCmd.Flags().BoolVar(&resetDB, "reset", false, "Drop existing tables before creating them")
}
