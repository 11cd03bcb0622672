package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/facturas-loader/internal/config"
)

// layoutCmd prints the header layout in effect, in the layout_file format.
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the header column layout in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := config.LoadLayout(appConfig.LayoutFile)
		if err != nil {
			return err
		}
		data, err := config.MarshalLayout(layout)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(layoutCmd)
}
