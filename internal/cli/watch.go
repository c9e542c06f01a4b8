package cli

import (
	"github.com/spf13/cobra"

	"github.com/usrsvc-go/usrsvc/internal/exitcode"
	"github.com/usrsvc-go/usrsvc/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open a live dashboard of every configured program's status",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := tui.Run(cfg); err != nil {
		return fail(exitcode.GeneralFailure, "%s", err)
	}
	return nil
}
