package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tally-app/tally/internal/daemon"
)

func init() {
	reportCmd.Flags().BoolVar(&reportExceeded, "exceeded", false, "The app ran past its effective limit")
	rootCmd.AddCommand(reportCmd)
}

var reportExceeded bool

var reportCmd = &cobra.Command{
	Use:   "report <app> <minutes>",
	Short: "Report today's usage minutes for an app",
	Long: `Record the minutes an app was used today. Normally the enforcement
collaborator posts this to /api/usage; the command exists for testing
and manual corrections.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("minutes must be a number, got %q", args[1])
		}

		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Limits.ReportUsage(args[0], minutes, reportExceeded); err != nil {
			return err
		}
		newly, err := d.Achievement.CheckAndUnlock()
		if err != nil {
			return err
		}

		fmt.Printf("Recorded %d min for %s\n", minutes, args[0])
		for _, a := range newly {
			fmt.Printf("Achievement unlocked: %s\n", a.Name)
		}
		return nil
	},
}
