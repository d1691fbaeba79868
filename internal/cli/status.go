package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tally-app/tally/internal/daemon"
	"github.com/tally-app/tally/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the weekly ledger, streak, and pet at a glance",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	period, err := d.Ledger.CurrentPeriod()
	if err != nil {
		return err
	}
	streak, err := d.Streak.Current()
	if err != nil {
		return err
	}
	pet, known, err := d.Pet.CurrentHealth()
	if err != nil {
		return err
	}

	now := d.Clock.Now()
	fmt.Printf("Week %s — %s\n",
		period.StartDate.Format("Jan 2"), period.EndDate.Format("Jan 2"))
	fmt.Printf("  Credits:  %d/%d\n", period.CreditsRemaining, domain.CreditsFull)

	switch period.State(now) {
	case domain.FeePending:
		fmt.Println("  Fee:      PENDING — run 'tally fee' to settle")
	case domain.FeePaid:
		fmt.Println("  Fee:      paid today")
	default:
		fmt.Println("  Fee:      none owed")
	}
	if period.FailureCount > 0 {
		fmt.Printf("  Breaches: %d this week\n", period.FailureCount)
	}

	fmt.Printf("  Streak:   %d days (longest %d)\n", streak.CurrentDays, streak.LongestDays)
	if known {
		fmt.Printf("  Pet:      %s (%d/100)\n", pet.Mood, pet.Score)
	} else {
		fmt.Printf("  Pet:      %s — no usage reported yet today\n", pet.Mood)
	}
	return nil
}
