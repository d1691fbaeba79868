package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tally-app/tally/internal/daemon"
)

func init() {
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(petCmd)
}

var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the current blocking streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		streak, err := d.Streak.Current()
		if err != nil {
			return err
		}
		fmt.Printf("Current streak: %d days\n", streak.CurrentDays)
		fmt.Printf("Longest streak: %d days\n", streak.LongestDays)
		if !streak.LastClosed.IsZero() {
			fmt.Printf("Last counted:   %s\n", streak.LastClosed.Format("Jan 2"))
		}
		return nil
	},
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "List achievements and unlock progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		unlocked, err := d.Achievement.ListUnlocked()
		if err != nil {
			return err
		}
		when := make(map[string]string, len(unlocked))
		for _, u := range unlocked {
			when[u.ID] = u.UnlockedAt.Format("Jan 2")
		}

		defs := d.Achievement.Definitions()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACHIEVEMENT\tCATEGORY\tUNLOCKED")
		for _, def := range defs {
			unlockedAt := "-"
			if at, ok := when[def.ID]; ok {
				unlockedAt = at
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.Category, unlockedAt)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d of %d unlocked\n", len(unlocked), len(defs))
		return nil
	},
}

var petCmd = &cobra.Command{
	Use:   "pet",
	Short: "Show the pet's health and recent history",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		entry, known, err := d.Pet.CurrentHealth()
		if err != nil {
			return err
		}
		if known {
			fmt.Printf("Today: %s (%d/100)\n", entry.Mood, entry.Score)
		} else {
			fmt.Printf("Today: %s (%d/100) — no usage reported yet\n", entry.Mood, entry.Score)
		}

		history, err := d.Pet.History(7)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			return nil
		}
		fmt.Println("\nLast days:")
		for _, h := range history {
			fmt.Printf("  %s  %3d  %s\n", h.Date.Format("Jan 2"), h.Score, h.Mood)
		}
		return nil
	},
}
