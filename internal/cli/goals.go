package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tally-app/tally/internal/daemon"
)

func init() {
	trackCmd.Flags().StringVar(&trackName, "name", "", "Display name (defaults to the app identifier)")
	trackCmd.Flags().IntVar(&trackLimit, "limit", 60, "Base daily limit in minutes (0 = always blocked)")
	goalsCmd.Flags().BoolVar(&goalsAll, "all", false, "Include deactivated goals")

	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(untrackCmd)
	rootCmd.AddCommand(limitCmd)
}

var (
	trackName  string
	trackLimit int
	goalsAll   bool
)

var goalsCmd = &cobra.Command{
	Use:     "goals",
	Aliases: []string{"ls"},
	Short:   "List monitored goals and their effective limits",
	RunE:    runGoals,
}

func runGoals(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	goals, err := d.Limits.Goals(!goalsAll)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		fmt.Println("No goals yet. Run 'tally track <app>' to start monitoring.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tNAME\tBASE\tEFFECTIVE\tOUTCOME")
	for _, g := range goals {
		effective, outcome := "-", "-"
		if g.IsActive {
			min, out, err := d.Limits.EffectiveLimit(g.AppIdentifier)
			if err == nil {
				effective = strconv.Itoa(min) + "m"
				outcome = string(out)
			}
		} else {
			outcome = "inactive"
		}
		fmt.Fprintf(w, "%s\t%s\t%dm\t%s\t%s\n",
			g.AppIdentifier, g.DisplayName, g.BaseDailyLimit, effective, outcome)
	}
	return w.Flush()
}

var trackCmd = &cobra.Command{
	Use:   "track <app>",
	Short: "Start monitoring an app with a daily limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		name := trackName
		if name == "" {
			name = args[0]
		}
		g, err := d.Limits.CreateGoal(args[0], name, trackLimit)
		if err != nil {
			return err
		}
		fmt.Printf("Tracking %s at %d min/day\n", g.AppIdentifier, g.BaseDailyLimit)
		return nil
	},
}

var untrackCmd = &cobra.Command{
	Use:   "untrack <app>",
	Short: "Stop monitoring an app (history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Limits.DeactivateGoal(args[0]); err != nil {
			return err
		}
		fmt.Printf("Stopped tracking %s\n", args[0])
		return nil
	},
}

var limitCmd = &cobra.Command{
	Use:   "limit <app> <minutes>",
	Short: "Change an app's base daily limit",
	Args:  cobra.ExactArgs(2),
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

		staged, err := d.Limits.SetBaseLimit(args[0], minutes)
		if err != nil {
			return err
		}
		if staged {
			fmt.Printf("%s base limit rises to %d min/day tomorrow\n", args[0], minutes)
		} else {
			fmt.Printf("%s base limit set to %d min/day\n", args[0], minutes)
		}
		return nil
	},
}
