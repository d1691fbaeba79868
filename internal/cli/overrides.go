package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tally-app/tally/internal/daemon"
	"github.com/tally-app/tally/internal/domain"
)

func init() {
	restrictCmd.Flags().StringVar(&restrictPeriod, "period", "daily", "Restriction period: daily, weekly, or one-time")
	extendCmd.Flags().IntVar(&extendExpires, "expires-in", 0, "Minutes until the grant expires (0 = until midnight)")
	sessionCmd.Flags().IntVar(&sessionMinutes, "minutes", 0, "Extra-time minutes (defaults to 15)")

	rootCmd.AddCommand(restrictCmd)
	rootCmd.AddCommand(unrestrictCmd)
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(sessionCmd)
}

var (
	restrictPeriod string
	extendExpires  int
	sessionMinutes int
)

var restrictCmd = &cobra.Command{
	Use:   "restrict <app> <minutes>",
	Short: "Cap an app below its base limit for a window",
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

		win, err := d.Limits.SetRestriction(args[0], domain.RestrictionPeriod(restrictPeriod), minutes)
		if err != nil {
			return err
		}
		if win.EndDate.IsZero() {
			fmt.Printf("%s capped at %d min/day (standing)\n", args[0], win.Limit)
		} else {
			fmt.Printf("%s capped at %d min/day until %s\n",
				args[0], win.Limit, win.EndDate.Format("Jan 2"))
		}
		return nil
	},
}

var unrestrictCmd = &cobra.Command{
	Use:   "unrestrict <app>",
	Short: "Remove an app's restriction window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.Limits.ClearRestriction(args[0]); err != nil {
			return err
		}
		fmt.Printf("Restriction cleared for %s\n", args[0])
		return nil
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend <app> <minutes>",
	Short: "Grant bonus minutes on top of today's limit",
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

		ext, err := d.Limits.GrantExtension(args[0], minutes,
			time.Duration(extendExpires)*time.Minute)
		if err != nil {
			return err
		}
		if ext.ExpiresAt.IsZero() {
			fmt.Printf("+%d min for %s today\n", ext.Minutes, args[0])
		} else {
			fmt.Printf("+%d min for %s until %s\n",
				ext.Minutes, args[0], ext.ExpiresAt.Format("15:04"))
		}
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session <app> <mode>",
	Short: "Switch an app's session mode (none, extra-time, one-session)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		mode, err := d.Limits.ActivateSessionMode(args[0], domain.SessionModeKind(args[1]), sessionMinutes)
		if err != nil {
			return err
		}
		switch mode.Kind {
		case domain.SessionNone:
			fmt.Printf("Session mode cleared for %s\n", args[0])
		case domain.SessionExtraTime:
			fmt.Printf("%s in extra-time until %s\n", args[0], mode.ExpiresAt.Format("15:04"))
		case domain.SessionOneSession:
			fmt.Printf("%s pinned to its base limit for this session\n", args[0])
		}
		return nil
	},
}
