package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tally-app/tally/internal/daemon"
)

func init() {
	ledgerCmd.Flags().BoolVar(&ledgerAll, "all", false, "Include past weeks")
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "Max transactions to show")
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(feeCmd)
}

var (
	ledgerAll   bool
	ledgerLimit int
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the penalty and fee history",
	RunE:  runLedger,
}

func runLedger(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	txs, err := d.Ledger.History(ledgerLimit)
	if ledgerAll {
		txs, err = d.Ledger.AllHistory(ledgerLimit)
	}
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		fmt.Println("No ledger activity yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTYPE\tAMOUNT\tNOTE")
	for _, tx := range txs {
		note := tx.Description
		if tx.Legacy() {
			note = "(legacy) " + note
		}
		fmt.Fprintf(w, "%s\t%s\t%+d\t%s\n",
			tx.Timestamp.Format("Jan 2 15:04"), tx.Type, tx.Amount, note)
	}
	return w.Flush()
}

var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Pay the pending accountability fee",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New()
		if err != nil {
			return err
		}
		defer d.Close()

		tx, err := d.Ledger.PayFee()
		if err != nil {
			return err
		}
		fmt.Printf("Fee paid. Credits restored (%+d) for the rest of today.\n", tx.Amount)
		return nil
	},
}
