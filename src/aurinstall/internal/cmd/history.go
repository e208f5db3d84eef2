package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aurigasurvey/toolkit/src/aurinstall/internal/ledger"
	"github.com/aurigasurvey/toolkit/src/common/cli"
	"github.com/aurigasurvey/toolkit/src/common/errors"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent installs recorded in this product root",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := flagRoot
		if root == "" {
			root = cli.GetExpandedString("product_root")
		}
		if root == "" {
			return errors.ErrMissingRoot
		}

		rec, err := ledger.Open(ledgerPath(root))
		if err != nil {
			return err
		}
		defer rec.Close()

		records, err := rec.List(historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No installs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tPRODUCT\tVERSION\tTYPE\tSTATUS\tINSTALL DIR")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.Product, r.Version, r.BuildType, r.Status, r.InstallDir)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of records to show")
}
