package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/scorer"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List recent discovery results from the store",
	RunE:  runResults,
}

func init() {
	resultsCmd.Flags().Int("limit", 50, "maximum rows to show")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	results, err := st.ListResults(ctx, limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results yet; run find first")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tDOMAIN\tSTATUS\tCONTACT\tEMAIL\tLABEL")
	for _, res := range results {
		var contact, label string
		if res.Contact != nil {
			contact = res.Contact.FullName()
		}
		if res.Status == model.StatusFound {
			label = scorer.Label(res.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			res.Org.Name, res.Org.Domain, res.Status, contact, res.Email, label)
	}
	return tw.Flush()
}
