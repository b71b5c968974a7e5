package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"creditmemo-backend/internal/extract"
	"creditmemo-backend/internal/financial"
)

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [pdf]",
		Short: "Print the years and line items found in a financial statement PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			result, err := extract.PDFExtractor{}.Extract(cmd.Context(), data)
			if err != nil {
				return err
			}
			showText, _ := cmd.Flags().GetBool("text")
			if showText {
				fmt.Fprintln(cmd.OutOrStdout(), result.Text)
				return nil
			}
			writeFinancials(cmd.OutOrStdout(), result.Financials)
			return nil
		},
	}
	cmd.Flags().Bool("text", false, "Print the extracted text instead of line items")
	return cmd
}

// writeFinancials prints every non-empty line item grouped by year and statement.
func writeFinancials(w io.Writer, data financial.Data) {
	heading := color.New(color.FgCyan, color.Bold)
	years := data.Years()
	if len(years) == 0 {
		fmt.Fprintln(w, "no financial values found")
		return
	}
	for _, year := range years {
		heading.Fprintf(w, "FY%d\n", year)
		y := data[year]
		for _, st := range financial.Statements {
			section := y[st]
			printed := false
			for _, category := range financial.Categories(st) {
				for _, item := range financial.Items(st, category) {
					v := section[category][item]
					if v == nil {
						continue
					}
					if !printed {
						fmt.Fprintf(w, "  %s\n", st.Title())
						printed = true
					}
					fmt.Fprintf(w, "    %-40s %14.2f\n", strings.TrimSpace(item), *v)
				}
			}
		}
	}
}
