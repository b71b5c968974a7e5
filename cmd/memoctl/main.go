package main

// Work with financial statements locally, without the API or a database:
//   go run ./cmd/memoctl extract statements.pdf
//   go run ./cmd/memoctl generate statements.pdf --provider google --out memo.docx

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "memoctl",
		Short:         "Extract financial statements and draft credit memos",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(providersCmd())

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the configured LLM providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			router, err := loadRouter(cmd.Context())
			if err != nil {
				return err
			}
			def := router.Default()
			out := cmd.OutOrStdout()
			for _, name := range router.Providers() {
				marker := "  "
				if name == def {
					marker = color.GreenString("* ")
				}
				fmt.Fprintf(out, "%s%-8s %s\n", marker, name, router.Model(name))
			}
			return nil
		},
	}
}
