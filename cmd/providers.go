package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/theapemachine/mem0-go/pkg/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported providers with their default model and key variable",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

		fmt.Fprintln(w, "PROVIDER\tDEFAULT MODEL\tAPI KEY\tKEY SET")

		for _, kind := range provider.SupportedKinds() {
			key, set := kind.EnvKey(), "-"

			if key == "" {
				key = "-"
			} else if os.Getenv(key) != "" {
				set = "yes"
			} else {
				set = "no"
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, kind.DefaultModel(), key, set)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
