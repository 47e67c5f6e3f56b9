package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gsbuilder/internal/scenario"
)

func main() {
	root := &cobra.Command{
		Use:   "gsbuild [scenario.yaml]",
		Short: "build a generic signature from a scenario file and print it",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	root.Flags().Bool("diagnostics", false, "also print accumulated diagnostics")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	f, err := scenario.Parse(data)
	if err != nil {
		return err
	}

	result, err := scenario.Run(f)
	if err != nil {
		return err
	}

	for _, req := range result.Signature {
		fmt.Println(renderRequirement(req))
	}

	showDiags, _ := cmd.Flags().GetBool("diagnostics")
	if showDiags && len(result.Diagnostics) > 0 {
		fmt.Println("\ndiagnostics:")
		for _, d := range result.Diagnostics {
			fmt.Println(" ", d.String())
		}
	}
	return nil
}
