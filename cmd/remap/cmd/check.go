package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transformkit/remap/internal/spec"
)

var checkCmd = &cobra.Command{
	Use:   "check <spec>...",
	Short: "Check specification files without processing data",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	var failed int
	for _, path := range args {
		doc, err := spec.Load(path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		rules := 0
		for _, name := range doc.TableNames {
			t := doc.Tables[name]
			rules += len(t.Rules)
			for _, tmpl := range t.Templates {
				rules += len(tmpl.Fields)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s: %d tables, %d rules\n", path, len(doc.TableNames), rules)
	}
	if failed > 0 {
		return fmt.Errorf("%d specification(s) failed", failed)
	}
	return nil
}
