package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/trapper/internal/expr"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <expression> [words...]",
		Short: "Parse a trigger expression and evaluate it against some words",
		Example: strings.Join([]string{
			"  trapper check 'tea|coffee&morning' good morning coffee",
			"  trapper check '(a|b)&c'",
		}, "\n"),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := expr.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", expr.ErrorKind(err), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "expression: %s\n", tree)
			fmt.Fprintf(out, "variables:  %s\n", strings.Join(tree.Variables(), ", "))
			if len(args) == 1 {
				return nil
			}
			words := expr.Words(strings.Join(args[1:], " "))
			result := "no match"
			if tree.Evaluate(words) {
				result = "match"
			}
			fmt.Fprintf(out, "result:     %s\n", result)
			return nil
		},
	}
}
