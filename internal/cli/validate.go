package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/ghrun/internal/parse"
	"github.com/me/ghrun/internal/validate"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yml>",
		Short: "Validate a workflow file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			wf, err := parse.New(logger).File(data, path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			warnings, verr := validate.New(logger).Validate(wf)
			for _, w := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			if verr != nil {
				fmt.Fprintln(os.Stderr, verr)
				os.Exit(2)
			}

			fmt.Println("workflow is valid")
			return nil
		},
	}
}
