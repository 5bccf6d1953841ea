package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cottand/occur/scenario"
)

var CheckCmd = &cobra.Command{
	Use:          "check scenario.yaml...",
	Short:        "Run refinement scenarios and check their expected types",
	RunE:         runCheck,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

var checkQuiet *bool

func init() {
	checkQuiet = CheckCmd.Flags().BoolP("quiet", "q", false, "only report mismatches")
}

func runCheck(cmd *cobra.Command, args []string) error {
	failed := 0
	for _, file := range args {
		s, err := scenario.LoadFile(file)
		if err != nil {
			return err
		}
		result, err := s.Run()
		if err != nil {
			return err
		}
		if !result.OK() {
			failed++
		}
		if *checkQuiet && result.OK() {
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "== %s\n%s", s.Name, result.Report())
	}
	if failed > 0 {
		return errors.Errorf("%d of %d scenarios have mismatches", failed, len(args))
	}
	return nil
}
