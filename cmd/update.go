package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cottand/occur/internal/failure"
	"github.com/cottand/occur/refine"
	"github.com/cottand/occur/scenario"
	"github.com/cottand/occur/subtype"
	"github.com/cottand/occur/types"
)

var UpdateCmd = &cobra.Command{
	Use:   "update --type T --claim C [--negative] [--path car,cdr]",
	Short: "Refine a single type by a claim about a value reached from it",
	Long: `Refine a single type by a claim about a value reached from it.

Types are written as in scenario files, for example '{pair: [Number, {union: [String, Null]}]}'.
The path lists projections outermost first, so --path car,cdr is (car (cdr x)).`,
	RunE:         runUpdate,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

var (
	updateType     *string
	updateClaim    *string
	updateNegative *bool
	updatePath     *[]string
)

func init() {
	updateType = UpdateCmd.Flags().StringP("type", "t", "", "type to refine")
	updateClaim = UpdateCmd.Flags().StringP("claim", "c", "", "type claimed for the value at the end of the path")
	updateNegative = UpdateCmd.Flags().BoolP("negative", "n", false, "claim that the value is not of the claimed type")
	updatePath = UpdateCmd.Flags().StringSliceP("path", "p", nil, "projections, outermost first: car, cdr, syntax-e, force, result")
	_ = UpdateCmd.MarkFlagRequired("type")
	_ = UpdateCmd.MarkFlagRequired("claim")
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	t, err := scenario.ParseType(*updateType)
	if err != nil {
		return errors.Wrap(err, "--type")
	}
	claim, err := scenario.ParseType(*updateClaim)
	if err != nil {
		return errors.Wrap(err, "--claim")
	}
	path, err := scenario.ParsePath(*updatePath)
	if err != nil {
		return errors.Wrap(err, "--path")
	}

	engine := refine.NewEngine(subtype.New(types.NewArena()))
	var result types.Type
	if err := failure.Catch(func() {
		result = engine.Update(t, claim, !*updateNegative, path)
	}); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}
