package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/haierkeys/harvester-service/pkg/cronexpr"

	"github.com/spf13/cobra"
)

// cronCmd checks schedule expressions offline, the same way the API does
// cronCmd 离线校验 cron 表达式，与 API 使用同一套规则
var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Validate and describe harvest schedules. // 校验并描述采集定时表达式。",
}

func init() {
	var count int

	validateCmd := &cobra.Command{
		Use:   "validate <expression>",
		Short: "Check a 5-field cron expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			if err := cronexpr.Validate(expr); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe <expression>",
		Short: "Print a description and the next fire times",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := strings.Join(args, " ")
			desc, err := cronexpr.Describe(expr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, desc)

			at := time.Now()
			for i := 0; i < count; i++ {
				at, err = cronexpr.NextFireTime(expr, at)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "  "+at.Format(time.RFC1123))
			}
			return nil
		},
	}
	describeCmd.Flags().IntVarP(&count, "next", "n", 3, "number of upcoming fire times to print")

	cronCmd.AddCommand(validateCmd, describeCmd)
	rootCmd.AddCommand(cronCmd)
}
