package main

import (
	"fmt"
	"io"
	"strings"

	goEnroll "github.com/MrEthical07/goEnroll"
	"github.com/spf13/cobra"
)

var printConfigCmd = &cobra.Command{
	Use:   "print-config",
	Short: "Print the resolved configuration and its lint warnings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := resolveSettings()
		if err != nil {
			return err
		}
		writeConfig(cmd.OutOrStdout(), s)
		return nil
	},
}

func writeConfig(out io.Writer, s settings) {
	cfg := s.Config
	types := make([]string, 0, len(cfg.Enrollment.AccountTypes))
	for _, t := range cfg.Enrollment.AccountTypes {
		types = append(types, string(t))
	}

	fmt.Fprintf(out, "verification.code_length      %d\n", cfg.Verification.CodeLength)
	fmt.Fprintf(out, "verification.max_attempts     %d\n", cfg.Verification.MaxAttempts)
	fmt.Fprintf(out, "verification.code_ttl         %s\n", cfg.Verification.CodeTTL)
	fmt.Fprintf(out, "verification.resend_cooldown  %s\n", cfg.Verification.ResendCooldown)
	fmt.Fprintf(out, "verification.lock_duration    %s\n", cfg.Verification.LockDuration)
	fmt.Fprintf(out, "phone.number_pattern          %s\n", cfg.Phone.NumberPattern)
	fmt.Fprintf(out, "phone.country_code_pattern    %s\n", cfg.Phone.CountryCodePattern)
	fmt.Fprintf(out, "phone.default_country_code    %s\n", cfg.Phone.DefaultCountryCode)
	fmt.Fprintf(out, "enrollment.account_types      %s\n", strings.Join(types, ","))
	fmt.Fprintf(out, "enrollment.name_min_length    %d\n", cfg.Enrollment.NameMinLength)
	fmt.Fprintf(out, "issue_throttle.enabled        %t\n", cfg.IssueThrottle.Enabled)
	if cfg.IssueThrottle.Enabled {
		fmt.Fprintf(out, "issue_throttle.max_per_window %d\n", cfg.IssueThrottle.MaxIssuesPerWindow)
		fmt.Fprintf(out, "issue_throttle.window         %s\n", cfg.IssueThrottle.IssueWindow)
	}
	fmt.Fprintf(out, "receipt.enabled               %t\n", cfg.Receipt.Enabled)
	if cfg.Receipt.Enabled {
		fmt.Fprintf(out, "receipt.method                %s\n", cfg.Receipt.SigningMethod)
		fmt.Fprintf(out, "receipt.ttl                   %s\n", cfg.Receipt.TTL)
		if s.EphemeralReceiptKey {
			fmt.Fprintln(out, "receipt.key                   ephemeral")
		}
	}
	fmt.Fprintf(out, "audit.enabled                 %t\n", cfg.Audit.Enabled)
	fmt.Fprintf(out, "metrics.enabled               %t\n", cfg.Metrics.Enabled)
	fmt.Fprintf(out, "production_mode               %t\n", cfg.ProductionMode)

	lint := cfg.Lint()
	if len(lint) == 0 {
		return
	}
	fmt.Fprintln(out, "\nlint:")
	for _, w := range lint.BySeverity(goEnroll.LintInfo) {
		fmt.Fprintf(out, "  [%s] %s: %s\n", w.Severity, w.Code, w.Message)
	}
}
