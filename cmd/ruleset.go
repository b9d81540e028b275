package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safeops-labs/lawsuggest/internal/ruleset"
)

var rulesetPath string

var rulesetCmd = &cobra.Command{
	Use:   "ruleset",
	Short: "Inspect and validate scoring rulesets",
}

var rulesetValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a ruleset file without loading it into a server",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rulesetPath
		if path == "" {
			path = cfg.Ruleset.Path
		}

		rs, err := ruleset.Load(path)
		if err != nil {
			return err
		}

		fmt.Printf("ok: version %s (%s)\n", rs.Version, rs.UpdatedAt)
		fmt.Printf("alpha=%.2f beta=%.2f\n", rs.Alpha, rs.Beta)
		for _, cat := range rs.Categories() {
			r := rs.Rules[cat]
			fmt.Printf("  %-16s %2d keywords, %d patterns, weight %.2f\n",
				cat, len(r.Keywords), len(r.Patterns), r.Weight)
		}
		return nil
	},
}

var rulesetVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the active ruleset version",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := rulesetPath
		if path == "" {
			path = cfg.Ruleset.Path
		}

		rs, err := ruleset.Load(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", rs.Version, rs.UpdatedAt)
		return nil
	},
}

func init() {
	rulesetCmd.PersistentFlags().StringVar(&rulesetPath, "file", "", "ruleset file (default from config)")
	rulesetCmd.AddCommand(rulesetValidateCmd)
	rulesetCmd.AddCommand(rulesetVersionCmd)
	rootCmd.AddCommand(rulesetCmd)
}
