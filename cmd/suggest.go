package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

var suggestFlags struct {
	summary string
	kind    string
	object  string
	process string
	limit   int
	asJSON  bool
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest statute articles for an incident description",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		q := model.IncidentQuery{
			Summary:         suggestFlags.summary,
			IncidentType:    suggestFlags.kind,
			CausativeObject: suggestFlags.object,
			WorkProcess:     suggestFlags.process,
		}

		result, err := env.Service.Suggest(cmd.Context(), q, suggestFlags.limit)
		if err != nil {
			return err
		}

		if suggestFlags.asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("ruleset %s · %d candidates considered\n\n",
			result.Metadata.Version, result.Metadata.TotalCandidates)
		for i, s := range result.Suggestions {
			fmt.Printf("%2d. [%3d %s] %s %s\n", i+1,
				s.Confidence, s.ConfidenceLevel, s.Law.LawTitle, s.Law.ArticleNo)
			fmt.Printf("    %s\n", s.EvidenceSummary)
		}
		if len(result.Suggestions) == 0 {
			fmt.Println("no suggestions")
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().StringVar(&suggestFlags.summary, "summary", "", "incident summary text")
	suggestCmd.Flags().StringVar(&suggestFlags.kind, "type", "", "incident type")
	suggestCmd.Flags().StringVar(&suggestFlags.object, "object", "", "causative object")
	suggestCmd.Flags().StringVar(&suggestFlags.process, "process", "", "work process")
	suggestCmd.Flags().IntVar(&suggestFlags.limit, "limit", 0, "max suggestions (default from config)")
	suggestCmd.Flags().BoolVar(&suggestFlags.asJSON, "json", false, "emit full JSON result")
	rootCmd.AddCommand(suggestCmd)
}
