package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/safeops-labs/lawsuggest/internal/model"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a statute corpus JSON file into the law index",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(ingestFile)
		if err != nil {
			return eris.Wrapf(err, "ingest: read %s", ingestFile)
		}

		var laws []model.LawArticle
		if err := json.Unmarshal(raw, &laws); err != nil {
			return eris.Wrapf(err, "ingest: parse %s", ingestFile)
		}
		if len(laws) == 0 {
			return eris.New("ingest: corpus file contains no articles")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Index.Upsert(cmd.Context(), laws)
		if err != nil {
			return err
		}

		zap.L().Info("corpus ingested",
			zap.String("file", ingestFile),
			zap.Int("articles", n),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "corpus JSON file (array of law articles)")
	ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}
