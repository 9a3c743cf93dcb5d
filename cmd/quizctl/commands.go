package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mediquiz-backend/internal/quiz"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quizctl",
		Short:         "Normalize and score medical quiz questions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("format", "json", "Output format: json or yaml")

	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newScoreCmd())
	root.AddCommand(newTypesCmd())
	return root
}

func newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <raw.json>",
		Short: "Turn generator output into well-formed questions",
		Long:  "Reads a JSON array of loosely-typed question objects (use - for stdin) and prints the normalized set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			offset, _ := cmd.Flags().GetInt("offset")
			questions, err := quiz.NormalizeJSON(data, offset)
			if err != nil {
				return err
			}
			return writeOutput(cmd, quiz.Set(questions))
		},
	}
	cmd.Flags().Int("offset", 0, "Position of the first record, used for synthesized ids")
	return cmd
}

type scoreReport struct {
	Correct int           `json:"correct"`
	Total   int           `json:"total"`
	Percent int           `json:"percent"`
	Results []quiz.Result `json:"results"`
}

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <questions.json> <answers.json>",
		Short: "Grade answers against a question set",
		Long:  "Answers are a JSON object keyed by question id.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			questionData, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			answerData, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}

			var questions quiz.Set
			if err := json.Unmarshal(questionData, &questions); err != nil {
				return fmt.Errorf("read questions: %w", err)
			}
			var answers quiz.Answers
			if err := json.Unmarshal(answerData, &answers); err != nil {
				return fmt.Errorf("read answers: %w", err)
			}

			summary := quiz.Score(questions, answers)
			return writeOutput(cmd, scoreReport{
				Correct: summary.Correct,
				Total:   summary.Total,
				Percent: summary.Percent(),
				Results: summary.Results,
			})
		},
	}
}

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported question types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd, quiz.TypeStrings())
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// writeOutput prints v as indented JSON or as YAML. YAML goes through the
// JSON form so both formats share field names.
func writeOutput(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	switch format {
	case "json":
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
