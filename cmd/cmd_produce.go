package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/posgrade/internal/producer"
	"github.com/okian/posgrade/pkg/logger"
)

var produceFlags struct {
	data   string
	out    string
	k      int
	output string
}

var produceCmd = &cobra.Command{
	Use:   "produce",
	Short: "Fit a k-NN reference classifier and write a submission",
	Long: `Reads the player stats table, fits a k-nearest-neighbours classifier on the
training rows and writes predictions for the held-out rows. The split is the
same one the grader reconstructs.`,
	RunE: runProduce,
}

func init() {
	f := produceCmd.Flags()
	f.StringVar(&produceFlags.data, "data", "", "Stats table (default: ground_truth_file)")
	f.StringVar(&produceFlags.out, "out", "", "Submission to write (default: submission_file)")
	f.IntVar(&produceFlags.k, "k", producer.DefaultNeighbours, "Number of neighbours")
	f.StringVarP(&produceFlags.output, "output", "o", formatText, "Output format: text, json or yaml")
}

func runProduce(cmd *cobra.Command, _ []string) error {
	data := produceFlags.data
	if data == "" {
		data = cfg.GroundTruthFile
	}
	out := produceFlags.out
	if out == "" {
		out = cfg.SubmissionFile
	}

	p := producer.New(
		producer.WithNeighbours(produceFlags.k),
		producer.WithLabelColumn(cfg.LabelColumn),
		producer.WithReconstructor(newReconstructor(cfg)),
		producer.WithLogger(logger.Named("producer")),
	)
	summary, err := p.Produce(cmd.Context(), data, out)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), produceFlags.output, summary, func(w io.Writer) error { return writeSummary(w, summary) })
}
