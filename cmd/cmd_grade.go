package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/posgrade/pkg/logger"
)

var gradeFlags struct {
	dir        string
	transcript string
	output     string
	json       bool
	yaml       bool
}

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade one submission directory and print the result",
	RunE:  runGrade,
}

func init() {
	f := gradeCmd.Flags()
	f.StringVar(&gradeFlags.dir, "dir", "", "Submission directory (default: work_dir)")
	f.StringVar(&gradeFlags.transcript, "transcript", "", "Agent transcript; recorded but not scored")
	f.StringVarP(&gradeFlags.output, "output", "o", formatText, "Output format: text, json or yaml")
	f.BoolVar(&gradeFlags.json, "json", false, "Shorthand for --output json")
	f.BoolVar(&gradeFlags.yaml, "yaml", false, "Shorthand for --output yaml")
	gradeCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

func runGrade(cmd *cobra.Command, _ []string) error {
	dir := gradeFlags.dir
	if dir == "" {
		dir = cfg.WorkDir
	}
	g := newGrader(cfg, dir, logger.Named("grader"))
	res := g.Grade(cmd.Context(), gradeFlags.transcript)

	format := gradeFlags.output
	switch {
	case gradeFlags.json:
		format = formatJSON
	case gradeFlags.yaml:
		format = formatYAML
	}
	return render(cmd.OutOrStdout(), format, res, func(w io.Writer) error { return writeResult(w, res) })
}
