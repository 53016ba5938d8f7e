package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-exam-scheduler/internal/dto"
	"github.com/noah-isme/sma-exam-scheduler/internal/scheduling"
	"github.com/noah-isme/sma-exam-scheduler/internal/service"
	"github.com/noah-isme/sma-exam-scheduler/pkg/logger"
)

const formatJSON = "json"

type scheduleOptions struct {
	roster        string
	first         string
	last          string
	exclude       []string
	fix           []string
	solution      string
	format        string
	table         string
	out           string
	stepDays      int
	maxExtension  int
	maxRosterRows int
	verbose       bool
}

func newScheduleCommand() *cobra.Command {
	opts := &scheduleOptions{}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Plan an exam period and write the chosen solution",
		Example: "  examctl schedule --roster roster.csv --first 2025-05-12 --last 2025-06-10 \\\n" +
			"    --exclude 2025-05-15 --fix EX8=2025-05-12 --solution forced --format pdf --out ./exports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.roster, "roster", "", "roster CSV with Exam ID, Student ID, Course Name")
	flags.StringVar(&opts.first, "first", "", "first exam day (YYYY-MM-DD)")
	flags.StringVar(&opts.last, "last", "", "last exam day (YYYY-MM-DD)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "dates without exams, repeatable or comma separated")
	flags.StringSliceVar(&opts.fix, "fix", nil, "fixed schedule EXAM_ID=YYYY-MM-DD, repeatable")
	flags.StringVar(&opts.solution, "solution", dto.SolutionExtended, "extended or forced")
	flags.StringVar(&opts.format, "format", service.ExportFormatCSV, "csv, pdf or json")
	flags.StringVar(&opts.table, "table", service.ExportTableSchedule, "schedule or conflicts (csv only)")
	flags.StringVar(&opts.out, "out", ".", "output directory, or - for stdout")
	flags.IntVar(&opts.stepDays, "extension-step", scheduling.DefaultExtensionStepDays, "days added per extension round")
	flags.IntVar(&opts.maxExtension, "max-extension", scheduling.DefaultMaxExtensionDays, "maximum days the window may grow")
	flags.IntVar(&opts.maxRosterRows, "max-rows", 0, "reject rosters above this many rows (0 = unlimited)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	for _, name := range []string{"roster", "first", "last"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runSchedule(cmd *cobra.Command, opts *scheduleOptions) error {
	logr, err := logger.NewCLI(opts.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	query, err := service.NormalizeQuery(dto.ExportScheduleQuery{Solution: opts.solution, Table: opts.table})
	if err != nil {
		return err
	}
	format := strings.ToLower(strings.TrimSpace(opts.format))
	if format != formatJSON {
		query.Format = format
		if query, err = service.NormalizeQuery(query); err != nil {
			return err
		}
	}

	f, err := os.Open(opts.roster)
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	roster, err := service.ParseRosterCSV(f, opts.maxRosterRows)
	if err != nil {
		return err
	}
	fixed, err := service.ParseFixedSchedules(strings.Join(opts.fix, ","))
	if err != nil {
		return err
	}

	engine := scheduling.NewEngine(scheduling.Options{ExtensionStepDays: opts.stepDays, MaxExtensionDays: opts.maxExtension})
	scheduler := service.NewExamScheduleService(nil, engine, nil, nil, nil, logr, service.ExamScheduleConfig{})
	req, err := scheduler.BuildRequest(cmd.Context(), dto.GenerateExamScheduleRequest{
		FirstDate:      opts.first,
		LastDate:       opts.last,
		ExcludedDates:  opts.exclude,
		FixedSchedules: fixed,
		Roster:         roster,
	})
	if err != nil {
		return err
	}
	run := scheduler.Compute(req)
	printSummary(cmd.ErrOrStderr(), run)

	name, content, err := renderRun(run, query, format)
	if err != nil {
		return err
	}
	if opts.out == "-" {
		_, err = cmd.OutOrStdout().Write(content)
		return err
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(opts.out, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logr.Debug("schedule written", zap.String("path", path), zap.Int("bytes", len(content)))
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}

func renderRun(run *dto.ExamScheduleRun, query dto.ExportScheduleQuery, format string) (string, []byte, error) {
	if format == formatJSON {
		var view interface{} = run.Extended
		if query.Solution == dto.SolutionForced {
			view = run.Forced
		}
		content, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return "", nil, fmt.Errorf("encode json: %w", err)
		}
		return fmt.Sprintf("exam_schedule_%s.json", query.Solution), append(content, '\n'), nil
	}
	file, err := service.NewExportService(nil, nil, service.ExportConfig{}, nil, nil, nil).Render(run, query)
	if err != nil {
		return "", nil, err
	}
	return file.Filename, file.Content, nil
}

func printSummary(w io.Writer, run *dto.ExamScheduleRun) {
	s := run.Summary
	fmt.Fprintf(w, "%d exams, %d students, %d available days between %s and %s\n",
		s.Exams, s.Students, s.AvailableDays, s.FirstDate, s.LastDate)
	fmt.Fprintf(w, "extended: last date %s (+%d days), complete=%t\n",
		s.Extended.LastDate, s.Extended.ExtensionDays, s.Extended.Complete)
	fmt.Fprintf(w, "forced:   %d conflicts affecting %d students\n",
		s.Forced.TotalConflicts, s.Forced.ImpactedStudents)
	for _, skipped := range s.Skipped {
		fmt.Fprintf(w, "skipped fixed %s on %s: %s %s\n", skipped.ExamID, skipped.Date, skipped.Reason, skipped.StudentID)
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}
