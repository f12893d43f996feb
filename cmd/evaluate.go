package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/talentscout/internal/filtering"
	"github.com/spigell/talentscout/internal/ingest"
	"github.com/spigell/talentscout/internal/pipeline"
	"github.com/spigell/talentscout/internal/ranking"
	"go.uber.org/zap"
)

const (
	PromptShowShortlist  = "Show shortlist"
	PromptReport         = "Report"
	PromptInterviewGuide = "Generate interview guide"
	PromptDumpToFile     = "Dump shortlist to file"
	PromptFilters        = "Show filters"
	PromptExit           = "Exit"
	PromptBack           = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowShortlist, PromptReport, PromptInterviewGuide, PromptDumpToFile, PromptFilters, PromptExit},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate --job JOB_FILE RESUME_PATH...",
	Short: "Rank resumes against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		evaluate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("job", "", "file with the job description (txt, md, pdf or docx)")
	evaluateCmd.Flags().BoolP("yes", "y", false, "do not ask anything, print the report and exit")
	evaluateCmd.Flags().String("interview", "", "generate the interview guide for this candidate id and exit")
	evaluateCmd.Flags().Int("min-score", 0, "drop candidates scoring below this value")
	evaluateCmd.Flags().Int("top-n", 0, "keep only the first N candidates")
	evaluateCmd.Flags().StringSlice("skill", nil, "keep only candidates matching this skill (repeatable)")
	evaluateCmd.Flags().StringSlice("exclude", nil, "candidate ids to drop from the shortlist")
	evaluateCmd.Flags().StringSlice("disable-filter", nil, "skip a shortlist filter by name (repeatable)")
	evaluateCmd.Flags().Int("concurrency", pipeline.DefaultConcurrency, "resumes evaluated in parallel")
	_ = evaluateCmd.MarkFlagRequired("job")

	viper.BindPFlag("filters.min-score", evaluateCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("filters.top-n", evaluateCmd.Flags().Lookup("top-n"))
	viper.BindPFlag("filters.required-skills", evaluateCmd.Flags().Lookup("skill"))
	viper.BindPFlag("filters.exclude-candidates", evaluateCmd.Flags().Lookup("exclude"))
	viper.BindPFlag("pipeline.concurrency", evaluateCmd.Flags().Lookup("concurrency"))
}

func evaluate(cmd *cobra.Command, paths []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting talentscout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	jobFile, _ := cmd.Flags().GetString("job")
	job, err := ingest.ReadFile(jobFile)
	if err != nil {
		logger.Fatal("reading the job description", zap.String("file", jobFile), zap.Error(err))
	}

	docs, loadFailures := ingest.Load(paths...)
	logFailures(logger, loadFailures)
	if len(docs) == 0 {
		logger.Info("exiting", zap.String("reason", "no readable resumes found"))
		return
	}

	logger.Info("resumes loaded", zap.Int("count", len(docs)))

	st, err := newStack(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the model gateway", zap.Error(err))
	}

	result, err := st.pipeline.Run(ctx, pipeline.Request{JobDescription: job.Text, Resumes: docs})
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	logFailures(logger, result.Failures)
	if result.Cancelled {
		logger.Warn("evaluation interrupted, showing completed candidates only",
			zap.Strings("skipped", result.Skipped),
		)
		// a second interrupt should quit the prompts, not the run
		stop()
		ctx = context.Background()
	}

	logger.Info("job profile",
		zap.String("title", result.Job.Title),
		zap.String("required_skills", result.Job.RequiredSkills.String()),
		zap.String("experience_level", result.Job.ExperienceLevel.String()),
	)

	disabled, _ := cmd.Flags().GetStringSlice("disable-filter")
	steps := shortlistSteps(disabled)
	shortlist, _, err := filtering.Run(ctx, &config.Filters, filtering.Deps{Logger: logger}, steps, result.Shortlist)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	session := pipeline.NewSession(result, st.guides)

	if id, _ := cmd.Flags().GetString("interview"); id != "" {
		if err := showGuide(ctx, logger, session, id); err != nil {
			logger.Fatal("generating interview guide", zap.Error(err))
		}
		return
	}

	if shortlist.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates left after filters"))
		return
	}

	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		if err := handleAction(ctx, PromptReport, logger, session, shortlist, steps, config.Filters.MinScore); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		logger.Info("current shortlist", zap.Int("count", shortlist.Len()))

		if err := handleAction(ctx, action, logger, session, shortlist, steps, config.Filters.MinScore); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func shortlistSteps(disabled []string) []filtering.Filter {
	steps := filtering.DefaultSteps()
	for _, name := range disabled {
		filtering.DisableByName(steps, name, "disabled by flag")
	}
	return steps
}

func handleAction(ctx context.Context, action string, logger *zap.Logger, session *pipeline.Session, shortlist ranking.RankedShortlist, steps []filtering.Filter, threshold int) error {
	switch action {
	case PromptExit:
		return errExit
	case PromptShowShortlist:
		for i, item := range shortlist.Items {
			logger.Info("candidate",
				zap.Int("rank", i+1),
				zap.String("source_id", item.CandidateID),
				zap.String("name", item.CandidateName),
				zap.Int("score", item.Score),
				zap.String("missing_skills", item.MissingSkills.String()),
			)
		}
		return nil
	case PromptReport:
		pretty, _ := json.MarshalIndent(shortlist.Report(threshold), "", "  ")
		logger.Info(string(pretty), zap.Int("candidates count", shortlist.Len()))
		return nil
	case PromptFilters:
		pretty, _ := json.MarshalIndent(filtering.Describe(steps), "", "  ")
		logger.Info(string(pretty))
		return nil
	case PromptDumpToFile:
		filename, err := shortlist.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptInterviewGuide:
		return selectCandidate(ctx, logger, session, shortlist)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func selectCandidate(ctx context.Context, logger *zap.Logger, session *pipeline.Session, shortlist ranking.RankedShortlist) error {
	items := make([]string, 0, shortlist.Len()+1)
	for _, item := range shortlist.Items {
		items = append(items, candidateLabel(item.CandidateID, item.CandidateName, item.Score))
	}

	candidatePrompt := promptui.Select{
		Label: "Choose a candidate and press ENTER",
		Items: append(items, PromptBack),
	}

	_, selected, err := candidatePrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	if err := showGuide(ctx, logger, session, candidateFromLabel(selected)); err != nil {
		// a failed guide leaves the shortlist usable
		logger.Warn("interview guide unavailable", zap.Error(err))
	}
	return nil
}

func showGuide(ctx context.Context, logger *zap.Logger, session *pipeline.Session, candidateID string) error {
	guide, err := session.Guide(ctx, candidateID)
	if err != nil {
		return err
	}

	pretty, _ := json.MarshalIndent(guide, "", "  ")
	logger.Info(string(pretty), zap.String("source_id", candidateID))
	return nil
}

func logFailures(logger *zap.Logger, failures []pipeline.Failure) {
	for _, f := range failures {
		logger.Warn("resume not evaluated",
			zap.String("source_id", f.SourceID),
			zap.String("reason", f.Reason),
			zap.Error(f.Err),
		)
	}
}

// candidateLabel renders a candidate for the selection prompt. The id comes
// first and is tab separated so that it survives spaces in file names.
func candidateLabel(id, name string, score int) string {
	return fmt.Sprintf("%s\t%s (%d)", id, name, score)
}

func candidateFromLabel(label string) string {
	id, _, _ := strings.Cut(label, "\t")
	return id
}
