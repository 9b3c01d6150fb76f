package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"github.com/spigell/interviewd/internal/orchestrator"
	"github.com/spigell/interviewd/internal/resume"
	"github.com/spigell/interviewd/internal/session"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errExit = errors.New("exit requested")

var retryPrompt = promptui.Select{
	Label: "Evaluation is temporarily unavailable. Retry?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("resume-file", "r", "", "path to the candidate resume (plain text or markdown)")
	runCmd.MarkFlagRequired("resume-file")
}

// run drives one interview session over stdin/stdout.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the interviewd terminal mode", zap.String("version", version))

	store := session.NewMemory()

	orch, err := buildOrchestrator(ctx, config, store, logger)
	if err != nil {
		logger.Fatal("building the interview orchestrator", zap.Error(err))
	}

	resumeText, err := loadResume(cmd.Flag("resume-file").Value.String())
	if err != nil {
		logger.Fatal("loading the resume", zap.Error(err))
	}

	sess, err := orch.Create(ctx, interviewConfig(config))
	if err != nil {
		logger.Fatal("creating the session", zap.Error(err))
	}

	res, err := orch.Step(ctx, sess.ID, orchestrator.ResumeSubmitted{Text: resumeText})
	if err != nil {
		logger.Fatal("analyzing the resume", zap.Error(err))
	}

	fmt.Printf("\nTopics selected: %d\n", res.Progress.TotalTopics)

	for res.Progress.Stage == interview.StageQuestioning {
		fmt.Printf("\n%s\n\n", res.Prompt)

		answer, err := askLine("Your answer")
		if err != nil {
			logger.Info("exiting", zap.Error(err))
			return
		}

		res, err = orch.Step(ctx, sess.ID, orchestrator.AnswerSubmitted{Text: answer})
		if err != nil {
			logger.Fatal("recording the answer", zap.Error(err))
		}
	}

	fmt.Printf("\n%s\n\n", res.Prompt)

	result, err := submitSolution(ctx, orch, sess.ID)
	if err != nil {
		if errors.Is(err, errExit) {
			logger.Info("exiting", zap.String("reason", "evaluation declined"))
			return
		}
		logger.Fatal("evaluating the solution", zap.Error(err))
	}

	printResult(result)
}

// submitSolution collects the solution file and retries evaluation while the
// model backend is temporarily unavailable and the user agrees to wait.
func submitSolution(ctx context.Context, orch *orchestrator.Orchestrator, sessionID string) (*interview.Result, error) {
	path, err := askLine("Path to your solution file")
	if err != nil {
		return nil, err
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading solution file: %w", err)
	}

	for {
		res, err := orch.Step(ctx, sessionID, orchestrator.CodeSubmitted{Code: string(code)})
		if err == nil {
			return res.Result, nil
		}
		if !errors.Is(err, orchestrator.ErrRetryLater) {
			return nil, err
		}

		_, action, promptErr := retryPrompt.Run()
		if promptErr != nil {
			return nil, promptErr
		}
		if action == PromptNo {
			return nil, errExit
		}
	}
}

func loadResume(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return resume.PlainText(raw)
}

func askLine(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if input == "" {
				return errors.New("input must not be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

func printResult(result *interview.Result) {
	fmt.Printf("\nFinal score: %.0f/100\n\n%s\n", result.Score, result.Feedback)

	if len(result.Strengths) > 0 {
		fmt.Println("\nStrengths:")
		for _, s := range result.Strengths {
			fmt.Printf("  - %s\n", s)
		}
	}
	if len(result.Improvements) > 0 {
		fmt.Println("\nAreas to improve:")
		for _, s := range result.Improvements {
			fmt.Printf("  - %s\n", s)
		}
	}
	if result.Degraded {
		fmt.Println("\nNote: parts of the adaptive dialogue ran in degraded mode; the score may be conservative.")
	}

	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("\nFull result:\n%s\n", pretty)
}
