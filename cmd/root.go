package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/ai/gemini"
	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/httpapi"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/interview/challenge"
	"github.com/spigell/interviewd/internal/interview/dialogue"
	"github.com/spigell/interviewd/internal/interview/scoring"
	"github.com/spigell/interviewd/internal/interview/topics"
	"github.com/spigell/interviewd/internal/orchestrator"
	"github.com/spigell/interviewd/internal/secrets"
	"github.com/spigell/interviewd/internal/session"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app = "interviewd"
)

type Config struct {
	Interview *interview.Config `mapstructure:"interview"`
	AI        *AIConfig         `mapstructure:"ai"`
	Gateway   *gateway.Config   `mapstructure:"gateway"`
	Server    *ServerConfig     `mapstructure:"server"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interviewd runs automated technical interviews with resume analysis, adaptive questions and a scored coding challenge",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interviewd.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the serve and run commands.
	if serveCmd.CalledAs() == "" && runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// A config file is optional; every setting has a default or an
	// environment binding. A present but unparseable file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}

	return config, nil
}

// buildOrchestrator wires the model client, gateway and interview components
// around the provided store. It is shared by the serve and run commands.
func buildOrchestrator(ctx context.Context, config *Config, store session.Store, logger *zap.Logger) (*orchestrator.Orchestrator, error) {
	aiCfg := config.AI
	if aiCfg == nil {
		aiCfg = &AIConfig{}
	}
	if aiCfg.Gemini == nil {
		aiCfg.Gemini = &GeminiConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(aiCfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	apiKeyFile := aiCfg.Gemini.APIKeyFile
	if apiKeyFile == "" {
		apiKeyFile = viper.GetString("ai.gemini.api-key-file")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: apiKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.New(ctx, apiKey, aiCfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	var gwCfg gateway.Config
	if config.Gateway != nil {
		gwCfg = *config.Gateway
	}

	gwLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", client.Model()),
	)
	gw := gateway.New(client, gwCfg, gwLogger)

	selector, err := challenge.NewSelector()
	if err != nil {
		return nil, fmt.Errorf("loading challenge catalogue: %w", err)
	}

	return orchestrator.New(orchestrator.Deps{
		Store:     store,
		Topics:    topics.NewExtractor(gw, logger),
		Dialogue:  dialogue.NewEngine(gw, logger),
		Selector:  selector,
		Evaluator: challenge.NewEvaluator(gw, logger),
		Scorer:    scoring.NewScorer(gw, logger),
		Logger:    logger,
	})
}

func interviewConfig(config *Config) interview.Config {
	if config.Interview == nil {
		return interview.Config{AdaptiveQuestioning: true}
	}
	return *config.Interview
}

func serverConfig(config *Config) (*httpapi.Config, time.Duration) {
	sweep := time.Minute
	cfg := &httpapi.Config{Host: "localhost", Port: 8080}

	if config.Server != nil {
		if config.Server.Host != "" {
			cfg.Host = config.Server.Host
		}
		if config.Server.Port != 0 {
			cfg.Port = config.Server.Port
		}
		if config.Server.SweepInterval > 0 {
			sweep = config.Server.SweepInterval
		}
	}
	return cfg, sweep
}
