package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/spigell/talentscout/internal/ai"
	"github.com/spigell/talentscout/internal/filtering"
	"github.com/spigell/talentscout/internal/pipeline"
	"github.com/spigell/talentscout/internal/scoring"
)

const (
	app       = "talentscout"
	envPrefix = "TALENTSCOUT"
)

type Config struct {
	Gemini   GeminiConfig     `mapstructure:"gemini"`
	Retry    ai.RetryPolicy   `mapstructure:"retry"`
	Pipeline pipeline.Config  `mapstructure:"pipeline"`
	Scoring  scoring.Config   `mapstructure:"scoring"`
	Filters  filtering.Config `mapstructure:"filters"`
	Prompts  PromptsConfig    `mapstructure:"prompts"`
	Server   ServerConfig     `mapstructure:"server"`
}

type GeminiConfig struct {
	APIKey            string  `mapstructure:"api-key" json:"-"`
	APIKeyFile        string  `mapstructure:"api-key-file"`
	Model             string  `mapstructure:"model" validate:"required"`
	FallbackModel     string  `mapstructure:"fallback-model"`
	Temperature       float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	RequestsPerMinute int     `mapstructure:"requests-per-minute" validate:"gte=0"`
	ResponseSchema    bool    `mapstructure:"response-schema"`
	MaxLogLength      int     `mapstructure:"max-log-length" validate:"gte=0"`
}

// PromptsConfig carries recruiter notes added to every model prompt.
type PromptsConfig struct {
	Instructions string `mapstructure:"instructions"`
	FocusAreas   string `mapstructure:"focus-areas"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr" validate:"required"`
	MaxSessions int           `mapstructure:"max-sessions" validate:"gte=0"`
	MaxResumes  int           `mapstructure:"max-resumes" validate:"gte=0"`
	RunTimeout  time.Duration `mapstructure:"run-timeout" validate:"gte=0"`
}

func defaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model:             "gemini-2.0-flash",
			FallbackModel:     "gemini-flash-latest",
			Temperature:       0.2,
			RequestsPerMinute: 15,
			ResponseSchema:    true,
			MaxLogLength:      2000,
		},
		Retry:    ai.DefaultRetryPolicy(),
		Pipeline: pipeline.DefaultConfig(),
		Scoring:  scoring.DefaultConfig(),
		Server: ServerConfig{
			Addr:        ":8080",
			MaxSessions: 32,
			MaxResumes:  200,
			RunTimeout:  10 * time.Minute,
		},
	}
}

// envKeys are bound explicitly so that they work without a config file.
var envKeys = []string{
	"gemini.api-key",
	"gemini.model",
	"gemini.fallback-model",
	"gemini.requests-per-minute",
	"pipeline.concurrency",
	"filters.min-score",
	"server.addr",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talentscout ranks resumes against a job description and prepares interview guides",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	bindEnv(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talentscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

func initConfig() {
	// Only commands that talk to the model need a config.
	if evaluateCmd.CalledAs() == "" && serveCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The default config file is optional, an explicit one is not.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return loadConfig(viper.GetViper())
}

// loadConfig decodes v over the defaults and validates the result.
func loadConfig(v *viper.Viper) (*Config, error) {
	config := defaultConfig()

	err := v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	for level, band := range config.Scoring.Bands {
		if band.MaxYears > 0 && band.MaxYears < band.MinYears {
			return nil, fmt.Errorf("validating config: scoring band %s: max-years below min-years", level)
		}
	}

	return config, nil
}
