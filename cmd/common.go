package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lumos-Labs-HQ/formseed/internal/config"
	"github.com/Lumos-Labs-HQ/formseed/internal/stack"
	"github.com/Lumos-Labs-HQ/formseed/internal/target"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes JSON logs to stderr. Only warnings are shown unless --verbose is set.
func newLogger() *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newTargetClient builds the HTTP client for both target surfaces. Secrets are
// only required when requireSecrets is set; health probes need none.
func newTargetClient(cfg *config.Config, requireSecrets bool) (*target.Client, error) {
	opts := target.Options{
		BaseURL:            cfg.Target.BaseURL,
		AccountsPath:       cfg.Target.AccountsPath,
		SurveysPath:        cfg.Target.SurveysPath,
		ResponsesPath:      cfg.Target.ResponsesPath,
		HealthPath:         cfg.Target.HealthPath,
		Timeout:            cfg.Target.Timeout,
		InsecureSkipVerify: cfg.Target.InsecureSkipVerify,
	}

	if requireSecrets {
		key, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		env, err := cfg.EnvironmentID()
		if err != nil {
			return nil, err
		}
		opts.APIKey, opts.EnvironmentID = key, env
	}
	return target.New(opts), nil
}

func newCompose(cfg *config.Config, logger *zap.Logger) *stack.Compose {
	return stack.NewCompose(cfg.ComposeFile, stack.WithLogger(logger))
}
