package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fiffu/tickerwatch/app"
	"github.com/fiffu/tickerwatch/config"
	"github.com/fiffu/tickerwatch/lib/scheduler"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time.
var Version = "dev"

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func withZapLogger(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log}
}

func serveOptions() fx.Option {
	return fx.Options(
		fx.Provide(NewLogger),
		fx.Provide(config.NewConfig),
		fx.WithLogger(withZapLogger),

		app.Module,

		fx.Invoke(func(*http.Server, *scheduler.Scheduler) {}),
	)
}

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
