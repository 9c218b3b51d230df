package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/2beens/planbuilder/internal"
	"github.com/2beens/planbuilder/internal/config"
	"github.com/2beens/planbuilder/internal/logging"
	"github.com/2beens/planbuilder/pkg"

	log "github.com/sirupsen/logrus"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

type secrets struct {
	redisPassword    string
	dbPassword       string
	sentryDSN        string
	honeycombEnabled bool
}

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	versionInfo := resolveVersion()
	if *printVersion {
		fmt.Println(versionInfo)
		return
	}

	if err := run(*env, *configPath, versionInfo); err != nil {
		log.Fatalf("planbuilder: %s", err)
	}
}

func run(env, configPath, versionInfo string) error {
	log.Warnf("---->> running in [%s] environment", env)

	cfg, err := config.Load(env, configPath)
	if err != nil {
		return err
	}

	s := readSecrets()
	err = logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		ServiceName:      "planbuilder",
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        s.sentryDSN,
		SentryServerName: "planbuilder-service",
		MaxBackups:       10,
		MaxAgeDays:       30,
	})
	if err != nil {
		return fmt.Errorf("logging setup: %w", err)
	}

	log.WithFields(log.Fields{
		"version": versionInfo,
		"host":    cfg.Host,
		"port":    cfg.Port,
	}).Infoln("starting planbuilder")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             versionInfo,
			RedisPassword:           s.redisPassword,
			DBPassword:              s.dbPassword,
			HoneycombTracingEnabled: s.honeycombEnabled,
		},
	)
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	<-ctx.Done()
	log.Warnln("shutdown signal received, stopping ...")
	server.GracefulShutdown()
	return nil
}

func readSecrets() secrets {
	s := secrets{
		redisPassword:    os.Getenv("PLANBUILDER_REDIS_PASS"),
		dbPassword:       os.Getenv("PLANBUILDER_DB_PASS"),
		sentryDSN:        os.Getenv("SENTRY_DSN"),
		honeycombEnabled: os.Getenv("HONEYCOMB_ENABLED") == "true",
	}

	if s.redisPassword == "" {
		log.Errorf("redis password not set. use PLANBUILDER_REDIS_PASS")
	}
	if s.dbPassword == "" {
		log.Warnln("db password not set. use PLANBUILDER_DB_PASS")
	}
	if os.Getenv("OTEL_SERVICE_NAME") == "" {
		log.Warnln("OTEL_SERVICE_NAME env var not set")
	}
	if s.honeycombEnabled && os.Getenv("HONEYCOMB_API_KEY") == "" {
		log.Warnln("HONEYCOMB_API_KEY env var not set")
	}
	return s
}

// resolveVersion prefers the build-time version, then the git HEAD of the
// working directory.
func resolveVersion() string {
	if version != "" {
		return version
	}
	stdout, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
		return "dev"
	}
	return strings.TrimSpace(pkg.BytesToString(stdout))
}
