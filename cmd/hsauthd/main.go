// Command hsauthd serves the hsAuth client API.
//
// Configuration is read from HSAUTH_* environment variables, optionally
// seeded from a .env file. With -dev it runs self-contained on miniredis
// and a throwaway SQLite file with a "dummy"/"dummy" account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	hsAuth "github.com/MrEthical07/hsAuth"
	"github.com/MrEthical07/hsAuth/httpapi"
	"github.com/MrEthical07/hsAuth/logging"
	"github.com/MrEthical07/hsAuth/metrics/export/prometheus"
	"github.com/MrEthical07/hsAuth/password"
	"github.com/MrEthical07/hsAuth/storage/sqlstore"
)

type serverEnv struct {
	Addr      string        `env:"HSAUTH_HTTP_ADDR"        envDefault:":8008"`
	RedisAddr string        `env:"HSAUTH_REDIS_ADDR"       envDefault:"localhost:6379"`
	DBDriver  string        `env:"HSAUTH_DB_DRIVER"        envDefault:"sqlite"`
	DBDSN     string        `env:"HSAUTH_DB_DSN"           envDefault:"hsauth.db"`
	Shutdown  time.Duration `env:"HSAUTH_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

const (
	devUser     = "dummy"
	devPassword = "dummy"
)

func main() {
	dev := flag.Bool("dev", false, "run on miniredis and a temporary SQLite database")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := run(*dev, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "hsauthd: %v\n", err)
		os.Exit(1)
	}
}

func run(dev bool, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	logCfg, err := env.ParseAsWithOptions[logging.Config](env.Options{Prefix: "HSAUTH_LOG_"})
	if err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if dev {
		logCfg.Dev = true
		logCfg.Level = "debug"
	}
	logger, syncLogs, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer syncLogs()

	srvCfg, err := env.ParseAs[serverEnv]()
	if err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	cfg, err := hsAuth.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("miniredis: %w", err)
		}
		defer mr.Close()
		srvCfg.RedisAddr = mr.Addr()

		dir, err := os.MkdirTemp("", "hsauthd-dev-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		srvCfg.DBDriver = sqlstore.DriverSQLite
		srvCfg.DBDSN = filepath.Join(dir, "hsauth.db")
		cfg.Metrics.Enabled = true
	}

	rdb := redis.NewClient(&redis.Options{Addr: srvCfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", srvCfg.RedisAddr, err)
	}

	store, err := sqlstore.Open(ctx, srvCfg.DBDriver, srvCfg.DBDSN)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if dev {
		if err := bootstrapUser(ctx, store, cfg.Password); err != nil {
			return err
		}
		logger.Info("dev account ready", zap.String("user", devUser))
	}

	builder := hsAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(store).
		WithDeviceStore(store).
		WithLogger(logger).
		WithEmailSender(logSender{logger: logger, dev: dev})
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(hsAuth.NewZapSink(logger.Named("audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, w := range engine.SecurityReport().Warnings {
		logger.Warn("security posture", zap.String("warning", w))
	}

	opts := httpapi.Options{Logger: logger}
	if cfg.Metrics.Enabled {
		opts.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}
	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           httpapi.NewRouter(engine, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srvCfg.Addr), zap.String("server_name", cfg.Server.Name))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.Shutdown)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func bootstrapUser(ctx context.Context, store *sqlstore.Store, pc hsAuth.PasswordConfig) error {
	hasher, err := password.NewHasher(password.Config{
		Memory:      pc.Memory,
		Time:        pc.Time,
		Parallelism: pc.Parallelism,
		SaltLength:  pc.SaltLength,
		KeyLength:   pc.KeyLength,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(devPassword)
	if err != nil {
		return err
	}
	err = store.CreateUser(ctx, hsAuth.User{ID: devUser, PasswordHash: hash})
	if err != nil && !errors.Is(err, sqlstore.ErrUserExists) {
		return err
	}
	return nil
}

// logSender stands in for a mail relay. The code itself is only logged
// in dev mode.
type logSender struct {
	logger *zap.Logger
	dev    bool
}

func (s logSender) SendValidationCode(_ context.Context, address, sid, code string) error {
	fields := []zap.Field{zap.String("address", address), zap.String("sid", sid)}
	if s.dev {
		fields = append(fields, zap.String("code", code))
	}
	s.logger.Info("email validation requested", fields...)
	return nil
}
