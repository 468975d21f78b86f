package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"bp-tracker/internal/auth"
	"bp-tracker/internal/config"
	"bp-tracker/internal/directory"
	"bp-tracker/internal/logging"
	"bp-tracker/internal/server"
	"bp-tracker/internal/store"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-code" {
		if err := hashCode(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// hashCode prints an AUTH_CODE_HASH value for the code given as the only
// argument, or read from the first line of in.
func hashCode(args []string, in io.Reader, out io.Writer) error {
	var code string
	switch len(args) {
	case 0:
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		code = strings.TrimSpace(line)
	case 1:
		code = args[0]
	default:
		return errors.New("usage: server hash-code [code]")
	}
	if code == "" {
		return errors.New("access code must not be empty")
	}

	hash, err := auth.HashCode(code)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hash)
	return err
}

func run() error {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		return err
	}

	log := logging.NewJSON(os.Stdout, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Options{
		Driver:    cfg.DatabaseDriver,
		Path:      cfg.DatabasePath,
		DSN:       cfg.DatabaseDSN,
		StateFile: cfg.StateFile,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	verifier, err := auth.NewCodeVerifier(cfg.AuthCode, cfg.AuthCodeHash)
	if err != nil {
		return err
	}

	tokenCfg := auth.DefaultTokenConfig(cfg.TokenSecret)
	tokenCfg.Expiry = cfg.TokenExpiry
	if cfg.TokenSecretGenerated {
		log.Warn(ctx, "TOKEN_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	limiter := server.DefaultLoginLimiter(cfg.LoginRateLimit)
	if limiter != nil {
		defer limiter.Stop()
	}

	router := server.NewRouter(server.Deps{
		Store:        st,
		Directory:    directory.New(cfg.Users, st),
		TokenConfig:  tokenCfg,
		Verifier:     verifier,
		Logger:       log,
		LoginLimiter: limiter,
		StaticDir:    cfg.StaticDir,
	})

	log.Info(ctx, "listening", "addr", cfg.ListenAddr(), "driver", cfg.DatabaseDriver, "tls", cfg.TLSCertFile != "")
	return server.Run(ctx, cfg, router, log)
}
