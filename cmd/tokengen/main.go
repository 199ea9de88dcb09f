// Command tokengen mints a bearer token for an API client when the server
// runs with auth enabled. It reads the same configuration as the server.
//
//	tokengen -subject ci-pipeline
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/taskhub-api/internal/config"
	"github.com/phrazzld/taskhub-api/internal/service/auth"
)

var errAuthDisabled = errors.New("auth is disabled: set TASKHUB_AUTH_JWT_SECRET or auth.jwt_secret")

func main() {
	subject := flag.String("subject", "", "client name to embed in the token (required)")
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml when present)")
	flag.Parse()

	if err := run(os.Stdout, *configPath, *subject); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, configPath, subject string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return mint(out, cfg.Auth, subject)
}

func mint(out io.Writer, cfg config.AuthConfig, subject string) error {
	if !cfg.Enabled() {
		return errAuthDisabled
	}

	svc, err := auth.NewJWTService(cfg)
	if err != nil {
		return err
	}

	token, err := svc.GenerateToken(context.Background(), subject)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
