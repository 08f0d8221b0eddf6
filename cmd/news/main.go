package main

import (
	"ainews/internal/app"
	"ainews/internal/config"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: could not load .env: %v", err)
	}
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("FATAL: could not load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: invalid config: %v", err)
	}
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: could not init app: %v", err)
	}
	if err := application.Run(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
}

// loadConfig разбирает флаги и собирает конфигурацию: значения по умолчанию,
// затем JSON-файл из --config (если указан), затем переменные окружения.
func loadConfig(args []string) (*config.Config, error) {
	fset := flag.NewFlagSet("news", flag.ContinueOnError)
	configPath := fset.StringP("config", "c", "", "Path to JSON config file (built-in defaults when empty)")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	cfg := config.New()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	return cfg, nil
}
