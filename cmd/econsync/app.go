package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"EconSync/internal/config"
	"EconSync/internal/recorder"
	"EconSync/internal/syncer"
)

const defaultConfigPath = "configs/config.yaml"

var (
	configPath = flag.String("config", "", "Path to the YAML config file (defaults to $CONFIG_PATH, then "+defaultConfigPath+")")
	envFile    = flag.String("env", ".env", "Path to an optional dotenv file loaded before the config")
	verbose    = flag.Bool("v", false, "Enable debug logging")
)

// loadConfig loads the dotenv file, the config and configures logging.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"config": path, "data_dir": cfg.DataDir}).Debug("config loaded")
	return cfg, nil
}

func setupLogging(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if *verbose {
		lvl = log.DebugLevel
	}
	log.SetLevel(lvl)
	return nil
}

// newSyncer builds a syncer limited to the named series (all when names is empty).
func newSyncer(cfg *config.Config, rec recorder.Recorder, names string) (*syncer.Syncer, error) {
	s := syncer.New(cfg, rec)
	if names == "" {
		return s, nil
	}
	var selected []config.SeriesConfig
	for _, name := range strings.Split(names, ",") {
		sc, ok := cfg.Find(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown series %q", name)
		}
		selected = append(selected, sc)
	}
	s.Series = selected
	return s, nil
}
