package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/HerbHall/chronicle/internal/backup"
	"github.com/HerbHall/chronicle/internal/config"
	"github.com/spf13/viper"
)

// loadConfigOrExit loads configuration for a subcommand. A rejected
// config file exits with code 2; any other load failure exits 1.
func loadConfigOrExit(configPath string) *viper.Viper {
	v, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	return v
}

// runBackup implements `chronicle backup [-output path]`.
func runBackup(args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	output := fs.String("output", "", "archive path (default chronicle-backup-<timestamp>.tar.gz)")
	_ = fs.Parse(args)

	v := loadConfigOrExit(*configPath)

	out := *output
	if out == "" {
		out = fmt.Sprintf("chronicle-backup-%s.tar.gz", time.Now().Format("20060102-150405"))
	}

	err := backup.Backup(context.Background(), v.GetString("database.path"), v.ConfigFileUsed(), out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("backup written to %s\n", out)
}

// runRestore implements `chronicle restore -input path [-force]`.
func runRestore(args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	input := fs.String("input", "", "backup archive to restore (required)")
	target := fs.String("target", "", "directory to restore into (default: database directory)")
	force := fs.Bool("force", false, "overwrite existing files")
	_ = fs.Parse(args)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "restore: -input is required")
		fs.Usage()
		os.Exit(2)
	}

	v := loadConfigOrExit(*configPath)

	dir := *target
	if dir == "" {
		dir = filepath.Dir(v.GetString("database.path"))
	}

	if err := backup.Restore(context.Background(), *input, dir, *force); err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("restored %s into %s\n", *input, dir)
}
