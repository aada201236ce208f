package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/HerbHall/chronicle/internal/doctor"
)

// runDoctor implements `chronicle doctor`. Exit code 0 when every check
// passes, 1 otherwise.
func runDoctor(args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	_ = fs.Parse(args)

	results, ok := doctor.Run(context.Background(), *configPath)

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-4s  %-10s %s (%s)\n", status, r.Name, r.Detail, r.Elapsed.Round(time.Millisecond))
	}

	if !ok {
		os.Exit(1)
	}
}
