// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"access-workflow/internal/workers/access"
	"access-workflow/pkg/registry"
)

const defaultPath = "configs/activity-registry.json"

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	generatePath := generateCmd.String("path", defaultPath, "Path to registry file")

	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", defaultPath, "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate":
		_ = generateCmd.Parse(os.Args[2:])
		if err := generate(*generatePath); err != nil {
			fmt.Printf("Error generating registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *generatePath)

	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		if err := validate(*validatePath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func generate(path string) error {
	reg := access.Registry()
	if err := registry.Validate(reg); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return registry.SaveRegistry(reg, path)
}

// validate checks the file on disk and that it still matches the workers.
func validate(path string) error {
	onDisk, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := registry.Validate(onDisk); err != nil {
		return err
	}

	want := access.Registry()
	if onDisk.Version != want.Version {
		return fmt.Errorf("registry version %s, workers are at %s", onDisk.Version, want.Version)
	}
	if drift := registry.Diff(want, onDisk); len(drift) > 0 {
		return fmt.Errorf("registry out of date for %v; run registry-updater generate", drift)
	}

	fmt.Printf("Found %d activities.\n", len(onDisk.Activities))
	return nil
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  generate  Write the registry from the worker definitions
  validate  Check the registry file is well formed and up to date
  help      Show this help message

Examples:
  registry-updater generate -path configs/activity-registry.json
  registry-updater validate -path configs/activity-registry.json`)
}
