//go:build mage

// Package main contains Mage build targets for journal-checker developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "journal-checker"
	cmdPkg  = "./cmd/journal-checker"
)

// dataDirs are created for the default sqlite key-value store.
var dataDirs = []string{"data", ".secrets"}

var bin = filepath.Join(binDir, binName)

// Init creates the local data and secrets directories.
func Init() error {
	for _, dir := range dataDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Put supabase-url, supabase-anon-key, kv-url and revalidate-secret in .secrets/.")
	return nil
}

// Build compiles the CLI binary into bin/ with the version from git.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", bin, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", bin, version)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Serve builds and runs the HTTP API.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(bin, "serve")
}

// Revalidate builds and forces a refresh of the durable snapshot.
func Revalidate() error {
	mg.Deps(Build)
	return sh.RunV(bin, "revalidate")
}

// Stats prints the most searched journals.
func Stats() error {
	mg.Deps(Build)
	return sh.RunV(bin, "top", "--limit", "20")
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}
