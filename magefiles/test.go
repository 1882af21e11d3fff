// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets.
type Test mg.Namespace

// All runs every package test.
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Race runs every package test with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile to bin/coverage.out and prints the
// per-function summary.
func (Test) Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV(binGo, "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func", profile)
}

// smokeSteps is the command sequence Smoke runs against a scratch store.
var smokeSteps = [][]string{
	{"init"},
	{"create", "Ξ.C.ACME", "--what", "Make widgets", "--intent", "Deliver widgets to every customer"},
	{"create", "Ξ.A.PLANT", "--what", "Widget plant"},
	{"link", "create", "Ξ.C.ACME", "OWNS", "Ξ.A.PLANT", "--weight", "0.9", "--bidirectional"},
	{"update", "Ξ.C.ACME", "--why", "Customer commitment", "--description", "Add purpose"},
	{"search", "widgets"},
	{"neighborhood", "Ξ.C.ACME", "--depth", "2"},
	{"shortest", "Ξ.A.PLANT", "Ξ.C.ACME"},
	{"stats"},
	{"check"},
	{"export", "snapshot"},
	{"audit", "recent", "--limit", "5"},
}

// Smoke builds symstore and drives it end to end in a scratch directory.
func (Test) Smoke() error {
	mg.Deps(Build)

	bin, err := filepath.Abs(filepath.Join(binaryDir, binaryName))
	if err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "symstore-smoke-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	global := []string{
		"--config-dir", filepath.Join(dir, "config"),
		"--data-dir", filepath.Join(dir, "data"),
	}
	for _, step := range smokeSteps {
		args := append(append([]string{}, global...), step...)
		if step[0] == "export" {
			args[len(args)-1] = filepath.Join(dir, step[1])
		}
		if err := sh.RunV(bin, args...); err != nil {
			return fmt.Errorf("symstore %s: %w", strings.Join(step, " "), err)
		}
	}
	return nil
}
