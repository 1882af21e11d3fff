// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

// Package main provides build targets for the symbols project using Mage.
//
// Usage:
//
//	mage build        Compile symstore to bin/
//	mage install      Install symstore to GOPATH/bin
//	mage clean        Remove build artifacts
//	mage lint         Run go vet and golangci-lint
//	mage test:all     Run every package test
//	mage test:race    Run every package test with the race detector
//	mage test:cover   Write a coverage profile to bin/coverage.out
//	mage test:smoke   Build symstore and drive it end to end
package main
