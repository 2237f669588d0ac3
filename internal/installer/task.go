// Package installer drives the per-platform tool installation pipeline.
//
// A Task describes how to install one tool on one platform. The orchestrator
// runs a registry-ordered list of tasks sequentially, bracketing each in an
// install-<name> log step, and stops at the first failure.
package installer

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVerify is returned when a tool does not resolve after installation.
	ErrVerify = errors.New("verification failed")
	// ErrAllMethodsFailed is returned when every method of a fallback chain failed.
	ErrAllMethodsFailed = errors.New("all install methods failed")
	// ErrAssetNotFound is returned when a release asset URL answers 404.
	ErrAssetNotFound = errors.New("release asset not found")
	// ErrUnsupportedPlatform is returned for OS/arch pairs without release assets.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Task installs a single tool. Every phase must be idempotent.
type Task interface {
	// Name is the unique task id, e.g. "fzf-ubuntu".
	Name() string
	// Pre prepares the environment, e.g. the user bin directory or Homebrew.
	Pre(ctx context.Context) error
	// Run installs the tool unless it is already present.
	Run(ctx context.Context) error
	// Post verifies the result and performs follow-up configuration.
	Post(ctx context.Context) error
}

// Conditional is implemented by tasks that may decide not to run.
type Conditional interface {
	ShouldRun(ctx context.Context) (bool, error)
}

// Status is the lifecycle state of a task within one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSkipped   Status = "skipped"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether s counts towards a successful run.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	Task     string
	Status   Status
	Duration time.Duration
	Err      error
}

// StepName is the log step key of the task called name.
func StepName(name string) string {
	return "install-" + name
}
