package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/akowalczyk/ragsync"
	"github.com/akowalczyk/ragsync/fs"
	"github.com/akowalczyk/ragsync/reconcile"
	"github.com/akowalczyk/ragsync/scan"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Config     *ragsync.Config
	Logger     *slog.Logger
	States     *fs.StateStore
	Artifacts  *fs.ArtifactWriter
	Scanner    *scan.Scanner
	Reconciler *reconcile.Reconciler
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	ConfigPath string `short:"c" name:"config" default:"config.yaml" help:"Path to the configuration file"`

	Scan    ScanCmd    `cmd:"" help:"Scan sources, convert changed files, and write the retrieval manifest"`
	Changes ChangesCmd `cmd:"" help:"Show what a scan would add, modify, or remove"`
	Sync    SyncCmd    `cmd:"" help:"Reconcile the retrieval index against the manifest"`
	Run     RunCmd     `cmd:"" help:"Scan and then reconcile in one pass"`
	Clear   ClearCmd   `cmd:"" help:"Remove pipeline state"`
}

// ScanCmd is the "scan" subcommand.
type ScanCmd struct {
	DryRun bool `help:"Convert nothing; only report what would change"`
}

// ChangesCmd is the "changes" subcommand.
type ChangesCmd struct{}

// SyncCmd is the "sync" subcommand.
type SyncCmd struct {
	Manifest string `help:"Override the retrieval manifest path"`
	DryRun   bool   `help:"Plan only; apply no index changes"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Manifest string `help:"Override the retrieval manifest path for the sync stage"`
	DryRun   bool   `help:"Plan only; apply no index changes"`
}

// ClearCmd is the "clear" subcommand.
type ClearCmd struct {
	All bool `help:"Also remove generated outputs and manifests"`
}
