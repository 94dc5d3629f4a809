package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/suparena/familystore"
	"github.com/suparena/familystore/config"
	_ "github.com/suparena/familystore/datastore/cosmos"
	_ "github.com/suparena/familystore/datastore/ddb"
	_ "github.com/suparena/familystore/datastore/mock"
)

var (
	versionFlag = flag.Bool("version", false, "Show version information")
	vFlag       = flag.Bool("v", false, "Show version information (short)")
)

func main() {
	flag.Parse()

	if *versionFlag || *vFlag {
		info := familystore.GetVersionInfo()
		fmt.Printf("familydemo version %s\n", info.Version)
		fmt.Printf("Git commit: %s\n", info.GitCommit)
		fmt.Printf("Build date: %s\n", info.BuildDate)
		fmt.Printf("Go version: %s\n", info.GoVersion)
		os.Exit(0)
	}

	demo(context.Background(), os.Stdin, os.Stdout, os.Stderr)
}

// demo runs the workflow, reports a failure, then waits for one byte of input.
func demo(ctx context.Context, in io.Reader, out, logOut io.Writer) {
	if err := run(ctx, out, logOut); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}

	fmt.Fprintln(out, "Press any key to Exit")
	var key [1]byte
	_, _ = io.ReadFull(in, key[:])
}

func run(ctx context.Context, out, logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.RFC3339}).
		Level(cfg.LogLevel).
		With().Timestamp().Logger()

	fmt.Fprintf(out, "Beginning Operations - %s\n", cfg.Backend)
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner := familystore.NewRunner(cfg, familystore.WithOutput(out), familystore.WithLogger(logger))
	session, err := runner.Run(ctx)
	logger.Debug().Stringer("state", session.State()).Msg("Workflow finished")
	return err
}
