// Command fcodec generates binary codecs from a schema file.
//
//	fcodec generate -s geo.yaml -o internal/geo
//	fcodec inspect -s geo.yaml
//	fcodec profile -s geo.yaml --message Path --memprofile mem.prof
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rawbytedev/fcodec"
	"github.com/rawbytedev/fcodec/internal/config"
	"github.com/rawbytedev/fcodec/internal/logging"
)

// Version is set at link time with -ldflags "-X main.Version=...".
var Version = "dev"

// app carries what the subcommands share once flags are parsed.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	flush func()
}

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "fcodec:", err)
		os.Exit(1)
	}
}

// execute runs one command line. The logger is flushed after the command
// returns, including when it fails.
func execute(args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd(stdout, stderr)
	defer func() { a.flush() }()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{log: zap.NewNop(), flush: func() {}}
	root := &cobra.Command{
		Use:           "fcodec",
		Short:         "Schema-driven binary codec generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			log, flush, err := logging.New(cfg.Logging())
			if err != nil {
				return err
			}
			a.cfg, a.log, a.flush = cfg, log, flush
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.Flags(root.PersistentFlags())

	root.AddCommand(
		newGenerateCmd(a),
		newInspectCmd(a),
		newProfileCmd(a),
		newVersionCmd(),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root, a
}

func (a *app) open() (*fcodec.Project, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return fcodec.Open(a.cfg.Schema, fcodec.Options{
		LockFile: a.cfg.LockFile,
		Package:  a.cfg.Package,
		Header:   a.cfg.Header,
		Logger:   a.log,
	})
}

func newGenerateCmd(a *app) *cobra.Command {
	var noLock bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Go codecs and update the lock file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noLock {
				a.cfg.LockFile = ""
			}
			p, err := a.open()
			if err != nil {
				a.log.Error("schema rejected", zap.String("schema", a.cfg.Schema), zap.Error(err))
				return err
			}
			files, err := p.Generate(a.cfg.Output)
			if err != nil {
				return err
			}
			if !noLock {
				if err := p.SaveLock(); err != nil {
					return err
				}
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "Neither read nor write a lock file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fcodec version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fcodec", Version)
		},
	}
}
