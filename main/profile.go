package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rawbytedev/fcodec/pkg/dynamic"
	"github.com/rawbytedev/fcodec/pkg/frame"
	"github.com/rawbytedev/fcodec/pkg/wire"
)

type profileOptions struct {
	message    string
	iterations int
	framed     bool
	cpuProfile string
	memProfile string
}

// newProfileCmd round-trips the zero record of one message through the
// in-process codecs under the profiler.
func newProfileCmd(a *app) *cobra.Command {
	var o profileOptions
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Encode and decode one message repeatedly under pprof",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			cs, err := p.Codecs()
			if err != nil {
				return err
			}
			c, ok := cs.ByName(o.message)
			if !ok {
				return errors.Errorf("no message %q in schema %s", o.message, p.Schema.Namespace())
			}

			var m *frame.Manager
			if o.framed {
				if m, err = p.Manager(frame.DefaultConfig()); err != nil {
					return err
				}
				defer m.Close()
			}

			stop, err := startProfiles(o)
			if err != nil {
				return err
			}
			start := time.Now()
			if m != nil {
				err = roundTripFrames(m, c, o.iterations)
			} else {
				err = roundTrip(c, o.iterations)
			}
			elapsed := time.Since(start)
			if perr := stop(); err == nil {
				err = perr
			}
			if err != nil {
				return err
			}

			per := elapsed / time.Duration(o.iterations)
			a.log.Info("profile finished",
				zap.String("message", o.message),
				zap.Int("iterations", o.iterations),
				zap.Duration("elapsed", elapsed),
				zap.Duration("per_op", per),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d round trips in %s (%s/op)\n", o.message, o.iterations, elapsed, per)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&o.message, "message", "m", "", "Message to round-trip")
	fs.IntVarP(&o.iterations, "iterations", "n", 10000, "Number of round trips")
	fs.BoolVar(&o.framed, "frames", false, "Go through the frame manager")
	fs.StringVar(&o.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	fs.StringVar(&o.memProfile, "memprofile", "", "Write a heap profile to this file")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func roundTrip(c *dynamic.Codec, n int) error {
	r := c.Zero()
	size, err := c.Size(r)
	if err != nil {
		return err
	}
	b := wire.Wrap(make([]byte, size))
	for i := 0; i < n; i++ {
		if _, err := c.Encode(r, b, 0); err != nil {
			return err
		}
		if _, _, err := c.Decode(b, 0); err != nil {
			return err
		}
	}
	return nil
}

func roundTripFrames(m *frame.Manager, c *dynamic.Codec, n int) error {
	v := c.Bind(c.Zero())
	for i := 0; i < n; i++ {
		data, err := m.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := m.Unmarshal(data); err != nil {
			return err
		}
	}
	return nil
}

// startProfiles starts the requested profiles. The returned function stops
// the CPU profile and writes the heap profile.
func startProfiles(o profileOptions) (func() error, error) {
	if o.iterations <= 0 {
		return nil, errors.Errorf("iterations must be positive, got %d", o.iterations)
	}
	var cpu *os.File
	if o.cpuProfile != "" {
		f, err := os.Create(o.cpuProfile)
		if err != nil {
			return nil, errors.Wrap(err, "cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "cpu profile")
		}
		cpu = f
	}
	if o.memProfile != "" {
		runtime.MemProfileRate = 1
	}
	return func() error {
		if cpu != nil {
			pprof.StopCPUProfile()
			if err := cpu.Close(); err != nil {
				return err
			}
		}
		if o.memProfile == "" {
			return nil
		}
		f, err := os.Create(o.memProfile)
		if err != nil {
			return errors.Wrap(err, "heap profile")
		}
		defer f.Close()
		return errors.Wrap(pprof.WriteHeapProfile(f), "heap profile")
	}, nil
}
