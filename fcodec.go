// Package fcodec turns a schema file into binary codecs. A Project loads the
// YAML definition, resolves stable ids against the lock file next to it and
// then either generates Go source or compiles in-process codecs.
//
//	p, err := fcodec.Open("geo.yaml", fcodec.Options{})
//	files, err := p.Generate("internal/geo")
//	err = p.SaveLock()
package fcodec

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rawbytedev/fcodec/pkg/codegen"
	"github.com/rawbytedev/fcodec/pkg/dynamic"
	"github.com/rawbytedev/fcodec/pkg/frame"
	"github.com/rawbytedev/fcodec/pkg/schema"
	"github.com/rawbytedev/fcodec/pkg/schemafile"
)

// ErrNoLockFile is returned by SaveLock on a project opened without one.
var ErrNoLockFile = errors.New("fcodec: project has no lock file")

type Options struct {
	// LockFile is read before ids are resolved and written by SaveLock.
	// Empty disables the lock; ids then follow declaration order.
	LockFile string
	// Package overrides the schema namespace as the generated package name.
	Package string
	// Header is copied under the generated-code notice.
	Header string
	Logger *zap.Logger
}

// Project is one resolved schema.
type Project struct {
	File   *schemafile.File
	Schema *schema.Schema
	// Lock is the lock as it should be after this run.
	Lock *schemafile.LockFile

	opts Options
	log  *zap.Logger
}

// Open loads the schema file at path and resolves it against the lock file.
func Open(path string, opts Options) (*Project, error) {
	f, err := schemafile.Load(path)
	if err != nil {
		return nil, err
	}
	return build(f, opts)
}

// FromFile resolves an already parsed definition.
func FromFile(f *schemafile.File, opts Options) (*Project, error) {
	return build(f, opts)
}

func build(f *schemafile.File, opts Options) (*Project, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	var prev *schemafile.LockFile
	if opts.LockFile != "" {
		var err error
		if prev, err = schemafile.LoadLock(opts.LockFile); err != nil {
			return nil, err
		}
		if prev.Empty() {
			log.Info("no lock file yet, ids start fresh", zap.String("lock", opts.LockFile))
		}
	}
	s, lock, err := f.Build(prev)
	if err != nil {
		return nil, errors.Wrapf(err, "fcodec: schema %s", f.Namespace)
	}
	for _, m := range s.Messages() {
		log.Debug("resolved message",
			zap.String("message", m.Name()),
			zap.Uint16("template", m.TemplateID()),
			zap.Stringer("layout", m.Layout()),
			zap.Int("size", m.Size()),
		)
	}
	return &Project{File: f, Schema: s, Lock: lock, opts: opts, log: log}, nil
}

// Generate writes the Go codecs into dir and returns the written paths.
func (p *Project) Generate(dir string) ([]string, error) {
	source := p.File.Path
	if source == "" {
		source = "schema " + p.Schema.Namespace()
	}
	g, err := codegen.New(p.Schema, codegen.Options{
		Package:    p.opts.Package,
		SourceName: source,
		Header:     p.opts.Header,
	})
	if err != nil {
		return nil, err
	}
	written, err := g.WriteFiles(dir)
	if err != nil {
		return nil, err
	}
	p.log.Info("generated codecs",
		zap.String("package", g.Package()),
		zap.Strings("files", written),
		zap.Int("messages", len(p.Schema.Messages())),
	)
	return written, nil
}

// SaveLock writes the resolved lock back to the lock file.
func (p *Project) SaveLock() error {
	if p.opts.LockFile == "" {
		return ErrNoLockFile
	}
	if err := schemafile.SaveLock(p.opts.LockFile, p.Lock); err != nil {
		return err
	}
	p.log.Debug("saved lock file", zap.String("lock", p.opts.LockFile))
	return nil
}

// Codecs compiles in-process codecs for every message.
func (p *Project) Codecs() (*dynamic.Codecs, error) {
	return dynamic.Compile(p.Schema)
}

// Manager returns a frame manager with every message registered as a
// dynamic template, stamped with the schema version.
func (p *Project) Manager(cfg frame.Config, opts ...frame.Option) (*frame.Manager, error) {
	cs, err := p.Codecs()
	if err != nil {
		return nil, err
	}
	opts = append([]frame.Option{frame.WithLogger(p.log)}, opts...)
	m, err := frame.NewManager(p.Schema.Version(), cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.RegisterCodecs(cs); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}
