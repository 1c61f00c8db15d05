package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/procnet/internal/canvas"
	"github.com/roach88/procnet/internal/compiler"
	"github.com/roach88/procnet/internal/engine"
	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/export"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/processors"
	"github.com/roach88/procnet/internal/serial"
	"github.com/roach88/procnet/internal/store"
)

// LoadError reports a network file that could not be read or compiled.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadErrorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ErrCodeLoadFailed
}

// LoadNetwork reads a network document. Directories and .cue files are
// compiled with CUE; anything else is decoded as YAML or JSON by
// extension.
func LoadNetwork(path string) (*serial.NetworkDoc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "network not found", Err: err}
	}

	var doc *serial.NetworkDoc
	switch {
	case info.IsDir():
		doc, err = compiler.CompileDir(path)
	case strings.EqualFold(filepath.Ext(path), ".cue"):
		doc, err = compiler.CompileFile(path)
	default:
		doc, err = serial.ReadFile(path)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Message: "cannot load network", Err: err}
	}
	return doc, nil
}

// docFromSnapshot turns a stored snapshot back into a document.
func docFromSnapshot(snap ir.Snapshot) (*serial.NetworkDoc, error) {
	data, err := ir.MarshalValue(snap.Doc)
	if err != nil {
		return nil, err
	}
	return serial.Decode(bytes.NewReader(data), serial.JSON)
}

// session is a built network with its engine and, optionally, a store.
type session struct {
	doc      *serial.NetworkDoc
	registry *processor.Registry
	nc       *env.Context
	canvases *canvas.Registry
	net      *network.Network
	store    *store.Store
	engine   *engine.Engine
	logger   *slog.Logger
}

type sessionConfig struct {
	// source is the network path; its directory serves resources when the
	// config names none.
	source string
	db     string
	// snapshot names the stored document in the log.
	snapshot string
	// noStore ignores db and the configured store path.
	noStore bool
}

// openSession builds doc and attaches an engine. With a database the built
// network is stored as a snapshot and the engine clock resumes after the
// last logged seq.
func (o *RootOptions) openSession(ctx context.Context, doc *serial.NetworkDoc, sc sessionConfig) (*session, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg, err := processors.NewRegistry()
	if err != nil {
		return nil, err
	}

	canvases := canvas.NewRegistry()
	nc := env.New(
		env.WithWriters(export.NewFactory()),
		env.WithResources(o.resources(sc.source)),
		env.WithCanvases(canvases),
		env.WithLogger(logger),
	)
	net, err := serial.Build(doc, reg, nc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build network", err)
	}

	s := &session{doc: doc, registry: reg, nc: nc, canvases: canvases, net: net, logger: logger}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxEventsPerPass(o.Config.Engine.MaxEventsPerPass),
	}
	if o.Config.Engine.Workers > 1 {
		engOpts = append(engOpts, engine.WithParallel(o.Config.Engine.Workers))
	}
	if o.Tokens != nil {
		engOpts = append(engOpts, engine.WithTokens(o.Tokens))
	}

	db := sc.db
	if db == "" {
		db = o.Config.Store.Path
	}
	if db != "" && !sc.noStore {
		st, err := store.Open(db)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		s.store = st
		last, err := st.LastSeq(ctx)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to read database", err)
		}
		if err := writeSnapshot(ctx, st, serial.Snapshot(net), sc.snapshot); err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to store network snapshot", err)
		}
		engOpts = append(engOpts, engine.WithStore(st), engine.WithClock(engine.NewClockAt(last)))
		logger.Debug("store ready", "path", db, "last_seq", last)
	}

	s.engine = engine.New(net, engOpts...)
	return s, nil
}

func writeSnapshot(ctx context.Context, st *store.Store, doc *serial.NetworkDoc, name string) error {
	v, err := doc.Value()
	if err != nil {
		return err
	}
	hash, err := doc.Hash()
	if err != nil {
		return err
	}
	return st.WriteSnapshot(ctx, ir.Snapshot{Hash: hash, Name: name, Doc: v})
}

func (o *RootOptions) resources(source string) env.ResourceResolver {
	dir := o.Config.Resources.Dir
	if dir == "" && source != "" {
		dir = source
		if info, err := os.Stat(source); err == nil && !info.IsDir() {
			dir = filepath.Dir(source)
		}
	}
	if dir == "" {
		return env.MapResolver{}
	}
	return &env.FSResolver{FS: os.DirFS(dir)}
}

func (s *session) Close() {
	s.engine.Close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("error closing database", "error", err)
		}
	}
}

// outport reads the data of an outport by "processor.port" path.
func (s *session) outport(path string) (any, error) {
	id, name, ok := strings.Cut(path, ".")
	if !ok {
		return nil, fmt.Errorf("%q: want processor.outport", path)
	}
	p := s.net.Processor(id)
	if p == nil {
		return nil, fmt.Errorf("no processor %s", id)
	}
	out := p.Core().Outport(name)
	if out == nil {
		return nil, fmt.Errorf("no outport %s", path)
	}
	return out.Data()
}

// requireFile fails with ExitCommandError when path is not an existing
// file. store.Open would otherwise create an empty database.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	if info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s is a directory", path))
	}
	return nil
}
