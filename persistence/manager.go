package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	covertree "github.com/hupe1980/covertree"
	"github.com/hupe1980/covertree/blobstore"
	"github.com/hupe1980/covertree/codec"
	"github.com/hupe1980/covertree/pointstore"
)

var (
	// ErrManagerClosed is returned when operations are attempted on a
	// closed manager.
	ErrManagerClosed = errors.New("persistence manager is closed")

	// ErrNoTarget is returned when neither a directory nor a blob store
	// is configured.
	ErrNoTarget = errors.New("no snapshot directory or blob store configured")

	// ErrSnapshotNotFound is returned when a named snapshot exists in no
	// configured target.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Options configures the persistence manager.
type Options struct {
	// Dir is the local snapshot directory (optional).
	Dir string

	// Store mirrors snapshots to a blob store (optional).
	Store blobstore.Store

	// Compression applied to snapshot payloads.
	Compression Compression

	// WriteLimit throttles snapshot byte throughput. Nil disables
	// throttling.
	WriteLimit *rate.Limiter

	// AutoSnapshot saves a snapshot every n successful inserts when the
	// manager's observer is attached to a tree. Zero disables it.
	AutoSnapshot uint64

	// Logger for snapshot operations.
	Logger *covertree.Logger
}

// DefaultOptions holds the default manager configuration.
var DefaultOptions = Options{
	Compression: CompressionZSTD,
}

// WithDir sets the local snapshot directory.
func WithDir(dir string) func(o *Options) {
	return func(o *Options) { o.Dir = dir }
}

// WithStore mirrors snapshots to a blob store.
func WithStore(store blobstore.Store) func(o *Options) {
	return func(o *Options) { o.Store = store }
}

// WithCompression sets the snapshot compression algorithm.
func WithCompression(c Compression) func(o *Options) {
	return func(o *Options) { o.Compression = c }
}

// WithWriteLimit throttles snapshot writes to the given byte rate.
func WithWriteLimit(limiter *rate.Limiter) func(o *Options) {
	return func(o *Options) { o.WriteLimit = limiter }
}

// WithAutoSnapshot saves a snapshot every n inserts via SnapshotObserver.
func WithAutoSnapshot(n uint64) func(o *Options) {
	return func(o *Options) { o.AutoSnapshot = n }
}

// WithLogger sets the logger for snapshot operations.
func WithLogger(logger *covertree.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Manager saves and loads cover tree snapshots. Snapshots written to both
// a local directory and a blob store are mirrored concurrently; loads
// prefer the local copy and fall back to the store.
//
// The Manager is thread-safe.
type Manager struct {
	dir          string
	store        blobstore.Store
	compression  Compression
	limiter      *rate.Limiter
	autoSnapshot uint64
	logger       *covertree.Logger

	mu     sync.RWMutex
	closed bool
}

// NewManager creates a new persistence manager.
func NewManager(optFns ...func(o *Options)) (*Manager, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dir == "" && opts.Store == nil {
		return nil, ErrNoTarget
	}

	logger := opts.Logger
	if logger == nil {
		logger = covertree.NoopLogger()
	}

	return &Manager{
		dir:          opts.Dir,
		store:        opts.Store,
		compression:  opts.Compression,
		limiter:      opts.WriteLimit,
		autoSnapshot: opts.AutoSnapshot,
		logger:       logger,
	}, nil
}

// SnapshotObserver returns an insert observer that saves the tree under
// the given name every AutoSnapshot inserts. Attach it to the tree with
// covertree.WithInsertObserver. Save failures are logged, never surfaced
// to the inserting caller.
func (m *Manager) SnapshotObserver(tree *covertree.Tree, name string) func(ctx context.Context, count uint64) {
	return func(ctx context.Context, count uint64) {
		if m.autoSnapshot == 0 || count%m.autoSnapshot != 0 {
			return
		}
		if err := m.Save(ctx, tree, name); err != nil {
			m.logger.ErrorContext(ctx, "auto snapshot failed",
				"name", name,
				"points", count,
				"error", err,
			)
		}
	}
}

// Save encodes the tree and writes the framed snapshot to every
// configured target.
func (m *Manager) Save(ctx context.Context, tree *covertree.Tree, name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrManagerClosed
	}

	payload, err := codec.Encode(tree)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	framed, err := Frame(payload, m.compression)
	if err != nil {
		return fmt.Errorf("frame snapshot: %w", err)
	}

	if err := m.throttle(ctx, len(framed)); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if m.dir != "" {
		path := filepath.Join(m.dir, name)
		g.Go(func() error {
			if err := SaveToFile(path, framed); err != nil {
				return fmt.Errorf("save snapshot %q: %w", path, err)
			}
			return nil
		})
	}
	if m.store != nil {
		g.Go(func() error {
			if err := m.store.Put(ctx, name, framed); err != nil {
				return fmt.Errorf("put snapshot %q: %w", name, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.logger.LogSnapshotSave(ctx, name, len(framed))
	return nil
}

// Load reads the named snapshot, decodes it and rebuilds the tree over
// the given point store.
func (m *Manager) Load(ctx context.Context, points pointstore.Store, name string, optFns ...func(o *covertree.Options)) (*covertree.Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	framed, err := m.read(ctx, name)
	if err != nil {
		return nil, err
	}

	payload, err := Unframe(framed)
	if err != nil {
		return nil, fmt.Errorf("unframe snapshot %q: %w", name, err)
	}

	cfg, layers, err := codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", name, err)
	}

	tree, err := covertree.Rebuild(points, cfg, layers, optFns...)
	if err != nil {
		return nil, err
	}

	m.logger.LogSnapshotLoad(ctx, name, tree.Count())
	return tree, nil
}

func (m *Manager) read(ctx context.Context, name string) ([]byte, error) {
	if m.dir != "" {
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read snapshot %q: %w", name, err)
		}
	}

	if m.store != nil {
		data, err := blobstore.ReadAll(ctx, m.store, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("read snapshot %q: %w", name, err)
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
}

func (m *Manager) throttle(ctx context.Context, n int) error {
	if m.limiter == nil {
		return nil
	}

	// WaitN caps n at the limiter burst; large snapshots wait in chunks.
	burst := m.limiter.Burst()
	if burst <= 0 {
		return m.limiter.Wait(ctx)
	}
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := m.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Close marks the manager closed. Further operations fail with
// ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
