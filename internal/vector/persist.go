package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	rmerrors "github.com/Aman-CERP/resumatch/internal/errors"
)

// FormatVersion is the on-disk index format. Files written by another
// format version do not load and need a rebuild.
const FormatVersion = 1

const (
	fileMagic   = "resumatch-index"
	fileVersion = FormatVersion
)

// fileHeader is written at the start of both files of a pair.
type fileHeader struct {
	Magic      string
	Version    int
	Backend    Backend
	Metric     Metric
	Dimensions int
	Count      int
	Generation string
}

// idsFile is the full content of <name>.ids.
type idsFile struct {
	Header fileHeader
	IDs    []int64
}

func (x *Index) header() fileHeader {
	return fileHeader{
		Magic:      fileMagic,
		Version:    fileVersion,
		Backend:    x.cfg.Backend,
		Metric:     x.cfg.Metric,
		Dimensions: x.cfg.Dimensions,
		Count:      len(x.ids),
		Generation: x.generation,
	}
}

// Persist writes the vectors file and then the ids file, each through a
// temp file and rename. A reader that sees the new ids file therefore also
// sees the matching vectors file.
func (x *Index) Persist() error {
	if x.cfg.Dir == "" {
		return rmerrors.New(rmerrors.ErrCodeInvalidInput, "index has no directory to persist to", nil)
	}
	if err := os.MkdirAll(x.cfg.Dir, 0755); err != nil {
		return rmerrors.New(rmerrors.ErrCodeStorage, "failed to create index directory", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.generation = strconv.FormatInt(time.Now().UnixNano(), 36)
	hdr := x.header()

	err := writeAtomic(x.cfg.VectorsPath(), func(w io.Writer) error {
		if err := gob.NewEncoder(w).Encode(hdr); err != nil {
			return fmt.Errorf("encode header: %w", err)
		}
		return x.be.encode(w)
	})
	if err != nil {
		return rmerrors.New(rmerrors.ErrCodeStorage, "failed to write index vectors", err)
	}

	err = writeAtomic(x.cfg.IDsPath(), func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(idsFile{Header: hdr, IDs: x.ids})
	})
	if err != nil {
		return rmerrors.New(rmerrors.ErrCodeStorage, "failed to write index ids", err)
	}

	if info, err := os.Stat(x.cfg.IDsPath()); err == nil {
		x.loadedAt = info.ModTime()
	}
	return nil
}

// writeAtomic writes path through a synced temp file in the same directory.
func writeAtomic(path string, fn func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	bw := bufio.NewWriter(tmp)
	if err := fn(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Exists reports whether both files of the pair are present.
func Exists(cfg Config) bool {
	for _, p := range []string{cfg.VectorsPath(), cfg.IDsPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Remove deletes a persisted pair. The ids file goes first so a concurrent
// Load never finds ids without their vectors. Missing files are not an error.
func Remove(cfg Config) error {
	for _, p := range []string{cfg.IDsPath(), cfg.VectorsPath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return rmerrors.New(rmerrors.ErrCodeStorage, "failed to remove index file", err).
				WithDetail("path", p)
		}
	}
	return nil
}

func notFound(cfg Config, msg string, cause error) error {
	return rmerrors.New(rmerrors.ErrCodeIndexNotFound, msg, cause).
		WithDetail("index", cfg.Name).
		WithSuggestion("Run 'resumatch rebuild' to create the index")
}

// errTornPair marks a pair whose files come from different persists.
var errTornPair = errors.New("index files are from different generations")

// beforeVectorsRead runs between the two file reads of a load. Tests use it
// to persist a new generation mid-load.
var beforeVectorsRead func()

// Load reads a persisted pair. cfg supplies the location and the expected
// dimension and metric; the backend is taken from the files. Readers do not
// take the writer lock, so a persist landing between the two reads makes
// the generations differ; Load then reads the pair once more.
func Load(cfg Config) (*Index, error) {
	if cfg.Name == "" {
		cfg.Name = "index"
	}
	x, err := load(cfg)
	if errors.Is(err, errTornPair) {
		x, err = load(cfg)
	}
	return x, err
}

func load(cfg Config) (*Index, error) {
	idsF, err := os.Open(cfg.IDsPath())
	if err != nil {
		return nil, notFound(cfg, "index ids file is missing", err)
	}
	var ids idsFile
	err = gob.NewDecoder(bufio.NewReader(idsF)).Decode(&ids)
	_ = idsF.Close()
	if err != nil {
		return nil, notFound(cfg, "index ids file is unreadable", err)
	}
	info, err := os.Stat(cfg.IDsPath())
	if err != nil {
		return nil, notFound(cfg, "index ids file is missing", err)
	}

	if beforeVectorsRead != nil {
		beforeVectorsRead()
	}

	vecF, err := os.Open(cfg.VectorsPath())
	if err != nil {
		return nil, notFound(cfg, "index vectors file is missing", err)
	}
	defer func() { _ = vecF.Close() }()
	r := bufio.NewReader(vecF)

	var hdr fileHeader
	if err := gob.NewDecoder(r).Decode(&hdr); err != nil {
		return nil, notFound(cfg, "index vectors file is unreadable", err)
	}
	if err := checkHeaders(hdr, ids); err != nil {
		return nil, notFound(cfg, "index files are inconsistent", err)
	}

	if cfg.Dimensions > 0 && cfg.Dimensions != hdr.Dimensions {
		return nil, rmerrors.Newf(rmerrors.ErrCodeDimensionMismatch,
			"index has %d dimensions, embedder produces %d", hdr.Dimensions, cfg.Dimensions).
			WithSuggestion("Run 'resumatch rebuild' after changing the embedding model")
	}
	if cfg.Metric != "" && cfg.Metric != hdr.Metric {
		return nil, notFound(cfg,
			fmt.Sprintf("index was built with metric %s, configured metric is %s", hdr.Metric, cfg.Metric), nil)
	}

	cfg.Dimensions = hdr.Dimensions
	cfg.Metric = hdr.Metric
	cfg.Backend = hdr.Backend
	x, err := New(cfg)
	if err != nil {
		return nil, notFound(cfg, "index header is invalid", err)
	}
	if err := x.be.decode(r, hdr.Count); err != nil {
		return nil, notFound(cfg, "index vectors are truncated", err)
	}
	x.ids = ids.IDs
	x.generation = hdr.Generation
	x.loadedAt = info.ModTime()
	return x, nil
}

func checkHeaders(vec fileHeader, ids idsFile) error {
	switch {
	case vec.Magic != fileMagic || ids.Header.Magic != fileMagic:
		return fmt.Errorf("not an index file")
	case vec.Version != fileVersion || ids.Header.Version != fileVersion:
		return fmt.Errorf("unsupported index version %d/%d", vec.Version, ids.Header.Version)
	case vec.Generation != ids.Header.Generation:
		return fmt.Errorf("%w: %s vs %s", errTornPair, vec.Generation, ids.Header.Generation)
	case vec.Count != ids.Header.Count || len(ids.IDs) != vec.Count:
		return fmt.Errorf("count mismatch: vectors %d, ids %d", vec.Count, len(ids.IDs))
	case vec.Dimensions != ids.Header.Dimensions || vec.Metric != ids.Header.Metric:
		return fmt.Errorf("dimension or metric mismatch between files")
	}
	return nil
}

// Stale reports whether the ids file on disk was replaced after this index
// was loaded or persisted.
func (x *Index) Stale() bool {
	info, err := os.Stat(x.cfg.IDsPath())
	if err != nil {
		return false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return info.ModTime().After(x.loadedAt)
}

// Lock takes the cross-process writer lock for this index. Callers that
// mutate and persist hold it for the whole sequence and call the returned
// release func when done.
func (x *Index) Lock(ctx context.Context) (func(), error) {
	return LockDir(ctx, x.cfg)
}

// LockDir takes the writer lock for the index described by cfg, without
// needing a loaded Index.
func LockDir(ctx context.Context, cfg Config) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0755); err != nil {
		return nil, rmerrors.New(rmerrors.ErrCodeStorage, "failed to create lock directory", err)
	}
	fl := flock.New(cfg.LockPath())
	ok, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !ok {
		return nil, rmerrors.New(rmerrors.ErrCodeIndexLocked, "index is locked by another writer", err).
			WithDetail("lock", cfg.LockPath())
	}
	return func() { _ = fl.Unlock() }, nil
}
