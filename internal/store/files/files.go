// Package files implements the record store as a single YAML document
// replaced atomically (temp file + rename) on every write, with the raw
// upstream payload kept next to it.
package files

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/agentstation/utc"
	"github.com/goccy/go-yaml"

	"github.com/agentstation/ordersync/pkg/constants"
	"github.com/agentstation/ordersync/pkg/errors"
	"github.com/agentstation/ordersync/pkg/logging"
	"github.com/agentstation/ordersync/pkg/orders"
	"github.com/agentstation/ordersync/pkg/store"
)

// File names inside the store directory.
const (
	RecordsFile = "records.yaml"
	PayloadFile = "payload.json"
)

// Store is the file-backed record store. It is safe for concurrent use
// within one process; separate processes must not share a directory.
type Store struct {
	mu           sync.Mutex
	dir          string
	archiveLimit int
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.PayloadCache    = (*Store)(nil)
	_ store.WorkflowUpdater = (*Store)(nil)
	_ store.Archiver        = (*Store)(nil)
)

// Option is a function that configures a files Store
type Option func(*Store) error

// WithArchiveLimit caps how many archived rows are kept. Zero disables
// archiving.
func WithArchiveLimit(n int) Option {
	return func(s *Store) error {
		if n < 0 {
			return errors.NewValidationError("archive_limit", n, "must not be negative")
		}
		s.archiveLimit = n
		return nil
	}
}

// New opens (creating if needed) a store in dir.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.NewConfigError("files store", "path is required", nil)
	}
	s := &Store{
		dir:          filepath.Clean(dir),
		archiveLimit: constants.ArchiveRowsLimit,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapResource("create", "files store", dir, err)
		}
	}
	if err := os.MkdirAll(s.dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("mkdir", s.dir, err)
	}
	return s, nil
}

// Path returns the store directory.
func (s *Store) Path() string { return s.dir }

// Load implements store.Store.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	snap, _, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	snap.Records = store.Sorted(snap.Records)
	return snap, nil
}

// Replace implements store.Store. The whole document is rewritten only
// when the plan touches at least one row.
func (s *Store) Replace(ctx context.Context, rows []*orders.Record) (*store.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	snap, archive, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}

	plan, err := store.NewPlan(snap.Records, rows, snap.HighWater)
	if err != nil {
		return nil, err
	}
	if plan.Empty() && plan.HighWater == snap.HighWater {
		return plan.Result(0), nil
	}

	next := make(map[int64]*orders.Record, len(snap.Records))
	for _, r := range snap.Records {
		next[r.ID] = r
	}
	for _, r := range plan.Delete {
		delete(next, r.ID)
	}
	for _, r := range plan.Update {
		next[r.ID] = r
	}
	for _, r := range plan.Insert {
		next[r.ID] = r
	}

	archived := 0
	if s.archiveLimit > 0 {
		now := utc.Now()
		for _, r := range plan.Delete {
			archive = append(archive, store.ArchivedRecord{Record: r, ArchivedAt: now})
			archived++
		}
		if over := len(archive) - s.archiveLimit; over > 0 {
			archive = archive[over:]
		}
	}

	active := make([]*orders.Record, 0, len(next))
	for _, r := range next {
		active = append(active, r)
	}
	if err := s.write(ctx, plan.HighWater, store.Sorted(active), archive); err != nil {
		return nil, err
	}
	return plan.Result(archived), nil
}

// Get implements store.WorkflowUpdater.
func (s *Store) Get(ctx context.Context, id int64) (*orders.Record, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range snap.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.NewNotFoundError("record", strconv.FormatInt(id, 10))
}

// UpdateWorkflow implements store.WorkflowUpdater.
func (s *Store) UpdateWorkflow(ctx context.Context, id, expectedVersion int64, fn store.WorkflowFunc) (*orders.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	for i, d := range doc.Records {
		if d.ID != id {
			continue
		}
		r, err := d.record()
		if err != nil {
			return nil, err
		}
		next, err := store.ApplyWorkflow(r, expectedVersion, fn)
		if err != nil {
			return nil, err
		}
		doc.Records[i] = toDTO(next)
		if err := s.writeDocument(doc); err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, errors.NewNotFoundError("record", strconv.FormatInt(id, 10))
}

// Archived implements store.Archiver. Newest rows come first.
func (s *Store) Archived(ctx context.Context, limit int) ([]store.ArchivedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	_, archive, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}
	out := make([]store.ArchivedRecord, 0, len(archive))
	for i := len(archive) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, archive[i])
	}
	return out, nil
}

// PutPayload implements store.PayloadCache.
func (s *Store) PutPayload(_ context.Context, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(filepath.Join(s.dir, PayloadFile), body)
}

// LatestPayload implements store.PayloadCache.
func (s *Store) LatestPayload(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, PayloadFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("payload", path)
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

func (s *Store) read(ctx context.Context) (*document, error) {
	path := filepath.Join(s.dir, RecordsFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logging.FromContext(ctx).Debug().Str("path", path).Msg("No records file yet, starting empty")
		return &document{Version: documentVersion}, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	doc := &document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if doc.Version > documentVersion {
		return nil, &errors.ParseError{
			Format:  "yaml",
			File:    path,
			Message: "unsupported document version " + strconv.Itoa(doc.Version),
		}
	}
	return doc, nil
}

func (s *Store) write(ctx context.Context, highWater int64, rows []*orders.Record, archive []store.ArchivedRecord) error {
	doc := &document{
		Version:   documentVersion,
		HighWater: highWater,
		Records:   make([]recordDTO, 0, len(rows)),
	}
	for _, r := range rows {
		doc.Records = append(doc.Records, toDTO(r))
	}
	for _, a := range archive {
		doc.Archive = append(doc.Archive, archiveDTO{
			ArchivedAt: formatTime(&a.ArchivedAt),
			Record:     toDTO(a.Record),
		})
	}
	if err := s.writeDocument(doc); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug().
		Str("path", s.dir).
		Int("records", len(doc.Records)).
		Int("archived", len(doc.Archive)).
		Msg("Wrote records file")
	return nil
}

func (s *Store) writeDocument(doc *document) error {
	path := filepath.Join(s.dir, RecordsFile)
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file in the target directory and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		return errors.WrapIO("chmod", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.WrapIO("rename", path, err)
	}
	return nil
}
