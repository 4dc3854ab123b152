package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"sow-and-grow/server/internal/sim"
	"sow-and-grow/server/internal/telemetry"
	"sow-and-grow/server/internal/world"
	"sow-and-grow/server/logging"
	persistlog "sow-and-grow/server/logging/persistence"
)

// DocumentVersion identifies the snapshot file layout.
const DocumentVersion = 1

// EntityRecord is the persisted form of a growth entity. The grid key is
// re-derived from the position on restore, so the record only carries what the
// entity needs to resume growing exactly where it left off.
type EntityRecord struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	GrowthTimer float64 `json:"growthTimer"`
	State       string  `json:"state"`
}

// MatureRecord is the persisted form of a mature object.
type MatureRecord struct {
	ID   string  `json:"id"`
	Kind string  `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// MatureObjectOf converts a persisted record back into its world form.
func MatureObjectOf(record MatureRecord) world.MatureObject {
	return world.MatureObject{
		ID:   record.ID,
		Kind: record.Kind,
		X:    record.X,
		Y:    record.Y,
	}
}

// Document is the on-disk snapshot layout.
type Document struct {
	Version       int            `json:"version"`
	SavedAt       time.Time      `json:"savedAt"`
	Tick          uint64         `json:"tick"`
	Entities      []EntityRecord `json:"entities"`
	MatureObjects []MatureRecord `json:"matureObjects"`
	// Skipped counts records dropped during the last Load. Not serialized.
	Skipped int `json:"-"`
}

// rawDocument defers entity decoding so a single corrupt record can be
// skipped without losing the rest of the file.
type rawDocument struct {
	Version       int               `json:"version"`
	SavedAt       time.Time         `json:"savedAt"`
	Tick          uint64            `json:"tick"`
	Entities      []json.RawMessage `json:"entities"`
	MatureObjects []json.RawMessage `json:"matureObjects"`
}

// Store reads and writes world snapshots at a fixed path. Writes go through a
// temp file in the same directory followed by a rename, so a crash mid-save
// never clobbers the previous snapshot.
type Store struct {
	path      string
	logger    telemetry.Logger
	publisher logging.Publisher
}

// Config carries the optional observability hooks for a Store.
type Config struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

// NewStore builds a snapshot store rooted at path.
func NewStore(path string, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	return &Store{path: path, logger: logger, publisher: cfg.Publisher}
}

// Path reports the snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the snapshot and atomically replaces the file on disk.
func (s *Store) Save(ctx context.Context, snap sim.Snapshot, now time.Time) error {
	doc := Document{
		Version:       DocumentVersion,
		SavedAt:       now.UTC(),
		Tick:          snap.Tick,
		Entities:      make([]EntityRecord, 0, len(snap.Entities)),
		MatureObjects: make([]MatureRecord, 0, len(snap.MatureObjects)),
	}
	for _, entity := range snap.Entities {
		doc.Entities = append(doc.Entities, EntityRecord{
			ID:          entity.ID,
			Kind:        entity.Kind,
			X:           entity.X,
			Y:           entity.Y,
			GrowthTimer: entity.GrowthTimer,
			State:       entity.State,
		})
	}
	for _, obj := range snap.MatureObjects {
		doc.MatureObjects = append(doc.MatureObjects, MatureRecord{
			ID:   obj.ID,
			Kind: obj.Kind,
			X:    obj.X,
			Y:    obj.Y,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	persistlog.SnapshotSaved(ctx, s.publisher, snap.Tick, persistlog.SnapshotPayload{
		Path:     s.path,
		Entities: len(doc.Entities),
	})
	return nil
}

// Load reads the snapshot from disk. A missing file is not an error; the
// returned document is nil. Malformed individual records are skipped and
// reported rather than failing the whole load, so one corrupt entry cannot
// hold the world hostage.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if raw.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", raw.Version)
	}

	doc := &Document{
		Version:       raw.Version,
		SavedAt:       raw.SavedAt,
		Tick:          raw.Tick,
		Entities:      make([]EntityRecord, 0, len(raw.Entities)),
		MatureObjects: make([]MatureRecord, 0, len(raw.MatureObjects)),
	}
	for i, rawRecord := range raw.Entities {
		var record EntityRecord
		if err := json.Unmarshal(rawRecord, &record); err != nil {
			doc.Skipped++
			s.logger.Printf("skipping malformed entity record %d: %v", i, err)
			persistlog.RecordSkipped(ctx, s.publisher, raw.Tick, persistlog.RecordSkippedPayload{
				Key:    fmt.Sprintf("entities[%d]", i),
				Reason: err.Error(),
			})
			continue
		}
		if record.Kind == "" {
			doc.Skipped++
			s.logger.Printf("skipping entity record %d: missing kind", i)
			persistlog.RecordSkipped(ctx, s.publisher, raw.Tick, persistlog.RecordSkippedPayload{
				Key:    record.ID,
				Reason: "missing kind",
			})
			continue
		}
		doc.Entities = append(doc.Entities, record)
	}
	for i, rawRecord := range raw.MatureObjects {
		var record MatureRecord
		if err := json.Unmarshal(rawRecord, &record); err != nil {
			doc.Skipped++
			s.logger.Printf("skipping malformed mature record %d: %v", i, err)
			persistlog.RecordSkipped(ctx, s.publisher, raw.Tick, persistlog.RecordSkippedPayload{
				Key:    fmt.Sprintf("matureObjects[%d]", i),
				Reason: err.Error(),
			})
			continue
		}
		if record.ID == "" {
			doc.Skipped++
			s.logger.Printf("skipping mature record %d: missing id", i)
			persistlog.RecordSkipped(ctx, s.publisher, raw.Tick, persistlog.RecordSkippedPayload{
				Key:    fmt.Sprintf("matureObjects[%d]", i),
				Reason: "missing id",
			})
			continue
		}
		doc.MatureObjects = append(doc.MatureObjects, record)
	}

	persistlog.SnapshotLoaded(ctx, s.publisher, raw.Tick, persistlog.SnapshotPayload{
		Path:     s.path,
		Entities: len(doc.Entities),
		Skipped:  doc.Skipped,
	})
	return doc, nil
}
