package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/boshu2/autoforge/internal/wfcontext"
)

// ErrCheckpointNotFound is returned by Load when id has no stored record.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Record is the on-disk shape of one checkpoint: "{id, created_at,
// context}".
type Record struct {
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"`
	Context   map[string]any `json:"context"`
}

// Summary is the lightweight listing shape returned by Manager.List.
type Summary struct {
	ID        string
	CreatedAt time.Time
	TaskSlug  string
	Phase     string
}

// Manager creates, loads, lists and expires checkpoints built on a Store.
type Manager struct {
	store *Store
}

func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// checkpointID derives the stable id SHA-256(taskSlug + "⋯" + startedAt)
// truncated to 8 hex chars and prefixed "checkpoint_".
// Repeated calls for the same (taskSlug, startedAt) always agree, which is
// what makes repeated Create calls overwrite in place rather than rotate.
func checkpointID(taskSlug, startedAt string) string {
	sum := sha256.Sum256([]byte(taskSlug + "⋯" + startedAt))
	return "checkpoint_" + hex.EncodeToString(sum[:])[:8]
}

// Create persists ctx, generating its checkpoint id on first use and
// reusing it thereafter so repeated Create calls for the same context
// overwrite the same record.
func (m *Manager) Create(ctx *wfcontext.Context) (string, error) {
	if ctx.CheckpointID == "" {
		ctx.CheckpointID = checkpointID(ctx.TaskSlug, ctx.StartedAt.Format(time.RFC3339Nano))
	}

	asMap, err := ctx.ToDict()
	if err != nil {
		return "", fmt.Errorf("serialize context: %w", err)
	}

	record := Record{
		ID:        ctx.CheckpointID,
		CreatedAt: time.Now().Format(time.RFC3339Nano),
		Context:   asMap,
	}
	if err := m.store.Save(ctx.CheckpointID, record); err != nil {
		return "", err
	}
	return ctx.CheckpointID, nil
}

// Load reads the checkpoint identified by id and reconstructs its Context,
// setting ResumedFromCheckpoint. Unlike Store.Load, a missing or corrupt
// checkpoint is an error here: a resume with no usable snapshot must not
// silently start over.
func (m *Manager) Load(id string) (*wfcontext.Context, error) {
	var record Record
	if !m.store.Load(id, &record) {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}

	ctx, err := wfcontext.FromDict(record.Context)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", id, err)
	}
	ctx.ResumedFromCheckpoint = true
	return ctx, nil
}

// List returns every stored checkpoint's summary, newest first.
func (m *Manager) List() ([]Summary, error) {
	keys, err := m.store.ListKeys("checkpoint_")
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(keys))
	for _, key := range keys {
		var record Record
		if !m.store.Load(key, &record) {
			continue // corrupt checkpoint: skip, don't fail the listing
		}
		createdAt, _ := time.Parse(time.RFC3339, record.CreatedAt)
		summaries = append(summaries, Summary{
			ID:        record.ID,
			CreatedAt: createdAt,
			TaskSlug:  stringOr(record.Context["task_name"], ""),
			Phase:     stringOr(record.Context["current_phase"], ""),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// CleanupOld deletes every checkpoint older than maxAge.
func (m *Manager) CleanupOld(maxAge time.Duration) (int, error) {
	summaries, err := m.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, s := range summaries {
		if s.CreatedAt.Before(cutoff) {
			if err := m.store.Delete(s.ID); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}
