// Package history implements the History & Checkpoint component: an
// append-only undo/redo change log, and name-indexed immutable checkpoint
// snapshots restored by partial overlay — two logically independent
// structures sharing one persisted snapshot file.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/coderkernel/pkg/id"
	"github.com/kadirpekel/coderkernel/pkg/kernelerr"
)

// ChangeType is the closed enumeration of file mutations a Change records.
type ChangeType string

const (
	Create ChangeType = "create"
	Modify ChangeType = "modify"
	Delete ChangeType = "delete"
)

// Change is one recorded file mutation. Create requires Before == "";
// Delete requires After == ""; Modify requires both non-empty.
type Change struct {
	ID          string
	Timestamp   time.Time
	FilePath    string
	Before      string
	After       string
	Description string
	ChangeType  ChangeType
}

// validate enforces the Change invariants from the entity definition.
func (c Change) validate() error {
	const op = "history.Change.validate"
	if c.FilePath == "" {
		return kernelerr.New(op, kernelerr.ValidationError)
	}
	switch c.ChangeType {
	case Create:
		if c.Before != "" {
			return kernelerr.New(op, kernelerr.ValidationError)
		}
	case Delete:
		if c.After != "" {
			return kernelerr.New(op, kernelerr.ValidationError)
		}
	case Modify:
		if c.Before == "" || c.After == "" {
			return kernelerr.New(op, kernelerr.ValidationError)
		}
	default:
		return kernelerr.New(op, kernelerr.ValidationError)
	}
	return nil
}

// Checkpoint is an immutable named snapshot of file states at a point in
// time. Undo/redo never reads or writes a checkpoint's captured states.
type Checkpoint struct {
	ID          string
	Name        string
	Description string
	FileStates  map[string]string
	CreatedAt   time.Time
}

// Snapshot is the full persisted state: the append-only change log plus
// cursor, and the name-indexed checkpoint set.
type Snapshot struct {
	Changes     []Change
	Cursor      int
	Checkpoints map[string]Checkpoint
	// CurrentState is the file-state view the History maintains as changes
	// are recorded/undone/redone; it is what rollback's partial overlay is
	// applied against.
	CurrentState map[string]string
}

// History is the append-only undo/redo log over a live file-state view.
type History struct {
	changes      []Change
	cursor       int
	currentState map[string]string
	checkpoints  map[string]Checkpoint
}

// New returns an empty History with no recorded changes or checkpoints.
func New() *History {
	return &History{
		currentState: make(map[string]string),
		checkpoints:  make(map[string]Checkpoint),
	}
}

// CanUndo reports cursor > 0.
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports cursor < len(changes).
func (h *History) CanRedo() bool { return h.cursor < len(h.changes) }

// RecordChange validates and appends c, discarding any changes beyond the
// current cursor (classic undo-history semantics), then advances the
// cursor to the new length and applies c to the live state view.
func (h *History) RecordChange(c Change) error {
	if c.ID == "" {
		c.ID = id.New()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}
	if err := c.validate(); err != nil {
		return err
	}

	h.changes = h.changes[:h.cursor]
	h.changes = append(h.changes, c)
	h.cursor = len(h.changes)
	h.applyForward(c)

	slog.Debug("recorded change",
		"change_id", c.ID,
		"file_path", c.FilePath,
		"change_type", c.ChangeType,
		"cursor", h.cursor)
	return nil
}

func (h *History) applyForward(c Change) {
	switch c.ChangeType {
	case Delete:
		delete(h.currentState, c.FilePath)
	default:
		h.currentState[c.FilePath] = c.After
	}
}

func (h *History) applyBackward(c Change) {
	switch c.ChangeType {
	case Create:
		delete(h.currentState, c.FilePath)
	default:
		h.currentState[c.FilePath] = c.Before
	}
}

// Undo returns the change at cursor-1 and decrements the cursor, rolling
// the live state view back to that change's Before value.
func (h *History) Undo() (Change, error) {
	const op = "history.Undo"
	if !h.CanUndo() {
		return Change{}, kernelerr.New(op, kernelerr.ConstraintUnsatisfied)
	}
	c := h.changes[h.cursor-1]
	h.applyBackward(c)
	h.cursor--
	slog.Debug("undo", "change_id", c.ID, "cursor", h.cursor)
	return c, nil
}

// Redo returns the change at cursor and increments the cursor, reapplying
// that change's After value to the live state view.
func (h *History) Redo() (Change, error) {
	const op = "history.Redo"
	if !h.CanRedo() {
		return Change{}, kernelerr.New(op, kernelerr.ConstraintUnsatisfied)
	}
	c := h.changes[h.cursor]
	h.applyForward(c)
	h.cursor++
	slog.Debug("redo", "change_id", c.ID, "cursor", h.cursor)
	return c, nil
}

// CurrentState returns a copy of the live file-state view.
func (h *History) CurrentState() map[string]string {
	out := make(map[string]string, len(h.currentState))
	for k, v := range h.currentState {
		out[k] = v
	}
	return out
}

// CreateCheckpoint copies the current live state into a new immutable
// Checkpoint, independent of the undo/redo cursor.
func (h *History) CreateCheckpoint(name, description string) Checkpoint {
	states := make(map[string]string, len(h.currentState))
	for k, v := range h.currentState {
		states[k] = v
	}
	cp := Checkpoint{
		ID:          id.New(),
		Name:        name,
		Description: description,
		FileStates:  states,
		CreatedAt:   time.Now(),
	}
	h.checkpoints[cp.ID] = cp
	slog.Debug("created checkpoint", "checkpoint_id", cp.ID, "name", cp.Name, "files", len(cp.FileStates))
	return cp
}

// GetCheckpoint retrieves a checkpoint by id.
func (h *History) GetCheckpoint(id string) (Checkpoint, error) {
	cp, ok := h.checkpoints[id]
	if !ok {
		return Checkpoint{}, kernelerr.New("history.GetCheckpoint", kernelerr.NotFound)
	}
	return cp, nil
}

// ListCheckpoints returns every recorded checkpoint, order unspecified.
func (h *History) ListCheckpoints() []Checkpoint {
	out := make([]Checkpoint, 0, len(h.checkpoints))
	for _, cp := range h.checkpoints {
		out = append(out, cp)
	}
	return out
}

// RollbackTo restores exactly the keys present in checkpoint id into the
// live state view; keys not present in the checkpoint are left untouched
// (partial overlay semantics). Never modifies the history log.
func (h *History) RollbackTo(id string) error {
	const op = "history.RollbackTo"
	cp, ok := h.checkpoints[id]
	if !ok {
		return kernelerr.New(op, kernelerr.NotFound)
	}
	for path, content := range cp.FileStates {
		h.currentState[path] = content
	}
	slog.Debug("rolled back to checkpoint", "checkpoint_id", id, "files", len(cp.FileStates))
	return nil
}

// Serialize renders the full history + checkpoint state as JSON.
func (h *History) Serialize() ([]byte, error) {
	snap := Snapshot{
		Changes:      h.changes,
		Cursor:       h.cursor,
		Checkpoints:  h.checkpoints,
		CurrentState: h.currentState,
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Deserialize replaces h's state with the snapshot encoded in data.
func (h *History) Deserialize(data []byte) error {
	const op = "history.Deserialize"
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}
	h.changes = snap.Changes
	h.cursor = snap.Cursor
	if snap.Checkpoints == nil {
		snap.Checkpoints = make(map[string]Checkpoint)
	}
	h.checkpoints = snap.Checkpoints
	if snap.CurrentState == nil {
		snap.CurrentState = make(map[string]string)
	}
	h.currentState = snap.CurrentState
	return nil
}

// SaveToFile persists the snapshot to path atomically: it writes to a
// temp file in the same directory and renames over the destination, so a
// reader never observes a partially written snapshot.
func (h *History) SaveToFile(path string) error {
	const op = "history.SaveToFile"
	data, err := h.Serialize()
	if err != nil {
		return kernelerr.Wrap(op, kernelerr.Corrupted, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return kernelerr.Wrap(op, kernelerr.Transport, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return kernelerr.Wrap(op, kernelerr.Transport, err)
	}
	if err := tmp.Close(); err != nil {
		return kernelerr.Wrap(op, kernelerr.Transport, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return kernelerr.Wrap(op, kernelerr.Transport, fmt.Errorf("rename snapshot into place: %w", err))
	}
	return nil
}

// LoadFromFile loads and replaces h's state from a snapshot previously
// written by SaveToFile. A corrupted snapshot degrades to an empty
// history rather than propagating the decode error, per the Corrupted
// recovery strategy (fallback).
func (h *History) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return kernelerr.Wrap("history.LoadFromFile", kernelerr.Transport, err)
	}
	if err := h.Deserialize(data); err != nil {
		slog.Warn("history snapshot corrupted, recovering as empty", "path", path, "error", err)
		h.changes = nil
		h.cursor = 0
		h.checkpoints = make(map[string]Checkpoint)
		h.currentState = make(map[string]string)
		return nil
	}
	return nil
}
