// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/gqlpilot/internal/session"
	"github.com/jeranaias/gqlpilot/internal/util"
	"github.com/jeranaias/gqlpilot/internal/wire"
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript is a saved chat session.
type Transcript struct {
	ID        string            `json:"id"`
	Summary   string            `json:"summary"`
	Mode      string            `json:"mode"`
	Space     string            `json:"space,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []session.Message `json:"messages"`
}

// TranscriptMeta is the listing view of a transcript.
type TranscriptMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Mode         string    `json:"mode"`
	Space        string    `json:"space,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// FromSession captures the finished turns of s. A pending turn is saved as
// it stands and restored as done.
func FromSession(s *session.Session, mode, space string) *Transcript {
	return &Transcript{
		ID:       s.ID(),
		Mode:     mode,
		Space:    space,
		Messages: s.Snapshot().Messages,
	}
}

// Restore loads the transcript into s, replacing its history.
func (t *Transcript) Restore(s *session.Session) {
	s.Restore(t.ID, t.Messages)
}

// Preview returns the first user question, shortened.
func (t *Transcript) Preview() string {
	for _, m := range t.Messages {
		if m.Role == wire.RoleUser && m.Content != "" {
			return util.TruncateRunes(util.CollapseSpace(m.Content), 80)
		}
	}
	return ""
}

// ExportMarkdown renders the transcript with role headings.
func (t *Transcript) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Transcript " + t.ID + "\n\n")
	sb.WriteString("Created: " + t.CreatedAt.Format(time.RFC3339) + "\n")
	if t.Space != "" {
		sb.WriteString("Space: " + t.Space + "\n")
	}
	sb.WriteString("\n---\n\n")

	for _, m := range t.Messages {
		role := "**User**"
		if m.Role == wire.RoleAssistant {
			role = "**Assistant**"
		}
		sb.WriteString(role + " (" + m.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(m.Content)
		if m.Failed() {
			sb.WriteString("\n\n> error: " + m.Error)
		}
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// DefaultMaxTranscripts bounds the store unless overridden.
const DefaultMaxTranscripts = 100

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// TranscriptStore keeps one JSON file per transcript in BaseDir.
type TranscriptStore struct {
	BaseDir string
	// MaxTranscripts limits stored transcripts (0 = unlimited).
	MaxTranscripts int
}

// NewTranscriptStore creates the directory if needed.
func NewTranscriptStore(baseDir string) (*TranscriptStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &TranscriptStore{BaseDir: baseDir, MaxTranscripts: DefaultMaxTranscripts}, nil
}

// Save writes t, filling in the summary and timestamps, and returns its id.
func (s *TranscriptStore) Save(t *Transcript) (string, error) {
	if t.ID == "" || !validID.MatchString(t.ID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, t.ID)
	}
	if len(t.Messages) == 0 {
		return "", ErrEmptyTranscript
	}
	if t.Summary == "" {
		t.Summary = summarize(t)
	}
	t.UpdatedAt = time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.UpdatedAt
		if first := t.Messages[0].Timestamp; !first.IsZero() {
			t.CreatedAt = first
		}
	}

	if err := util.AtomicWriteJSON(s.filePath(t.ID), t, 0600); err != nil {
		return "", err
	}

	if s.MaxTranscripts > 0 {
		s.enforceLimit()
	}
	return t.ID, nil
}

func summarize(t *Transcript) string {
	if p := t.Preview(); p != "" {
		return util.TruncateRunes(p, 50)
	}
	return "New transcript"
}

// enforceLimit removes the oldest transcripts beyond MaxTranscripts.
func (s *TranscriptStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}
	for _, m := range metas[s.MaxTranscripts:] {
		_ = s.Delete(m.ID)
	}
}

// Load reads a transcript by id or unique id prefix.
func (s *TranscriptStore) Load(id string) (*Transcript, error) {
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(full))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", full, err)
	}
	return &t, nil
}

// LoadByIndex loads the transcript at index in List order (0 = newest).
func (s *TranscriptStore) LoadByIndex(index int) (*Transcript, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrTranscriptNotFound
	}
	return s.Load(metas[index].ID)
}

// List returns every readable transcript, newest first. Corrupt files are
// skipped.
func (s *TranscriptStore) List() ([]TranscriptMeta, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	metas := make([]TranscriptMeta, 0, len(ids))
	for _, id := range ids {
		t, err := s.Load(id)
		if err != nil {
			continue
		}
		metas = append(metas, TranscriptMeta{
			ID:           t.ID,
			Summary:      t.Summary,
			Mode:         t.Mode,
			Space:        t.Space,
			CreatedAt:    t.CreatedAt,
			UpdatedAt:    t.UpdatedAt,
			MessageCount: len(t.Messages),
			Preview:      t.Preview(),
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns transcripts where any message contains query,
// case-insensitively. An empty query lists everything.
func (s *TranscriptStore) Search(query string) ([]TranscriptMeta, error) {
	all, err := s.List()
	if err != nil || query == "" {
		return all, err
	}
	query = strings.ToLower(query)
	var results []TranscriptMeta
	for _, meta := range all {
		t, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range t.Messages {
			if strings.Contains(strings.ToLower(m.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// Delete removes a transcript by id or unique prefix.
func (s *TranscriptStore) Delete(id string) error {
	full, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(s.filePath(full)); err != nil {
		if os.IsNotExist(err) {
			return ErrTranscriptNotFound
		}
		return err
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (s *TranscriptStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

func (s *TranscriptStore) ids() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// resolve expands a unique prefix to a full id.
func (s *TranscriptStore) resolve(id string) (string, error) {
	if id == "" || !validID.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if _, err := os.Stat(s.filePath(id)); err == nil {
		return id, nil
	}
	ids, err := s.ids()
	if err != nil {
		return "", err
	}
	var match string
	for _, candidate := range ids {
		if strings.HasPrefix(candidate, id) {
			if match != "" {
				return "", fmt.Errorf("%w: %q", ErrAmbiguousID, id)
			}
			match = candidate
		}
	}
	if match == "" {
		return "", ErrTranscriptNotFound
	}
	return match, nil
}

// FormatList renders metas as a table for the history command.
func FormatList(metas []TranscriptMeta) string {
	if len(metas) == 0 {
		return "No transcripts found."
	}
	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Updated", 17) + " " +
		util.PadRight("Turns", 5) + " " + util.PadRight("Space", 12) + " Preview\n")
	for _, m := range metas {
		id := m.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(m.UpdatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(strconv.Itoa(m.MessageCount), 5) + " " +
			util.PadRight(util.TruncateRunes(m.Space, 12), 12) + " " +
			util.TruncateRunes(m.Preview, 40) + "\n")
	}
	return sb.String()
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrInvalidID          = errors.New("invalid transcript id")
	ErrAmbiguousID        = errors.New("ambiguous transcript id")
	ErrEmptyTranscript    = errors.New("transcript has no messages")
)
