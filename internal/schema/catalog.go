// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jeranaias/gqlpilot/internal/sqlstore"
)

const catalogSchema = `
CREATE TABLE IF NOT EXISTS spaces (
    name TEXT PRIMARY KEY,
    vid_type TEXT NOT NULL DEFAULT ''
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS types (
    space TEXT NOT NULL REFERENCES spaces(name) ON DELETE CASCADE,
    kind TEXT NOT NULL CHECK (kind IN ('tag', 'edge')),
    name TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (space, kind, name)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS fields (
    space TEXT NOT NULL,
    kind TEXT NOT NULL,
    type_name TEXT NOT NULL,
    position INTEGER NOT NULL,
    field TEXT NOT NULL,
    type TEXT NOT NULL,
    default_value TEXT NOT NULL DEFAULT '',
    comment TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (space, kind, type_name, position),
    FOREIGN KEY (space, kind, type_name) REFERENCES types(space, kind, name) ON DELETE CASCADE
) WITHOUT ROWID;
`

const (
	kindTag  = "tag"
	kindEdge = "edge"
)

// SpaceDef is the import format for one space.
type SpaceDef struct {
	Space   string    `json:"space"`
	VidType string    `json:"vidType"`
	Tags    []TypeDef `json:"tags"`
	Edges   []TypeDef `json:"edges"`
}

// Catalog is a Source over a SQLite database of imported spaces.
type Catalog struct {
	db *sql.DB

	mu      sync.RWMutex
	current string
}

// OpenCatalog opens the catalog at path (sqlstore.Memory for tests).
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sqlstore.Open(path, catalogSchema)
	if err != nil {
		return nil, err
	}
	return &Catalog{db: db}, nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Import replaces the stored definition of def.Space.
func (c *Catalog) Import(ctx context.Context, def SpaceDef) error {
	if strings.TrimSpace(def.Space) == "" {
		return errors.New("space name is required")
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM spaces WHERE name = ?`, def.Space); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO spaces (name, vid_type) VALUES (?, ?)`, def.Space, def.VidType); err != nil {
		return err
	}
	if err := insertTypes(ctx, tx, def.Space, kindTag, def.Tags); err != nil {
		return err
	}
	if err := insertTypes(ctx, tx, def.Space, kindEdge, def.Edges); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTypes(ctx context.Context, tx *sql.Tx, space, kind string, defs []TypeDef) error {
	for i, d := range defs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO types (space, kind, name, position) VALUES (?, ?, ?, ?)`,
			space, kind, d.Name, i); err != nil {
			return fmt.Errorf("insert %s %q: %w", kind, d.Name, err)
		}
		for j, f := range d.Fields {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fields (space, kind, type_name, position, field, type, default_value, comment)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				space, kind, d.Name, j, f.Field, f.Type, f.Default, f.Comment); err != nil {
				return fmt.Errorf("insert field %s.%s: %w", d.Name, f.Field, err)
			}
		}
	}
	return nil
}

// ImportFile imports a JSON file holding one SpaceDef or an array of them.
func (c *Catalog) ImportFile(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []SpaceDef
	if err := json.Unmarshal(data, &defs); err != nil {
		var one SpaceDef
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		defs = []SpaceDef{one}
	}
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		if err := c.Import(ctx, d); err != nil {
			return names, err
		}
		names = append(names, d.Space)
	}
	return names, nil
}

// Spaces lists imported space names in order.
func (c *Catalog) Spaces(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM spaces ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// =============================================================================
// SOURCE IMPLEMENTATION
// =============================================================================

// SwitchSpace selects the working space. Unknown spaces fail with
// ErrSpaceUnavailable.
func (c *Catalog) SwitchSpace(ctx context.Context, space string) error {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces WHERE name = ?`, space).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q not in catalog", ErrSpaceUnavailable, space)
	}
	c.mu.Lock()
	c.current = space
	c.mu.Unlock()
	return nil
}

// CurrentSpace returns the working space.
func (c *Catalog) CurrentSpace() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *Catalog) requireSpace() (string, error) {
	space := c.CurrentSpace()
	if space == "" {
		return "", ErrSpaceUnavailable
	}
	return space, nil
}

// TagList returns the tags of the working space.
func (c *Catalog) TagList(ctx context.Context) ([]TypeDef, error) {
	return c.typeList(ctx, kindTag)
}

// EdgeList returns the edge types of the working space.
func (c *Catalog) EdgeList(ctx context.Context) ([]TypeDef, error) {
	return c.typeList(ctx, kindEdge)
}

// VidType returns the vertex id type of the working space.
func (c *Catalog) VidType(ctx context.Context) (string, error) {
	space, err := c.requireSpace()
	if err != nil {
		return "", err
	}
	var vid string
	err = c.db.QueryRowContext(ctx, `SELECT vid_type FROM spaces WHERE name = ?`, space).Scan(&vid)
	return vid, err
}

func (c *Catalog) typeList(ctx context.Context, kind string) ([]TypeDef, error) {
	space, err := c.requireSpace()
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name, f.field, f.type, f.default_value, f.comment
		FROM types t
		LEFT JOIN fields f ON f.space = t.space AND f.kind = t.kind AND f.type_name = t.name
		WHERE t.space = ? AND t.kind = ?
		ORDER BY t.position, f.position`, space, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []TypeDef
	for rows.Next() {
		var (
			name                     string
			field, typ, def, comment sql.NullString
		)
		if err := rows.Scan(&name, &field, &typ, &def, &comment); err != nil {
			return nil, err
		}
		if len(defs) == 0 || defs[len(defs)-1].Name != name {
			defs = append(defs, TypeDef{Name: name})
		}
		if field.Valid {
			last := &defs[len(defs)-1]
			last.Fields = append(last.Fields, Field{
				Field:   field.String,
				Type:    typ.String,
				Default: def.String,
				Comment: comment.String,
			})
		}
	}
	return defs, rows.Err()
}
