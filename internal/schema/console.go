// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package schema

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNotExecutable is returned by Execute for statements that need a live
// graph. The catalog only answers schema statements.
var ErrNotExecutable = errors.New("statement needs a graph connection")

var (
	useStmt      = regexp.MustCompile("(?i)^use\\s+`?([A-Za-z0-9_]+)`?$")
	showSpaces   = regexp.MustCompile(`(?i)^show\s+spaces$`)
	showTags     = regexp.MustCompile(`(?i)^show\s+tags$`)
	showEdges    = regexp.MustCompile(`(?i)^show\s+edges$`)
	describeStmt = regexp.MustCompile("(?i)^(?:describe|desc)\\s+(tag|edge)\\s+`?([A-Za-z0-9_]+)`?$")
)

// Execute answers the schema statements a console can resolve offline:
// USE, SHOW SPACES, SHOW TAGS, SHOW EDGES and DESCRIBE TAG|EDGE. A trailing
// semicolon is ignored.
func (c *Catalog) Execute(ctx context.Context, stmt string) (string, error) {
	stmt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))

	switch {
	case useStmt.MatchString(stmt):
		space := useStmt.FindStringSubmatch(stmt)[1]
		if err := c.SwitchSpace(ctx, space); err != nil {
			return "", err
		}
		return "space: " + space, nil

	case showSpaces.MatchString(stmt):
		spaces, err := c.Spaces(ctx)
		if err != nil {
			return "", err
		}
		return strings.Join(spaces, "\n"), nil

	case showTags.MatchString(stmt):
		return c.names(ctx, kindTag)

	case showEdges.MatchString(stmt):
		return c.names(ctx, kindEdge)

	case describeStmt.MatchString(stmt):
		m := describeStmt.FindStringSubmatch(stmt)
		return c.describe(ctx, strings.ToLower(m[1]), m[2])
	}
	return "", ErrNotExecutable
}

func (c *Catalog) names(ctx context.Context, kind string) (string, error) {
	defs, err := c.typeList(ctx, kind)
	if err != nil {
		return "", err
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return strings.Join(names, "\n"), nil
}

func (c *Catalog) describe(ctx context.Context, kind, name string) (string, error) {
	defs, err := c.typeList(ctx, kind)
	if err != nil {
		return "", err
	}
	for _, d := range defs {
		if d.Name != name {
			continue
		}
		lines := make([]string, len(d.Fields))
		for i, f := range d.Fields {
			lines[i] = fmt.Sprintf("%s\t%s", f.Field, f.Type)
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("%s %q not found in space %q", kind, name, c.CurrentSpace())
}
