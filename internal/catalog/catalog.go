// Package catalog holds the static list of destination groups and their
// forum topics. It is loaded once at startup and read-only afterwards.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrGroupNotFound = errors.New("catalog: group not found")
	ErrTopicNotFound = errors.New("catalog: topic not found")
)

// Topic is a forum thread inside a group.
type Topic struct {
	ThreadID int    `json:"thread_id" yaml:"thread_id"`
	Name     string `json:"name" yaml:"name"`
}

// Group is a destination chat the bot can post into.
type Group struct {
	ID     int64   `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Topics []Topic `json:"topics" yaml:"topics"`
}

type document struct {
	Groups *[]Group `json:"groups" yaml:"groups"`
}

// Catalog is an immutable, ordered set of groups.
type Catalog struct {
	groups []Group
}

// Load reads and validates the catalog document at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog document. JSON documents are decoded strictly as
// JSON; anything else is treated as YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Groups == nil {
		return nil, errors.New(`missing top-level "groups" key`)
	}
	return New(*doc.Groups)
}

// New validates groups and wraps them in a Catalog. Group ids must be unique
// and names non-empty; a group may have no topics.
func New(groups []Group) (*Catalog, error) {
	seen := make(map[int64]struct{}, len(groups))
	out := make([]Group, 0, len(groups))
	for i, g := range groups {
		if strings.TrimSpace(g.Name) == "" {
			return nil, fmt.Errorf("group #%d (id %d): empty name", i, g.ID)
		}
		if _, dup := seen[g.ID]; dup {
			return nil, fmt.Errorf("group #%d: duplicate id %d", i, g.ID)
		}
		seen[g.ID] = struct{}{}
		g.Topics = append([]Topic(nil), g.Topics...)
		out = append(out, g)
	}
	return &Catalog{groups: out}, nil
}

// Groups returns the groups in document order.
func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	copy(out, c.groups)
	return out
}

// Group looks a group up by id.
func (c *Catalog) Group(id int64) (Group, error) {
	for _, g := range c.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("%w: %d", ErrGroupNotFound, id)
}

// Topic looks a topic up by group id and thread id.
func (c *Catalog) Topic(groupID int64, threadID int) (Topic, error) {
	g, err := c.Group(groupID)
	if err != nil {
		return Topic{}, err
	}
	for _, t := range g.Topics {
		if t.ThreadID == threadID {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("%w: group %d thread %d", ErrTopicNotFound, groupID, threadID)
}
