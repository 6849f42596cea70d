// Package store reads manuscripts kept by the writing application: either
// directly from its SQLite database or from a JSON snapshot.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"msx/manuscript"
)

var ErrNotFound = errors.New("project not found")

// Snapshot is everything needed to export single project.
type Snapshot struct {
	Project  manuscript.ProjectRecord   `json:"project"`
	Chapters []manuscript.ChapterRecord `json:"chapters"`
}

// ProjectInfo is short project description for listings.
type ProjectInfo struct {
	ID       string
	Title    string
	Author   string
	Chapters int
}

// LoadJSON decodes snapshot. Chapters belonging to other projects are
// dropped, unknown fields are ignored.
func LoadJSON(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("unable to decode snapshot: %w", err)
	}
	if len(strings.TrimSpace(s.Project.ID)) == 0 && len(strings.TrimSpace(s.Project.Title)) == 0 && len(s.Chapters) == 0 {
		return nil, ErrNotFound
	}
	kept := s.Chapters[:0]
	for _, ch := range s.Chapters {
		if len(ch.ProjectID) == 0 || len(s.Project.ID) == 0 || ch.ProjectID == s.Project.ID {
			kept = append(kept, ch)
		}
	}
	s.Chapters = kept
	return &s, nil
}

// LoadJSONFile is LoadJSON reading named file.
func LoadJSONFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadJSON(f)
}
