package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"msx/manuscript"
)

// Columns added to the application schema over time, absent ones read as
// empty strings.
var (
	optionalProjectColumns = []string{"author", "genre", "description", "language", "cover_images", "default_cover_id"}
	optionalChapterColumns = []string{"outline_goal", "draft_text", "final_text", "illustrations"}
)

// SQLite reads application database. It never writes to it.
type SQLite struct {
	conn *sqlite.Conn
	log  *zap.Logger

	projectCols map[string]bool
	chapterCols map[string]bool
}

// OpenSQLite opens database file read-only.
func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("unable to open database (%s): %w", path, err)
	}
	s := &SQLite{conn: conn, log: log.Named("store")}
	if s.projectCols, err = s.columns("projects"); err != nil {
		conn.Close()
		return nil, err
	}
	if s.chapterCols, err = s.columns("chapters"); err != nil {
		conn.Close()
		return nil, err
	}
	if len(s.projectCols) == 0 || len(s.chapterCols) == 0 {
		conn.Close()
		return nil, fmt.Errorf("database (%s) does not look like manuscript storage", path)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) columns(table string) (map[string]bool, error) {
	cols := make(map[string]bool)
	err := sqlitex.Execute(s.conn, "PRAGMA table_info("+table+")",
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			cols[strings.ToLower(stmt.GetText("name"))] = true
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("unable to read %s schema: %w", table, err)
	}
	return cols, nil
}

// selectList builds column list replacing missing optional columns with
// empty literals.
func selectList(required []string, optional []string, present map[string]bool, log *zap.Logger) string {
	parts := make([]string, 0, len(required)+len(optional))
	for _, c := range required {
		parts = append(parts, fmt.Sprintf("COALESCE(%s, '') AS %s", c, c))
	}
	for _, c := range optional {
		if present[c] {
			parts = append(parts, fmt.Sprintf("COALESCE(%s, '') AS %s", c, c))
			continue
		}
		log.Debug("Column is missing, using empty value", zap.String("column", c))
		parts = append(parts, "'' AS "+c)
	}
	return strings.Join(parts, ", ")
}

// interrupt makes long queries abort when context is done.
func (s *SQLite) interrupt(ctx context.Context) func() {
	old := s.conn.SetInterrupt(ctx.Done())
	return func() { s.conn.SetInterrupt(old) }
}

// Projects lists all projects with number of chapters.
func (s *SQLite) Projects(ctx context.Context) ([]ProjectInfo, error) {
	defer s.interrupt(ctx)()

	author := "''"
	if s.projectCols["author"] {
		author = "COALESCE(p.author, '')"
	}
	query := `SELECT p.id AS id, COALESCE(p.title, '') AS title, ` + author + ` AS author,
		(SELECT COUNT(*) FROM chapters c WHERE c.project_id = p.id) AS chapters
		FROM projects p ORDER BY title, id`

	var res []ProjectInfo
	err := sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			res = append(res, ProjectInfo{
				ID:       stmt.GetText("id"),
				Title:    stmt.GetText("title"),
				Author:   stmt.GetText("author"),
				Chapters: int(stmt.GetInt64("chapters")),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list projects: %w", err)
	}
	return res, nil
}

// Load reads project and its chapters ordered by order_index.
func (s *SQLite) Load(ctx context.Context, projectID string) (*Snapshot, error) {
	defer s.interrupt(ctx)()

	var (
		snap  Snapshot
		found bool
	)
	query := "SELECT " + selectList([]string{"id", "title"}, optionalProjectColumns, s.projectCols, s.log) +
		" FROM projects WHERE id = ?"
	err := sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		Args: []any{projectID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			snap.Project = manuscript.ProjectRecord{
				ID:             stmt.GetText("id"),
				Title:          stmt.GetText("title"),
				Author:         stmt.GetText("author"),
				Genre:          stmt.GetText("genre"),
				Description:    stmt.GetText("description"),
				Language:       stmt.GetText("language"),
				CoverImages:    stmt.GetText("cover_images"),
				DefaultCoverID: stmt.GetText("default_cover_id"),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read project %s: %w", projectID, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}

	query = "SELECT " + selectList([]string{"id", "project_id", "title"}, optionalChapterColumns, s.chapterCols, s.log) +
		", COALESCE(order_index, 0) AS order_index FROM chapters WHERE project_id = ? ORDER BY order_index, rowid"
	err = sqlitex.Execute(s.conn, query, &sqlitex.ExecOptions{
		Args: []any{projectID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			snap.Chapters = append(snap.Chapters, manuscript.ChapterRecord{
				ID:            stmt.GetText("id"),
				ProjectID:     stmt.GetText("project_id"),
				Title:         stmt.GetText("title"),
				OrderIndex:    int(stmt.GetInt64("order_index")),
				OutlineGoal:   stmt.GetText("outline_goal"),
				DraftText:     stmt.GetText("draft_text"),
				FinalText:     stmt.GetText("final_text"),
				Illustrations: stmt.GetText("illustrations"),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to read chapters of %s: %w", projectID, err)
	}
	s.log.Debug("Project loaded", zap.String("id", projectID), zap.Int("chapters", len(snap.Chapters)))
	return &snap, nil
}
