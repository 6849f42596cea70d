package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"msx/common"
	"msx/config"
	"msx/fonts"
	"msx/imgutil"
	"msx/manuscript"
	"msx/state"
	"msx/store"
)

// Run is the "export" command action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("export")

	dst := cmd.Args().Get(0)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	env.Format = env.Cfg.Export.Format
	if cmd.IsSet("to") {
		if env.Format, err = common.ParseOutputFmt(cmd.String("to")); err != nil {
			log.Warn("Unknown output format requested, using configured one", zap.Error(err), zap.Stringer("format", env.Cfg.Export.Format))
			env.Format = env.Cfg.Export.Format
		}
	}
	env.Overwrite = cmd.Bool("overwrite")

	captureInput(env.Rpt, log, cmd.String("db"), cmd.String("json"))

	snap, err := loadSnapshot(ctx, cmd.String("db"), cmd.String("json"), cmd.String("project"), log)
	if err != nil {
		return err
	}
	if cmd.IsSet("locale") {
		env.Locale = cmd.String("locale")
		snap.Project.Language = env.Locale
	}

	m := buildModel(snap, env.Cfg.Export.ExcludeIllustrations, env.Rpt, log)

	log.Info("Export starting", zap.String("title", m.Title), zap.Int("chapters", len(m.Chapters)), zap.String("destination", dst), zap.Stringer("format", env.Format))
	defer func(start time.Time) {
		log.Info("Export completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return export(ctx, m, dst, env, cmd.String("font"), log)
}

// export runs orchestrator with configured collaborators and saves result
// independently of CLI framework.
func export(ctx context.Context, m *manuscript.Manuscript, dst string, env *state.LocalEnv, font string, log *zap.Logger) error {
	cfg := &env.Cfg.Export

	if len(font) == 0 {
		font = cfg.PDF.Fonts.Font
	}
	e := &Exporter{
		Fonts:  &fonts.DirCatalog{Dirs: cfg.PDF.Fonts.FontDirs(), All: cfg.PDF.Fonts.All, Log: log.Named("fonts")},
		Images: &imgutil.Loader{BaseDir: cfg.Images.BaseDir, JPEGQuality: cfg.Images.JPEGQuality},
		Log:    log,
	}
	res, err := e.Export(ctx, m, Options{
		Format: env.Format,
		Content: Content{
			NovelCover:    cfg.Content.NovelCover,
			ChapterCover:  cfg.Content.ChapterCover,
			Illustrations: cfg.Content.Illustrations,
		},
		Font:          font,
		FontSize:      cfg.PDF.FontSize,
		LineHeight:    cfg.PDF.LineHeight,
		NameTemplate:  cfg.OutputNameTemplate,
		Transliterate: cfg.FileNameTransliterate,
		Modified:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("unable to export manuscript: %w", err)
	}
	if res.Skipped != nil {
		for _, er := range multierr.Errors(res.Skipped) {
			log.Warn("Image skipped", zap.Error(er))
		}
	}

	path, err := save(res, dst, env.Overwrite)
	if err != nil {
		return err
	}
	if env.Rpt != nil {
		env.Rpt.Store(filepath.Join("result", filepath.Base(path)), path)
	}
	log.Info("Manuscript exported", zap.String("file", path), zap.Int("size", len(res.Data)), zap.Int("pages", res.Pages), zap.String("font", res.Font))
	return nil
}

// captureInput puts manuscript input into debug report as it is before export
// reads it.
func captureInput(rpt *config.Report, log *zap.Logger, files ...string) {
	for _, f := range files {
		if len(f) == 0 {
			continue
		}
		if err := rpt.StoreCopy("input/"+filepath.Base(f), f); err != nil {
			log.Debug("Unable to put input into report", zap.String("file", f), zap.Error(err))
		}
	}
}

// buildModel builds manuscript from snapshot. Illustrations and covers dropped
// while building go into debug report.
func buildModel(snap *store.Snapshot, exclude []string, rpt *config.Report, log *zap.Logger) *manuscript.Manuscript {
	var dropped []manuscript.Dropped
	m := manuscript.Build(snap.Project, snap.Chapters, manuscript.BuildOptions{
		ExcludeIllustrations: manuscript.ExcludeSet(exclude),
		OnDrop:               func(d manuscript.Dropped) { dropped = append(dropped, d) },
		Log:                  log.Named("model"),
	})
	if len(dropped) > 0 {
		log.Info("Some images were dropped from manuscript", zap.Int("count", len(dropped)))
		if err := rpt.StoreYAML("diagnostics/dropped.yaml", dropped); err != nil {
			log.Debug("Unable to put diagnostics into report", zap.Error(err))
		}
	}
	return m
}

// save writes artifact into destination directory. Existing file is never
// touched unless overwrite is requested.
func save(res *Result, dir string, overwrite bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("unable to create output directory: %w", err)
	}
	path := filepath.Join(dir, config.CleanFileName(res.Name))

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("output file already exists, use --overwrite to replace it: %s", path)
		}
		return "", fmt.Errorf("unable to create output file: %w", err)
	}
	if _, err := f.Write(res.Data); err != nil {
		return "", multierr.Append(fmt.Errorf("unable to write output file: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("unable to write output file: %w", err)
	}
	return path, nil
}

// loadSnapshot reads project either from JSON snapshot or from database. With
// database and no project id single stored project is selected.
func loadSnapshot(ctx context.Context, db, snapshot, project string, log *zap.Logger) (*store.Snapshot, error) {
	switch {
	case len(db) > 0 && len(snapshot) > 0:
		return nil, errors.New("use either --db or --json, not both")
	case len(snapshot) > 0:
		snap, err := store.LoadJSONFile(snapshot)
		if err != nil {
			return nil, fmt.Errorf("unable to load snapshot '%s': %w", snapshot, err)
		}
		return snap, nil
	case len(db) == 0:
		return nil, errors.New("no input has been specified, use --db or --json")
	}

	s, err := store.OpenSQLite(db, log)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if len(project) == 0 {
		list, err := s.Projects(ctx)
		if err != nil {
			return nil, err
		}
		switch len(list) {
		case 0:
			return nil, store.ErrNotFound
		case 1:
			project = list[0].ID
		default:
			ids := make([]string, 0, len(list))
			for _, p := range list {
				ids = append(ids, p.ID)
			}
			return nil, fmt.Errorf("database has %d projects, select one with --project: %s", len(list), strings.Join(ids, ", "))
		}
	}
	return s.Load(ctx, project)
}
