package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

// Loader reads every score and skills CSV under the configured directories
// and materialises a validated dataset.
type Loader struct {
	scoresDir string
	skillsDir string
	logger    *zap.Logger
}

// NewLoader constructs a loader.
func NewLoader(scoresDir, skillsDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{scoresDir: scoresDir, skillsDir: skillsDir, logger: logger}
}

// Load parses both directories and returns the validated dataset. A file
// whose schema is broken aborts the load; missing coverage (a subject
// without a skills file, or vice versa) does not.
func (l *Loader) Load() (*models.Dataset, error) {
	skillFiles, err := listCSVs(l.skillsDir)
	if err != nil {
		return nil, err
	}
	scoreFiles, err := listCSVs(l.scoresDir)
	if err != nil {
		return nil, err
	}
	if len(scoreFiles) == 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("no score CSV files under %s", l.scoresDir))
	}

	ds := &models.Dataset{}
	skillsByPartition := map[string][]models.SkillRecord{}

	for _, path := range skillFiles {
		records, err := l.loadSkillFile(path)
		if err != nil {
			return nil, err
		}
		ds.Skills = append(ds.Skills, records...)
		for _, rec := range records {
			key := rec.ClassSection + "|" + rec.Subject
			skillsByPartition[key] = append(skillsByPartition[key], rec)
		}
	}

	for _, path := range scoreFiles {
		file, err := l.loadScoreFile(path)
		if err != nil {
			return nil, err
		}
		subjectSkills := skillsByPartition[file.classSection+"|"+file.subject]
		records := file.records(subjectSkills)
		ds.Scores = append(ds.Scores, records...)
		l.logger.Info("loaded score file",
			zap.String("file", filepath.Base(path)),
			zap.String("class", file.classSection),
			zap.String("subject", file.subject),
			zap.Int("students", len(records)))
	}

	if err := ds.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIntegrity.Code, appErrors.ErrIntegrity.Status, "dataset validation failed")
	}
	return ds, nil
}

func (l *Loader) loadScoreFile(path string) (*scoreFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return parseScoreCSV(f, filepath.Base(path))
}

func (l *Loader) loadSkillFile(path string) ([]models.SkillRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	records, err := parseSkillsCSV(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded skills file",
		zap.String("file", filepath.Base(path)),
		zap.Int("skills", len(records)))
	return records, nil
}

func listCSVs(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data directory %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
