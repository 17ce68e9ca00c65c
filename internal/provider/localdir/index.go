package localdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"subseek/internal/language"
)

// IndexFile is the name of the archive description inside the root.
const IndexFile = "index.yaml"

// Index describes the subtitles kept in a local archive.
type Index struct {
	Subtitles []Entry `yaml:"subtitles"`
}

// Entry is one archived subtitle file and what is known about its release.
type Entry struct {
	ID              string            `yaml:"id"`
	File            string            `yaml:"file"`
	Language        string            `yaml:"language"`
	Release         string            `yaml:"release"`
	HearingImpaired bool              `yaml:"hearing_impaired"`
	ForeignOnly     bool              `yaml:"foreign_only"`
	FPS             float64           `yaml:"fps"`
	Hashes          map[string]string `yaml:"hashes"`
	IMDbID          string            `yaml:"imdb_id"`
	SeriesIMDbID    string            `yaml:"series_imdb_id"`
	Series          string            `yaml:"series"`
	Season          int               `yaml:"season"`
	Episodes        []int             `yaml:"episodes"`
	Title           string            `yaml:"title"`
	Year            int               `yaml:"year"`

	lang language.Language
}

// IsEpisode reports whether the entry describes an episode.
func (e Entry) IsEpisode() bool {
	return e.Series != "" || e.Season > 0 || len(e.Episodes) > 0
}

// LoadIndex reads and validates root/index.yaml. Entry files are resolved
// relative to root and must stay inside it.
func LoadIndex(root string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(root, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	if err := idx.validate(root); err != nil {
		return nil, fmt.Errorf("invalid index: %w", err)
	}
	return &idx, nil
}

func (idx *Index) validate(root string) error {
	seen := make(map[string]struct{}, len(idx.Subtitles))
	var errs []error
	for i := range idx.Subtitles {
		e := &idx.Subtitles[i]
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			e.ID = strings.TrimSpace(e.File)
		}
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("subtitles[%d]: file is required", i))
			continue
		}
		if _, dup := seen[e.ID]; dup {
			errs = append(errs, fmt.Errorf("subtitles[%d]: duplicate id %q", i, e.ID))
			continue
		}
		seen[e.ID] = struct{}{}

		if e.File == "" || filepath.IsAbs(e.File) {
			errs = append(errs, fmt.Errorf("subtitles[%d]: file must be a relative path", i))
			continue
		}
		rel, err := filepath.Rel(root, filepath.Join(root, e.File))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			errs = append(errs, fmt.Errorf("subtitles[%d]: file %q escapes the archive root", i, e.File))
			continue
		}

		lang, err := language.Parse(e.Language)
		if err != nil {
			errs = append(errs, fmt.Errorf("subtitles[%d]: language: %w", i, err))
			continue
		}
		e.lang = lang
	}
	return errors.Join(errs...)
}
