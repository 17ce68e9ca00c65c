package opensubtitles

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"subseek/internal/fileutil"
	"subseek/internal/logging"
)

// PayloadEntry describes a cached subtitle download.
type PayloadEntry struct {
	FileID     int64     `json:"file_id"`
	SubtitleID string    `json:"subtitle_id"`
	Language   string    `json:"language"`
	FileName   string    `json:"file_name"`
	StoredAt   time.Time `json:"stored_at"`
}

// Payloads keeps downloaded files on disk so repeat runs do not spend the
// daily download quota.
type Payloads struct {
	dir    string
	logger *slog.Logger
}

// NewPayloads initialises a payload store rooted at dir.
func NewPayloads(dir string, logger *slog.Logger) (*Payloads, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("payload directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload dir: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Payloads{dir: dir, logger: logger}, nil
}

// Dir exposes the backing directory for inspection.
func (p *Payloads) Dir() string {
	if p == nil {
		return ""
	}
	return p.dir
}

// Load returns the cached payload for fileID when present.
func (p *Payloads) Load(fileID int64) (PayloadEntry, []byte, bool, error) {
	if p == nil {
		return PayloadEntry{}, nil, false, errors.New("payload store unavailable")
	}
	if fileID <= 0 {
		return PayloadEntry{}, nil, false, errors.New("invalid file id")
	}
	dataPath := p.dataPath(fileID)
	data, err := os.ReadFile(dataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PayloadEntry{}, nil, false, nil
		}
		return PayloadEntry{}, nil, false, fmt.Errorf("read payload: %w", err)
	}
	metaBytes, err := os.ReadFile(p.metaPath(fileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// orphaned payload; treat as a miss so it is fetched again
			_ = os.Remove(dataPath)
			return PayloadEntry{}, nil, false, nil
		}
		return PayloadEntry{}, nil, false, fmt.Errorf("read payload metadata: %w", err)
	}
	var entry PayloadEntry
	if err := json.Unmarshal(metaBytes, &entry); err != nil {
		return PayloadEntry{}, nil, false, fmt.Errorf("decode payload metadata: %w", err)
	}
	if entry.FileID == 0 {
		entry.FileID = fileID
	}
	return entry, data, true, nil
}

// Store writes data and its metadata, returning the data path.
func (p *Payloads) Store(entry PayloadEntry, data []byte) (string, error) {
	if p == nil {
		return "", errors.New("payload store unavailable")
	}
	if entry.FileID <= 0 {
		return "", errors.New("invalid file id")
	}
	entry.Language = strings.TrimSpace(entry.Language)
	entry.FileName = strings.TrimSpace(entry.FileName)
	entry.StoredAt = time.Now().UTC()

	dataPath := p.dataPath(entry.FileID)
	if err := fileutil.WriteFileAtomic(dataPath, data, 0o644); err != nil {
		return "", err
	}
	metaBytes, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode payload metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomic(p.metaPath(entry.FileID), metaBytes, 0o644); err != nil {
		return "", err
	}
	p.logger.Debug("opensubtitles payload stored",
		logging.Int64("file_id", entry.FileID),
		logging.String("path", dataPath),
		logging.String("language", entry.Language),
	)
	return dataPath, nil
}

func (p *Payloads) dataPath(fileID int64) string {
	return filepath.Join(p.dir, fmt.Sprintf("%d.srt", fileID))
}

func (p *Payloads) metaPath(fileID int64) string {
	return filepath.Join(p.dir, fmt.Sprintf("%d.json", fileID))
}
