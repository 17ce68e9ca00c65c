// Package fingerprint derives content identifiers from video file bytes.
//
// Every function returns (hash, ok, err): ok is false with a nil error when
// the file is too small for the algorithm, and err is non-nil only for I/O
// failures such as a missing or unreadable file.
package fingerprint

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// ChunkSize is the window used by the OpenSubtitles, fragment and
	// thesubdb algorithms.
	ChunkSize = 64 * 1024

	napiProjektSize = 10 * 1024 * 1024
	shooterBlock    = 4096
)

// Algorithm names used by providers to declare the fingerprint they need.
const (
	AlgorithmOpenSubtitles = "opensubtitles"
	AlgorithmFragment      = "fragment"
	AlgorithmNapiProjekt   = "napiprojekt"
	AlgorithmTheSubDB      = "thesubdb"
	AlgorithmShooter       = "shooter"
)

// Func computes one fingerprint for the file at path.
type Func func(path string) (string, bool, error)

// ByName returns the function implementing the named algorithm.
func ByName(name string) (Func, bool) {
	switch name {
	case AlgorithmOpenSubtitles:
		return OpenSubtitles, true
	case AlgorithmFragment:
		return MD5, true
	case AlgorithmNapiProjekt:
		return NapiProjekt, true
	case AlgorithmTheSubDB:
		return TheSubDB, true
	case AlgorithmShooter:
		return Shooter, true
	default:
		return nil, false
	}
}

func open(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("fingerprint: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("fingerprint: stat %s: %w", path, err)
	}
	return f, info.Size(), nil
}

// OpenSubtitles computes the 64-bit checksum used by OpenSubtitles: the file
// size plus the little-endian uint64 words of the first and last 64 KiB,
// rendered as 16 lowercase hex digits.
func OpenSubtitles(path string) (string, bool, error) {
	f, size, err := open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	return OpenSubtitlesReader(f, size)
}

// OpenSubtitlesReader is OpenSubtitles over an arbitrary ReaderAt of the given size.
func OpenSubtitlesReader(r io.ReaderAt, size int64) (string, bool, error) {
	if size < 2*ChunkSize {
		return "", false, nil
	}
	sum := uint64(size)
	buf := make([]byte, ChunkSize)
	for _, offset := range []int64{0, size - ChunkSize} {
		if _, err := r.ReadAt(buf, offset); err != nil {
			return "", false, fmt.Errorf("fingerprint: read at %d: %w", offset, err)
		}
		for i := 0; i < ChunkSize; i += 8 {
			sum += binary.LittleEndian.Uint64(buf[i : i+8])
		}
	}
	return fmt.Sprintf("%016x", sum), true, nil
}

// Fragment returns the MD5 of window bytes starting at offset.
func Fragment(path string, offset, window int64) (string, bool, error) {
	f, size, err := open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	if offset < 0 || window <= 0 || size < offset+window {
		return "", false, nil
	}
	buf := make([]byte, window)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return "", false, fmt.Errorf("fingerprint: read %s: %w", path, err)
	}
	digest := md5.Sum(buf)
	return hex.EncodeToString(digest[:]), true, nil
}

// MD5 is the fragment hash over the first 64 KiB.
func MD5(path string) (string, bool, error) {
	return Fragment(path, 0, ChunkSize)
}

// NapiProjekt returns the MD5 of the first 10 MiB (or the whole file when
// shorter).
func NapiProjekt(path string) (string, bool, error) {
	f, size, err := open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	if size == 0 {
		return "", false, nil
	}
	h := md5.New()
	if _, err := io.Copy(h, io.LimitReader(f, napiProjektSize)); err != nil {
		return "", false, fmt.Errorf("fingerprint: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), true, nil
}

// TheSubDB returns the MD5 of the first and last 64 KiB concatenated.
func TheSubDB(path string) (string, bool, error) {
	f, size, err := open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	if size < ChunkSize {
		return "", false, nil
	}
	buf := make([]byte, 2*ChunkSize)
	if _, err := f.ReadAt(buf[:ChunkSize], 0); err != nil {
		return "", false, fmt.Errorf("fingerprint: read %s: %w", path, err)
	}
	if _, err := f.ReadAt(buf[ChunkSize:], size-ChunkSize); err != nil {
		return "", false, fmt.Errorf("fingerprint: read %s: %w", path, err)
	}
	digest := md5.Sum(buf)
	return hex.EncodeToString(digest[:]), true, nil
}

// Shooter returns four MD5 digests of 4 KiB blocks at fixed offsets joined
// by semicolons.
func Shooter(path string) (string, bool, error) {
	f, size, err := open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()
	if size < 2*shooterBlock {
		return "", false, nil
	}
	offsets := []int64{shooterBlock, size / 3 * 2, size / 3, size - 2*shooterBlock}
	parts := make([]string, 0, len(offsets))
	buf := make([]byte, shooterBlock)
	for _, offset := range offsets {
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return "", false, fmt.Errorf("fingerprint: read %s: %w", path, err)
		}
		digest := md5.Sum(buf[:n])
		parts = append(parts, hex.EncodeToString(digest[:]))
	}
	return strings.Join(parts, ";"), true, nil
}
