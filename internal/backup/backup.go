// Package backup exports user presets to a checksummed archive and imports
// them back into any PresetStore.
//
// An archive is a plain JSON header line followed by a gzip-compressed JSON
// array of presets. The header carries a SHA-256 of the uncompressed
// payload so truncated or edited archives are rejected on read.
package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nvandessel/grag/internal/models"
	"github.com/nvandessel/grag/internal/store"
)

// FormatVersion is the archive format written by Export.
const FormatVersion = 1

// MaxPayloadSize bounds the decompressed payload read by Read (8MB).
const MaxPayloadSize = 8 << 20

// Extension is the file extension of preset archives.
const Extension = ".gragbak"

// Header is the first line of an archive.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	Count     int       `json:"count"`
}

// Archive is a decoded preset archive.
type Archive struct {
	Header  Header
	Presets []models.Preset
}

// DefaultDir returns ~/.grag/backups.
func DefaultDir() (string, error) {
	global, err := store.GlobalGragPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, "backups"), nil
}

// GeneratePath returns a timestamped archive path in dir.
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("grag-presets-%s%s", now.UTC().Format("20060102-150405"), Extension))
}

// Export writes every user preset in s to path. Built-in presets are not
// exported.
func Export(ctx context.Context, s store.PresetStore, path string) (*Archive, error) {
	all, err := store.List(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	presets := make([]models.Preset, 0, len(all))
	for _, p := range all {
		if !p.BuiltIn {
			presets = append(presets, p)
		}
	}

	payload, err := json.Marshal(presets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode presets: %w", err)
	}
	sum := sha256.Sum256(payload)
	archive := &Archive{
		Header: Header{
			Version:   FormatVersion,
			CreatedAt: time.Now().UTC().Truncate(time.Second),
			Checksum:  hex.EncodeToString(sum[:]),
			Count:     len(presets),
		},
		Presets: presets,
	}
	header, err := json.Marshal(archive.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(header)
	buf.WriteByte('\n')
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to compress presets: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress presets: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return archive, nil
}

// Read decodes and verifies an archive.
func Read(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read backup header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, fmt.Errorf("failed to decode backup header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported backup version: %d", header.Version)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup payload: %w", err)
	}
	defer gz.Close()
	payload, err := io.ReadAll(io.LimitReader(gz, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress backup: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("backup payload exceeds %d bytes", MaxPayloadSize)
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != header.Checksum {
		return nil, fmt.Errorf("backup checksum mismatch")
	}

	var presets []models.Preset
	if err := json.Unmarshal(payload, &presets); err != nil {
		return nil, fmt.Errorf("failed to decode presets: %w", err)
	}
	if len(presets) != header.Count {
		return nil, fmt.Errorf("backup holds %d presets, header says %d", len(presets), header.Count)
	}
	return &Archive{Header: header, Presets: presets}, nil
}

// ImportMode controls how Import treats presets that already exist.
type ImportMode string

const (
	// ImportMerge keeps existing presets and skips archived ones with the same name.
	ImportMerge ImportMode = "merge"
	// ImportReplace overwrites existing user presets with the archived ones.
	ImportReplace ImportMode = "replace"
)

// ImportResult counts what Import did.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Import saves every preset in the archive at path into s. Presets that
// clash with a built-in or fail validation are counted as failed and do
// not stop the import.
func Import(ctx context.Context, s store.PresetStore, path string, mode ImportMode) (*ImportResult, error) {
	archive, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, p := range archive.Presets {
		if mode != ImportReplace {
			existing, err := s.Get(ctx, p.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to check preset %s: %w", p.Name, err)
			}
			if existing != nil {
				result.Skipped++
				continue
			}
		}
		if err := s.Save(ctx, p); err != nil {
			if errors.Is(err, store.ErrReadOnly) || models.IsConfigurationError(err) {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", p.Name, err))
				continue
			}
			return nil, fmt.Errorf("failed to import preset %s: %w", p.Name, err)
		}
		result.Imported++
	}
	return result, nil
}

// Rotate keeps the keep most recent archives in dir and deletes the rest.
// Archive names sort by timestamp.
func Rotate(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if len(names) <= keep {
		return nil
	}
	for _, name := range names[keep:] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", name, err)
		}
	}
	return nil
}
