package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/UnknownOlympus/atlas-batch/internal/models"
	"github.com/spf13/afero"
)

const (
	fieldSeparator = ";"
	filePerm       = 0o644
)

// ReasonCorrupt is the failure reason of records loaded from damaged lines.
const ReasonCorrupt = "corrupt-cache-entry"

var (
	// ErrMissingPath is returned by Open when no cache file path is configured.
	ErrMissingPath = errors.New("cache file path is required")
	// ErrNotFile is returned by Open when the cache path points to a directory.
	ErrNotFile = errors.New("cache path is not a regular file")
	// ErrInvalidAddress is returned when an address cannot be stored as a single log line.
	ErrInvalidAddress = errors.New("address contains a line break")
)

// PersistenceError reports that a record was accepted in memory but its line
// could not be written to the cache file.
type PersistenceError struct {
	Address string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist cache entry for %q: %v", e.Address, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// AddressCache maps addresses to their resolution state. It is hydrated once from an
// append-only log file and every new terminal record is appended to that file.
// Entries are never removed and never change once terminal.
type AddressCache struct {
	mu      sync.RWMutex
	records map[string]models.AddressRecord
	file    afero.File
	path    string
	log     *slog.Logger
}

// Open loads the cache file at path and opens it for appending, creating it when absent.
// Damaged lines never make Open fail, they are loaded as failed records.
func Open(fsys afero.Fs, path string, log *slog.Logger) (*AddressCache, error) {
	if path == "" {
		return nil, ErrMissingPath
	}

	cache := &AddressCache{
		records: make(map[string]models.AddressRecord),
		path:    path,
		log:     log,
	}

	if info, err := fsys.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFile, path)
	}

	content, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("Cache file does not exist yet, starting empty", "path", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read cache file %s: %w", path, err)
	default:
		cache.load(content)
	}

	file, err := fsys.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file %s for appending: %w", path, err)
	}
	cache.file = file

	// A crash mid-write leaves the last line unterminated; the next record must not be glued onto it.
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		if _, err = file.WriteString("\n"); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to repair cache file %s: %w", path, err)
		}
	}

	log.Info("Address cache loaded", "path", path, "entries", len(cache.records))

	return cache, nil
}

func (c *AddressCache) load(content []byte) {
	corrupt := 0
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}

		record := parseLine(line)
		if record.Reason == ReasonCorrupt {
			corrupt++
		}
		if _, exists := c.records[record.Address]; exists {
			continue
		}
		c.records[record.Address] = record
	}

	if corrupt > 0 {
		c.log.Warn("Cache file contains corrupt entries, they will not be retried", "path", c.path, "count", corrupt)
	}
}

// parseLine decodes one log line. Coordinates are always the last two fields so addresses
// containing the separator still round-trip.
func parseLine(line string) models.AddressRecord {
	fields := strings.Split(line, fieldSeparator)
	count := len(fields)

	if count >= 3 {
		lat, latErr := strconv.ParseFloat(fields[count-2], 64)
		lng, lngErr := strconv.ParseFloat(fields[count-1], 64)
		if latErr == nil && lngErr == nil {
			return models.AddressRecord{
				Address:  strings.Join(fields[:count-2], fieldSeparator),
				Kind:     models.Resolved,
				Location: models.Coordinates{Latitude: lat, Longitude: lng},
			}
		}
	}

	if count >= 2 {
		reason := fields[count-1]
		// "addr;53.56" is a coordinate line cut short, not a provider status.
		if _, err := strconv.ParseFloat(reason, 64); err != nil && reason != "" {
			return models.AddressRecord{
				Address: strings.Join(fields[:count-1], fieldSeparator),
				Kind:    models.Failed,
				Reason:  reason,
			}
		}
	}

	return models.AddressRecord{Address: fields[0], Kind: models.Failed, Reason: ReasonCorrupt}
}

// ValidAddress reports whether address can be written to the log without splitting its line.
func ValidAddress(address string) bool {
	return !strings.ContainsAny(address, "\r\n")
}

// Lookup returns the record of address, if any.
func (c *AddressCache) Lookup(address string) (models.AddressRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	record, ok := c.records[address]
	return record, ok
}

// Len returns the number of cached records.
func (c *AddressCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}

// RecordResolved stores the coordinates of address and appends "address;lat;lng".
// The in-memory record is kept even when the append fails, in which case a
// *PersistenceError is returned.
func (c *AddressCache) RecordResolved(address string, coords models.Coordinates) error {
	line := strings.Join([]string{
		address,
		strconv.FormatFloat(coords.Latitude, 'f', -1, 64),
		strconv.FormatFloat(coords.Longitude, 'f', -1, 64),
	}, fieldSeparator)

	return c.record(models.AddressRecord{
		Address:  address,
		Kind:     models.Resolved,
		Location: coords,
	}, line)
}

// RecordFailed marks address as permanently failed and appends "address;reason".
func (c *AddressCache) RecordFailed(address, reason string) error {
	return c.record(models.AddressRecord{
		Address: address,
		Kind:    models.Failed,
		Reason:  reason,
	}, address+fieldSeparator+reason)
}

func (c *AddressCache) record(record models.AddressRecord, line string) error {
	if !ValidAddress(record.Address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, record.Address)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.records[record.Address]; ok && existing.IsTerminal() {
		c.log.Debug("Ignoring update of terminal cache entry", "address", record.Address, "status", existing.Kind)
		return nil
	}
	c.records[record.Address] = record

	if _, err := c.file.WriteString(line + "\n"); err != nil {
		return &PersistenceError{Address: record.Address, Err: err}
	}
	if err := c.file.Sync(); err != nil {
		return &PersistenceError{Address: record.Address, Err: err}
	}

	return nil
}

// Close closes the underlying cache file.
func (c *AddressCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.file.Close(); err != nil {
		return fmt.Errorf("failed to close cache file %s: %w", c.path, err)
	}

	return nil
}
