// Package store persists pulse counts in two file tiers: a durable root that
// is the source of truth across restarts, and a volatile root holding near
// real-time copies for external readers.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// Record names, as read by external consumers.
const (
	CountRecord  = "totalCount"
	PeriodRecord = "lastPeriod"
)

// Default roots.
const (
	DefaultDurableDir  = "/var/lib/gpio-isr"
	DefaultVolatileDir = "/run/gpio-isr"
)

// ErrCorrupt is returned when a record does not hold a decimal number.
var ErrCorrupt = errors.New("corrupt record")

// Dir is a directory of per-line records.
type Dir struct {
	root string
	// fsync flushes the directory after each replaced record, so the rename
	// itself survives a power loss.
	fsync bool
}

// NewDir returns a Dir rooted at root. fsync should be set for media where a
// record must survive a power loss.
func NewDir(root string, fsync bool) *Dir {
	return &Dir{root: root, fsync: fsync}
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the file path of a record.
func (d *Dir) Path(pin int, record string) string {
	return filepath.Join(d.root, fmt.Sprintf("pin%d.%s", pin, record))
}

// Ensure creates the root directory if it does not exist.
func (d *Dir) Ensure() error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", d.root, err)
	}
	return nil
}

// Read returns the value of a record. found is false if the record does not
// exist.
func (d *Dir) Read(pin int, record string) (v uint64, found bool, err error) {
	path := d.Path(pin, record)

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read %q: %w", path, err)
	}

	v, err = strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%q: %w: %v", path, ErrCorrupt, err)
	}
	return v, true, nil
}

// Write replaces a record with v as decimal text. The record is written to a
// temporary file in the same directory, flushed and renamed over the old one,
// so readers never see a partial record.
func (d *Dir) Write(pin int, record string, v uint64) error {
	path := d.Path(pin, record)

	b := strconv.AppendUint(nil, v, 10)
	b = append(b, '\n')
	if err := renameio.WriteFile(path, b, 0o644, renameio.WithTempDir(d.root)); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}

	if d.fsync {
		if err := syncDir(d.root); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
	}
	return nil
}

// syncDir flushes the directory entry of a rename.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
