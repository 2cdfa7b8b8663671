// Package csvfile stores a ledger as a flat CSV file with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"finance/internal/core"
	"finance/internal/table"
)

var _ table.Store = (*Store)(nil)

type Store struct {
	path string
}

// New returns a store for the ledger file of userName inside dir.
func New(dir, userName string) *Store {
	return &Store{path: filepath.Join(dir, FileName(userName))}
}

// NewAtPath uses an explicit file path.
func NewAtPath(path string) *Store {
	return &Store{path: path}
}

// FileName is the ledger file name derived from a user name.
func FileName(userName string) string {
	return fmt.Sprintf("personal_finance_%s.csv", userName)
}

func (s *Store) Path() string { return s.path }

// ReadAll implements table.Reader.
func (s *Store) ReadAll(_ context.Context) ([]core.Record, error) {
	header, rows, err := s.read()
	if err != nil {
		return nil, err
	}
	records, err := table.DecodeRows(header, rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return records, nil
}

// LatestSession implements table.SessionReader.
func (s *Store) LatestSession(_ context.Context) (core.SessionToken, error) {
	header, rows, err := s.read()
	if err != nil {
		return core.SessionToken{}, err
	}
	tok, err := table.LatestSessionCell(header, rows)
	if err != nil {
		return core.SessionToken{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return tok, nil
}

// ReplaceAll implements table.Writer. The file is written next to the
// target and renamed over it, so readers never see a partial ledger.
func (s *Store) ReplaceAll(_ context.Context, rows []core.Record) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := writeRows(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// CreateIfMissing implements table.Initializer by writing a header-only file.
func (s *Store) CreateIfMissing(ctx context.Context) (bool, error) {
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return false, fmt.Errorf("create ledger directory: %w", err)
	}
	if err := s.ReplaceAll(ctx, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) read() ([]string, [][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("ledger file %s: %w", s.path, core.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", s.path, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return header, rows, nil
}

func writeRows(w io.Writer, rows []core.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(table.EncodeRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
