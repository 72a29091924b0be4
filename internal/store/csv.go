package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/i474232898/forecast-ledger/internal/forecast"
)

// Column positions of the slot key in forecast.Columns.
const (
	colDate = 1
	colHour = 2
)

// CSVStore is a delimited, header-once, append-only record table keyed by
// (date, hour). Concurrent runs against the same file are not coordinated.
type CSVStore struct {
	path        string
	comma       rune
	loc         *time.Location
	format      forecast.Formatter
	skipCorrupt bool
	log         *zap.Logger
}

// CSVOptions configures a CSVStore.
type CSVOptions struct {
	Path      string
	Delimiter string
	TimeZone  *time.Location
	Formatter forecast.Formatter
	// SkipCorrupt skips unparseable rows with a warning instead of failing.
	SkipCorrupt bool
}

// NewCSVStore validates opts and returns a store. The file is not touched
// until the first read or append.
func NewCSVStore(opts CSVOptions, log *zap.Logger) (*CSVStore, error) {
	if opts.Path == "" {
		return nil, errors.New("csv store path is empty")
	}
	comma, err := ParseDelimiter(opts.Delimiter)
	if err != nil {
		return nil, err
	}
	if !opts.Formatter.Valid() {
		return nil, errors.New("csv store needs a number formatter")
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVStore{
		path:        opts.Path,
		comma:       comma,
		loc:         opts.TimeZone,
		format:      opts.Formatter,
		skipCorrupt: opts.SkipCorrupt,
		log:         log,
	}, nil
}

// ParseDelimiter validates a single-rune field delimiter.
func ParseDelimiter(delimiter string) (rune, error) {
	comma, size := utf8.DecodeRuneInString(delimiter)
	if size == 0 || size != len(delimiter) || comma == '"' || comma == '\r' || comma == '\n' || comma == utf8.RuneError {
		return 0, fmt.Errorf("invalid csv delimiter %q", delimiter)
	}
	return comma, nil
}

// ReadState scans every row, building the key set and tracking the latest slot.
func (s *CSVStore) ReadState(ctx context.Context) (forecast.State, error) {
	st := forecast.State{Keys: forecast.KeySet{}}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.comma
	// A row glued onto an unterminated line has too many fields; it must
	// not be read as a valid key.
	r.FieldsPerRecord = len(forecast.Columns)
	r.ReuseRecord = true

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) && s.skipCorrupt {
				s.log.Warn("skipping unreadable row", zap.String("path", s.path), zap.Int("line", line), zap.Error(err))
				st.Skipped++
				continue
			}
			return st, &forecast.CorruptStateError{Source: s.path, Line: line, Err: err}
		}

		if line == 1 && isHeader(row) {
			continue
		}

		slot, err := s.parseRow(row)
		if err != nil {
			if s.skipCorrupt {
				s.log.Warn("skipping corrupt row", zap.String("path", s.path), zap.Int("line", line), zap.Error(err))
				st.Skipped++
				continue
			}
			return st, &forecast.CorruptStateError{Source: s.path, Line: line, Value: strings.Join(row, string(s.comma)), Err: err}
		}

		st.Keys.Add(slot.Key())
		st.Count++
		if st.Last == nil || slot.After(*st.Last) {
			last := slot
			st.Last = &last
		}
	}

	return st, nil
}

func (s *CSVStore) parseRow(row []string) (forecast.Slot, error) {
	if len(row) <= colHour {
		return forecast.Slot{}, fmt.Errorf("expected at least %d fields, got %d", colHour+1, len(row))
	}
	return ParseSlot(row[colDate], row[colHour], s.loc)
}

// ParseSlot parses persisted date and hour columns into a slot. Hours
// with a non-zero minute are rejected.
func ParseSlot(date, hour string, loc *time.Location) (forecast.Slot, error) {
	ts, err := time.ParseInLocation(forecast.DateLayout+" "+forecast.HourLayout,
		strings.TrimSpace(date)+" "+strings.TrimSpace(hour), loc)
	if err != nil {
		return forecast.Slot{}, fmt.Errorf("parse slot: %w", err)
	}
	slot := forecast.NewSlot(ts, loc)
	if !slot.Time.Equal(ts) {
		return forecast.Slot{}, fmt.Errorf("slot %s %s is not hour-aligned", date, hour)
	}
	return slot, nil
}

// Append writes records in a single write call, preceded by the header
// when the file is new or empty. On failure an indeterminate prefix of
// the batch may have reached the file.
func (s *CSVStore) Append(ctx context.Context, records []forecast.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}

	var buf bytes.Buffer
	if info.Size() > 0 {
		terminated, err := endsWithNewline(f, info.Size())
		if err != nil {
			_ = f.Close()
			return 0, &forecast.PersistenceError{Target: s.path, Err: err}
		}
		if !terminated {
			buf.WriteByte('\n')
		}
	}

	w := csv.NewWriter(&buf)
	w.Comma = s.comma
	if info.Size() == 0 {
		_ = w.Write(forecast.Columns)
	}
	for _, rec := range records {
		_ = w.Write(s.format.Row(rec))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return 0, &forecast.PersistenceError{Target: s.path, Err: err}
	}

	s.log.Debug("records appended", zap.String("path", s.path), zap.Int("records", len(records)))
	return len(records), nil
}

// endsWithNewline reports whether the last byte of a non-empty file is '\n'.
// Spreadsheet tools often save without a trailing line break.
func endsWithNewline(f *os.File, size int64) (bool, error) {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, fmt.Errorf("read last byte: %w", err)
	}
	return last[0] == '\n', nil
}

func isHeader(row []string) bool {
	if len(row) < len(forecast.Columns) {
		return false
	}
	// A UTF-8 BOM left by spreadsheet tools must not hide the header.
	first := strings.TrimPrefix(row[0], "\ufeff")
	return first == forecast.Columns[0] && slices.Equal(row[1:len(forecast.Columns)], forecast.Columns[1:])
}
