// Package loader reads JSONL files into store collections.
package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/steinarvk/recquery/lib/config"
	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/logging"
	"github.com/steinarvk/recquery/lib/store"
	"go.uber.org/zap"
)

// Fields checked, in order, for a record id. The first one present is
// removed from the record and used as its identity.
var validIDFieldNames = []string{
	"record_id",
	"record_uuid",
	"id",
	"uuid",
}

const (
	defaultMaxLineBytes = 1024 * 1024
	checkContextEvery   = 1000
)

type Options struct {
	MaxLineBytes int
}

func extractID(obj map[string]interface{}) (uuid.UUID, bool, error) {
	for _, name := range validIDFieldNames {
		value, ok := obj[name]
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return uuid.UUID{}, false, fmt.Errorf("invalid ID field %q: not a string", name)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.UUID{}, false, fmt.Errorf("invalid UUID in field %q: %w", name, err)
		}
		delete(obj, name)
		return id, true, nil
	}
	return uuid.UUID{}, false, nil
}

func lineError(lineno int, err error) error {
	return fmt.Errorf("line %d: %w", lineno, err)
}

// LoadReader inserts every JSON object line of r into coll. Blank lines are
// skipped. A bad line does not stop the load; all line errors are returned
// together once the input is exhausted.
func LoadReader(ctx context.Context, coll *store.Collection, r io.Reader, opts Options) (*dexapi.LoadStatsResponse, error) {
	logger := logging.FromContext(ctx)

	maxLineBytes := opts.MaxLineBytes
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLineBytes
	}

	scanner := bufio.NewScanner(r)

	// Handle longer lines
	initial := 64 * 1024
	if initial > maxLineBytes {
		initial = maxLineBytes
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineBytes)

	stats := &dexapi.LoadStatsResponse{Namespace: coll.Name()}
	var result *multierror.Error

	for scanner.Scan() {
		stats.NumLines++
		lineno := stats.NumLines

		if lineno%checkContextEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		decoder := json.NewDecoder(bytes.NewReader(line))
		decoder.UseNumber()

		var obj map[string]interface{}
		if err := decoder.Decode(&obj); err != nil || obj == nil {
			if err == nil {
				err = errors.New("not a JSON object")
			}
			stats.NumError++
			result = multierror.Append(result, lineError(lineno, dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidRecord),
				dexerror.WithPublicMessage("malformed JSON"),
				dexerror.WithCause(err),
			)))
			continue
		}

		id, hasID, err := extractID(obj)
		if err != nil {
			stats.NumError++
			result = multierror.Append(result, lineError(lineno, err))
			continue
		}

		if hasID {
			_, err = coll.InsertWithID(id, obj)
		} else {
			_, err = coll.Insert(obj)
		}
		if err != nil {
			stats.NumError++
			result = multierror.Append(result, lineError(lineno, err))
			continue
		}

		stats.NumInserted++
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("error reading %s after line %d: %w", coll.Name(), stats.NumLines, err)
	}

	logger.Debug("loaded records",
		zap.String("namespace", coll.Name()),
		zap.Int("lines", stats.NumLines),
		zap.Int("inserted", stats.NumInserted),
		zap.Int("errors", stats.NumError))

	return stats, result.ErrorOrNil()
}

func LoadFile(ctx context.Context, coll *store.Collection, filename string, opts Options) (*dexapi.LoadStatsResponse, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadReader(ctx, coll, f, opts)
}

// Reload clears every configured namespace in s and loads it again from its
// data file. Missing data files leave the namespace empty.
func Reload(ctx context.Context, cfg *config.Config, s *store.Store) ([]*dexapi.LoadStatsResponse, error) {
	logger := logging.FromContext(ctx)

	opts := Options{MaxLineBytes: cfg.Limits.MaxLineBytes}

	var allStats []*dexapi.LoadStatsResponse
	var result *multierror.Error

	for _, name := range cfg.NamespaceNames() {
		coll := s.Collection(name)
		coll.Clear()

		filename := cfg.DataFile(name)
		stats, err := LoadFile(ctx, coll, filename, opts)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("no data file for namespace", zap.String("namespace", name), zap.String("filename", filename))
			allStats = append(allStats, &dexapi.LoadStatsResponse{Namespace: name})
			continue
		}
		if stats != nil {
			allStats = append(allStats, stats)
		}
		if err != nil {
			if ctx.Err() != nil {
				return allStats, err
			}
			result = multierror.Append(result, fmt.Errorf("%s: %w", filename, err))
			continue
		}

		logger.Info("loaded namespace",
			zap.String("namespace", name),
			zap.String("filename", filename),
			zap.Int("records", coll.Len()))
	}

	return allStats, result.ErrorOrNil()
}

// Open builds a store for cfg and loads every namespace into it.
func Open(ctx context.Context, cfg *config.Config) (*store.Store, []*dexapi.LoadStatsResponse, error) {
	s, err := cfg.NewStore()
	if err != nil {
		return nil, nil, err
	}

	stats, err := Reload(ctx, cfg, s)
	return s, stats, err
}
