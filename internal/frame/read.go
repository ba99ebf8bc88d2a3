package frame

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

// ReadJSON loads every object matching pattern into a frame with the
// given schema.
//
// Objects may hold any number of JSON documents back to back (JSON lines
// included); a document that is an array contributes each of its objects.
// Fields missing from a record, or whose value cannot be converted to the
// column type, are null. Malformed JSON fails the read.
//
// Objects are read in parallel, and rows are returned in object key order
// followed by document order.
func (s *Session) ReadJSON(ctx context.Context, pattern storage.Path, schema Schema) (*Frame, error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	st, err := s.Store(pattern)
	if err != nil {
		return nil, err
	}

	objs, err := storage.Glob(ctx, st, pattern)
	if err != nil {
		return nil, fmt.Errorf("read json %s: %w", pattern, err)
	}
	if len(objs) == 0 {
		s.log.Warn("no input objects matched", zap.Stringer("pattern", pattern))
		return Empty(schema), nil
	}
	s.log.Info("reading json", zap.Stringer("pattern", pattern), zap.Int("objects", len(objs)))

	parts := make([][]Row, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, obj := range objs {
		i, obj := i, obj
		g.Go(func() error {
			rows, err := s.readObject(gctx, st, obj, schema)
			if err != nil {
				return fmt.Errorf("read %s: %w", obj.Path, err)
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	rows := make([]Row, 0, total)
	for _, p := range parts {
		rows = append(rows, p...)
	}
	return &Frame{schema: schema, rows: rows}, nil
}

func (s *Session) readObject(ctx context.Context, st storage.Store, obj storage.Object, schema Schema) ([]Row, error) {
	rc, err := st.Open(ctx, obj.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cr := &countingReader{r: rc}
	rec, corrupt, err := decodeRecords(cr, schema, s.mem)
	if err != nil {
		return nil, err
	}
	defer rec.Release()
	rows := recordRows(rec)

	s.record(func(m *Metrics) {
		m.ObjectsRead++
		m.BytesRead += cr.n
		m.RecordsRead += int64(len(rows))
		m.CorruptValue += int64(corrupt)
	})
	if corrupt > 0 {
		s.log.Debug("values read as null", zap.Stringer("object", obj.Path), zap.Int("count", corrupt))
	}
	return rows, nil
}

// decodeRecords converts a stream of JSON documents into one Arrow record
// and reports how many present, non-null values had to be nulled. The
// caller releases the record.
func decodeRecords(r io.Reader, schema Schema, mem memory.Allocator) (arrow.Record, int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	b := array.NewRecordBuilder(mem, schema.Schema)
	defer b.Release()

	fields := schema.Fields()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = sourceKey(f)
	}

	corrupt := 0
	for doc := 0; ; doc++ {
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return b.NewRecord(), corrupt, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("malformed json document %d: %w", doc, err)
		}

		var records []map[string]any
		switch x := v.(type) {
		case map[string]any:
			records = append(records, x)
		case []any:
			for i, e := range x {
				m, ok := e.(map[string]any)
				if !ok {
					return nil, 0, fmt.Errorf("document %d element %d is %T, want object", doc, i, e)
				}
				records = append(records, m)
			}
		default:
			return nil, 0, fmt.Errorf("document %d is %T, want object", doc, v)
		}

		for _, rec := range records {
			for i, f := range fields {
				raw, present := rec[keys[i]]
				val, ok := fromJSON(f.Type, raw)
				if !ok && present {
					corrupt++
				}
				if err := appendValue(b.Field(i), val); err != nil {
					return nil, 0, fmt.Errorf("column %q: %w", f.Name, err)
				}
			}
		}
	}
}

// recordRows copies the contents of rec into rows.
func recordRows(rec arrow.Record) []Row {
	cols := rec.Columns()
	rows := make([]Row, rec.NumRows())
	for i := range rows {
		row := make(Row, len(cols))
		for j, c := range cols {
			row[j] = valueAt(c, i)
		}
		rows[i] = row
	}
	return rows
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
