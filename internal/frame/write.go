package frame

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

const (
	// DefaultPartitionName is the directory value used for null partition keys.
	DefaultPartitionName = "__HIVE_DEFAULT_PARTITION__"
	successMarker        = "_SUCCESS"
	flushEvery           = 100000
)

// WriteOptions configures WriteParquet.
type WriteOptions struct {
	PartitionBy []string
}

// WriteResult summarizes a completed write.
type WriteResult struct {
	Rows       int64
	Partitions int
	Files      int
	Bytes      int64
}

type partition struct {
	dir    string
	values []any
	rows   []Row
}

// WriteParquet stores f under dest as Parquet, replacing whatever dest
// held before.
//
// With PartitionBy the rows are split into Hive style directories
// (col=value/...), in the given column order, and the partition columns are
// left out of the data files. Each directory gets one file. A _SUCCESS
// marker is written last. Output depends only on the frame's contents, so
// rewriting the same frame produces identical objects.
func (s *Session) WriteParquet(ctx context.Context, f *Frame, dest storage.Path, opts WriteOptions) (WriteResult, error) {
	st, err := s.Store(dest)
	if err != nil {
		return WriteResult{}, err
	}

	partIdx := make([]int, len(opts.PartitionBy))
	isPart := make(map[int]bool, len(opts.PartitionBy))
	for i, name := range opts.PartitionBy {
		j, err := f.schema.Index(name)
		if err != nil {
			return WriteResult{}, fmt.Errorf("partition by: %w", err)
		}
		if isPart[j] {
			return WriteResult{}, fmt.Errorf("partition by: column %q listed twice", name)
		}
		partIdx[i] = j
		isPart[j] = true
	}

	var (
		dataIdx    []int
		dataFields []arrow.Field
		dataNames  []string
	)
	for i, field := range f.schema.Fields() {
		if !isPart[i] {
			dataIdx = append(dataIdx, i)
			dataFields = append(dataFields, field)
			dataNames = append(dataNames, field.Name)
		}
	}
	if len(dataFields) == 0 {
		return WriteResult{}, fmt.Errorf("cannot use all columns for partitioning")
	}
	schemaJSON, err := parquetSchema(dataFields)
	if err != nil {
		return WriteResult{}, err
	}

	if err := s.clearDestination(ctx, st, dest); err != nil {
		return WriteResult{}, err
	}

	parts := splitPartitions(f, opts.PartitionBy, partIdx)
	s.log.Info("writing parquet",
		zap.Stringer("dest", dest),
		zap.Int("rows", f.Count()),
		zap.Int("partitions", len(parts)),
		zap.Strings("partition_by", opts.PartitionBy))

	sizes := make([]int64, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range parts {
		i, p := i, p
		g.Go(func() error {
			key := dest
			if p.dir != "" {
				key = key.Join(p.dir)
			}
			key = key.Join(fmt.Sprintf("part-%05d.%s.parquet", i, strings.ToLower(s.compression.String())))

			n, err := s.writePartFile(gctx, st, key, schemaJSON, p.rows, dataIdx, dataNames)
			if err != nil {
				return err
			}
			sizes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WriteResult{}, err
	}

	if err := st.Put(ctx, dest.Join(successMarker), bytes.NewReader(nil), nil); err != nil {
		return WriteResult{}, fmt.Errorf("write %s marker: %w", successMarker, err)
	}

	res := WriteResult{Rows: int64(f.Count()), Partitions: len(parts), Files: len(parts)}
	for _, n := range sizes {
		res.Bytes += n
	}
	s.record(func(m *Metrics) {
		m.FilesWritten += int64(res.Files)
		m.BytesWritten += res.Bytes
		m.RowsWritten += res.Rows
	})
	return res, nil
}

// clearDestination deletes everything under dest, so every write
// overwrites the previous output.
func (s *Session) clearDestination(ctx context.Context, st storage.Store, dest storage.Path) error {
	n, err := st.DeletePrefix(ctx, dest)
	if err != nil {
		return fmt.Errorf("overwrite %s: %w", dest, err)
	}
	if n > 0 {
		s.log.Info("removed previous output", zap.Stringer("dest", dest), zap.Int("objects", n))
	}
	return nil
}

// splitPartitions groups rows by partition directory, sorted by directory
// name. Rows keep their relative order. An unpartitioned frame is a single
// partition with an empty directory, even when it has no rows.
func splitPartitions(f *Frame, names []string, idx []int) []*partition {
	if len(idx) == 0 {
		return []*partition{{rows: f.rows}}
	}

	byDir := make(map[string]*partition)
	for _, r := range f.rows {
		values := make([]any, len(idx))
		elems := make([]string, len(idx))
		for i, j := range idx {
			values[i] = r[j]
			elems[i] = names[i] + "=" + partitionValue(r[j])
		}
		dir := strings.Join(elems, "/")
		p, ok := byDir[dir]
		if !ok {
			p = &partition{dir: dir, values: values}
			byDir[dir] = p
		}
		p.rows = append(p.rows, r)
	}

	out := make([]*partition, 0, len(byDir))
	for _, p := range byDir {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dir < out[j].dir })
	return out
}

func partitionValue(v any) string {
	if v == nil {
		return DefaultPartitionName
	}
	s := formatValue(v)
	if s == "" {
		return DefaultPartitionName
	}
	return escapePathName(s)
}

// escapePathName %-escapes the characters Hive does not allow in
// partition directory names.
func escapePathName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if needsEscape(c) {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func needsEscape(c byte) bool {
	if c < 0x20 || c == 0x7f {
		return true
	}
	return strings.IndexByte("\"#%'*/:=?\\{[]^", c) >= 0
}

type schemaNode struct {
	Tag    string       `json:"Tag"`
	Fields []schemaNode `json:"Fields,omitempty"`
}

// parquetSchema renders the JSON schema definition parquet-go's JSONWriter
// takes. Every column is OPTIONAL so nulls survive.
func parquetSchema(fields []arrow.Field) (string, error) {
	root := schemaNode{Tag: "name=spark_schema, repetitiontype=REQUIRED"}
	for _, f := range fields {
		root.Fields = append(root.Fields, schemaNode{
			Tag: fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", f.Name, parquetTag(f.Type)),
		})
	}
	b, err := json.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("marshal parquet schema: %w", err)
	}
	return string(b), nil
}

// writePartFile writes rows to a local temp Parquet file, uploads it to key
// and returns the file size.
func (s *Session) writePartFile(ctx context.Context, st storage.Store, key storage.Path, schemaJSON string, rows []Row, dataIdx []int, names []string) (int64, error) {
	localFileName := filepath.Join(s.tempDir, fmt.Sprintf("temp_%d_%s", time.Now().UnixNano(), key.Base()))
	defer func() {
		if err := os.Remove(localFileName); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to remove temp file", zap.String("file", localFileName), zap.Error(err))
		}
	}()

	fw, err := local.NewLocalFileWriter(localFileName)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file writer: %w", err)
	}

	pw, err := writer.NewJSONWriter(schemaJSON, fw, s.writerProcs)
	if err != nil {
		fw.Close()
		return 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = s.compression

	rec := make(map[string]any, len(dataIdx))
	for i, r := range rows {
		for k, j := range dataIdx {
			rec[names[k]] = r[j]
		}
		line, err := json.Marshal(rec)
		if err != nil {
			fw.Close()
			return 0, fmt.Errorf("encode row %d: %w", i, err)
		}
		if err := pw.Write(string(line)); err != nil {
			fw.Close()
			return 0, fmt.Errorf("write row %d: %w", i, err)
		}
		if (i+1)%flushEvery == 0 {
			s.log.Debug("flushing row group", zap.Stringer("file", key), zap.Int("written", i+1), zap.Int("total", len(rows)))
			if err := pw.Flush(true); err != nil {
				fw.Close()
				return 0, fmt.Errorf("flush row group: %w", err)
			}
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return 0, fmt.Errorf("error in WriteStop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return 0, fmt.Errorf("error closing file writer: %w", err)
	}

	file, err := os.Open(localFileName)
	if err != nil {
		return 0, fmt.Errorf("failed to open temp file for upload: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to get file info: %w", err)
	}

	err = st.Put(ctx, key, file, map[string]string{
		"record-count": strconv.Itoa(len(rows)),
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("wrote parquet file", zap.Stringer("path", key), zap.Int("rows", len(rows)), zap.Int64("bytes", info.Size()))
	return info.Size(), nil
}
