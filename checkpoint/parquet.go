package checkpoint

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/wkalt/tablelog/actions"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

/*
Checkpoints are stored as Snappy-compressed Parquet with one row per reduced
action. Every row carries the checkpoint version and a kind:

    header    one per checkpoint, so an empty table still records its version
    protocol  at most one, payload is the JSON protocol action
    metadata  at most one, payload is the JSON metadata action
    add       one per active file
    remove    one per retained tombstone

Map-valued fields are stored as JSON strings.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	rowHeader   = "header"
	rowProtocol = "protocol"
	rowMetadata = "metadata"
	rowAdd      = "add"
	rowRemove   = "remove"
)

const parallelism = 1

type row struct {
	Kind                 string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Version              int64  `parquet:"name=version, type=INT64"`
	Path                 string `parquet:"name=path, type=BYTE_ARRAY, convertedtype=UTF8"`
	PartitionValues      string `parquet:"name=partition_values, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size                 int64  `parquet:"name=size, type=INT64"`
	ModificationTime     int64  `parquet:"name=modification_time, type=INT64"`
	DeletionTimestamp    int64  `parquet:"name=deletion_timestamp, type=INT64"`
	HasDeletionTimestamp bool   `parquet:"name=has_deletion_timestamp, type=BOOLEAN"`
	DataChange           bool   `parquet:"name=data_change, type=BOOLEAN"`
	ExtendedFileMetadata bool   `parquet:"name=extended_file_metadata, type=BOOLEAN"`
	Tags                 string `parquet:"name=tags, type=BYTE_ARRAY, convertedtype=UTF8"`
	Payload              string `parquet:"name=payload, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func encodeMap(m map[string]string) (string, error) {
	if m == nil {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMap(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func toRows(cp *Checkpoint) ([]row, error) {
	rows := make([]row, 0, 3+len(cp.Files)+len(cp.Tombstones))
	rows = append(rows, row{Kind: rowHeader, Version: cp.Version})
	if cp.Protocol != nil {
		payload, err := json.Marshal(cp.Protocol)
		if err != nil {
			return nil, fmt.Errorf("failed to encode protocol: %w", err)
		}
		rows = append(rows, row{Kind: rowProtocol, Version: cp.Version, Payload: string(payload)})
	}
	if cp.Metadata != nil {
		payload, err := json.Marshal(cp.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		rows = append(rows, row{Kind: rowMetadata, Version: cp.Version, Payload: string(payload)})
	}
	for _, add := range cp.Files {
		partitions, err := encodeMap(add.PartitionValues)
		if err != nil {
			return nil, fmt.Errorf("failed to encode partition values of %s: %w", add.Path, err)
		}
		tags, err := encodeMap(add.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tags of %s: %w", add.Path, err)
		}
		rows = append(rows, row{
			Kind:             rowAdd,
			Version:          cp.Version,
			Path:             add.Path,
			PartitionValues:  partitions,
			Size:             add.Size,
			ModificationTime: add.ModificationTime,
			DataChange:       add.DataChange,
			Tags:             tags,
		})
	}
	for _, remove := range cp.Tombstones {
		partitions, err := encodeMap(remove.PartitionValues)
		if err != nil {
			return nil, fmt.Errorf("failed to encode partition values of %s: %w", remove.Path, err)
		}
		r := row{
			Kind:                 rowRemove,
			Version:              cp.Version,
			Path:                 remove.Path,
			PartitionValues:      partitions,
			Size:                 remove.Size,
			DataChange:           remove.DataChange,
			ExtendedFileMetadata: remove.ExtendedFileMetadata,
		}
		if remove.DeletionTimestamp != nil {
			r.DeletionTimestamp = *remove.DeletionTimestamp
			r.HasDeletionTimestamp = true
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// Encode serializes a checkpoint as Parquet.
func Encode(cp *Checkpoint) ([]byte, error) {
	rows, err := toRows(cp)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewParquetWriter(pfw, new(row), parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			_ = pw.WriteStop()
			return nil, fmt.Errorf("failed to write checkpoint row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finish checkpoint: %w", err)
	}
	if err := pfw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a checkpoint artifact that is expected to be at version.
func Decode(version int64, data []byte) (cp *Checkpoint, err error) {
	defer func() {
		// parquet-go panics on some malformed inputs
		if r := recover(); r != nil {
			cp, err = nil, CorruptCheckpointError{Version: version, Reason: fmt.Sprint(r)}
		}
	}()
	pr, err := reader.NewParquetReader(newBytesFile(data), new(row), parallelism)
	if err != nil {
		return nil, CorruptCheckpointError{Version: version, Reason: err.Error()}
	}
	defer pr.ReadStop()
	rows := make([]row, int(pr.GetNumRows()))
	if err := pr.Read(&rows); err != nil {
		return nil, CorruptCheckpointError{Version: version, Reason: err.Error()}
	}
	return fromRows(version, rows)
}

func fromRows(version int64, rows []row) (*Checkpoint, error) {
	cp := &Checkpoint{
		Version:    version,
		Files:      []actions.AddFile{},
		Tombstones: []actions.RemoveFile{},
	}
	corrupt := func(format string, args ...any) error {
		return CorruptCheckpointError{Version: version, Reason: fmt.Sprintf(format, args...)}
	}
	headers := 0
	for _, r := range rows {
		if r.Version != version {
			return nil, corrupt("row for version %d", r.Version)
		}
		switch r.Kind {
		case rowHeader:
			headers++
		case rowProtocol:
			protocol := &actions.Protocol{}
			if err := json.Unmarshal([]byte(r.Payload), protocol); err != nil {
				return nil, corrupt("bad protocol: %s", err)
			}
			cp.Protocol = protocol
		case rowMetadata:
			metadata := &actions.Metadata{}
			if err := json.Unmarshal([]byte(r.Payload), metadata); err != nil {
				return nil, corrupt("bad metadata: %s", err)
			}
			cp.Metadata = metadata
		case rowAdd:
			partitions, err := decodeMap(r.PartitionValues)
			if err != nil {
				return nil, corrupt("bad partition values for %s: %s", r.Path, err)
			}
			tags, err := decodeMap(r.Tags)
			if err != nil {
				return nil, corrupt("bad tags for %s: %s", r.Path, err)
			}
			cp.Files = append(cp.Files, actions.AddFile{
				Path:             r.Path,
				PartitionValues:  partitions,
				Size:             r.Size,
				ModificationTime: r.ModificationTime,
				DataChange:       r.DataChange,
				Tags:             tags,
			})
		case rowRemove:
			partitions, err := decodeMap(r.PartitionValues)
			if err != nil {
				return nil, corrupt("bad partition values for %s: %s", r.Path, err)
			}
			remove := actions.RemoveFile{
				Path:                 r.Path,
				DataChange:           r.DataChange,
				ExtendedFileMetadata: r.ExtendedFileMetadata,
				PartitionValues:      partitions,
				Size:                 r.Size,
			}
			if r.HasDeletionTimestamp {
				ts := r.DeletionTimestamp
				remove.DeletionTimestamp = &ts
			}
			cp.Tombstones = append(cp.Tombstones, remove)
		default:
			return nil, corrupt("unknown row kind %q", r.Kind)
		}
	}
	if headers != 1 {
		return nil, corrupt("expected one header row, found %d", headers)
	}
	return cp, nil
}

var errReadOnly = errors.New("checkpoint source is read only")

// bytesFile adapts an in-memory artifact to the parquet reader's file
// interface. Open returns an independent cursor over the same bytes, since the
// reader opens one per column.
type bytesFile struct {
	data []byte
	*bytes.Reader
}

func newBytesFile(data []byte) *bytesFile {
	return &bytesFile{data: data, Reader: bytes.NewReader(data)}
}

func (f *bytesFile) Open(string) (source.ParquetFile, error) {
	return newBytesFile(f.data), nil
}

func (f *bytesFile) Create(string) (source.ParquetFile, error) {
	return nil, errReadOnly
}

func (f *bytesFile) Write([]byte) (int, error) {
	return 0, errReadOnly
}

func (f *bytesFile) Close() error {
	return nil
}
