// Package snapshot stores the values of a queue as a thrift binary struct:
//
//	struct Snapshot {
//	  1: i32          version
//	  2: string       hash
//	  3: list<string> values
//	  4: i64          checksum
//	}
//
// The checksum covers the values and is computed with the named hashkit hash.
package snapshot

import (
	"context"
	"os"

	"github.com/Qthai16/lab0-queue/utils/hashkit"
	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

const (
	Version     int32 = 1
	DefaultHash       = "murmur32"

	fieldVersion  int16 = 1
	fieldHash     int16 = 2
	fieldValues   int16 = 3
	fieldChecksum int16 = 4
)

var (
	ErrChecksum = errors.New("snapshot checksum mismatch")
	ErrVersion  = errors.New("unsupported snapshot version")

	protoConf = &thrift.TConfiguration{
		MaxMessageSize:     256 * 1024 * 1024,
		TBinaryStrictRead:  thrift.BoolPtr(true),
		TBinaryStrictWrite: thrift.BoolPtr(true),
	}
)

type Snapshot struct {
	Version  int32
	Hash     string
	Values   []string
	Checksum int64
}

// New builds a snapshot of values checksummed with hash.
func New(values []string, hash string) (*Snapshot, error) {
	sum, err := hashkit.Checksum(hash, values)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:  Version,
		Hash:     hash,
		Values:   values,
		Checksum: int64(sum),
	}, nil
}

// Verify recomputes the checksum of the values.
func (s *Snapshot) Verify() error {
	if s.Version != Version {
		return errors.Wrapf(ErrVersion, "version %d", s.Version)
	}
	sum, err := hashkit.Checksum(s.Hash, s.Values)
	if err != nil {
		return err
	}
	if int64(sum) != s.Checksum {
		return errors.Wrapf(ErrChecksum, "%s: stored %x, computed %x", s.Hash, uint64(s.Checksum), sum)
	}
	return nil
}

func (s *Snapshot) Write(ctx context.Context, proto thrift.TProtocol) (err error) {
	if err = proto.WriteStructBegin(ctx, "Snapshot"); err != nil {
		return err
	}
	if err = proto.WriteFieldBegin(ctx, "version", thrift.I32, fieldVersion); err != nil {
		return err
	}
	if err = proto.WriteI32(ctx, s.Version); err != nil {
		return err
	}
	if err = proto.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err = proto.WriteFieldBegin(ctx, "hash", thrift.STRING, fieldHash); err != nil {
		return err
	}
	if err = proto.WriteString(ctx, s.Hash); err != nil {
		return err
	}
	if err = proto.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err = proto.WriteFieldBegin(ctx, "values", thrift.LIST, fieldValues); err != nil {
		return err
	}
	if err = proto.WriteListBegin(ctx, thrift.STRING, len(s.Values)); err != nil {
		return err
	}
	for _, v := range s.Values {
		if err = proto.WriteString(ctx, v); err != nil {
			return err
		}
	}
	if err = proto.WriteListEnd(ctx); err != nil {
		return err
	}
	if err = proto.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err = proto.WriteFieldBegin(ctx, "checksum", thrift.I64, fieldChecksum); err != nil {
		return err
	}
	if err = proto.WriteI64(ctx, s.Checksum); err != nil {
		return err
	}
	if err = proto.WriteFieldEnd(ctx); err != nil {
		return err
	}
	if err = proto.WriteFieldStop(ctx); err != nil {
		return err
	}
	if err = proto.WriteStructEnd(ctx); err != nil {
		return err
	}
	return proto.Flush(ctx)
}

// Read decodes a snapshot, unknown fields are skipped.
func (s *Snapshot) Read(ctx context.Context, proto thrift.TProtocol) error {
	if _, err := proto.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, typeId, id, err := proto.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if typeId == thrift.STOP {
			break
		}
		switch {
		case id == fieldVersion && typeId == thrift.I32:
			if s.Version, err = proto.ReadI32(ctx); err != nil {
				return err
			}
		case id == fieldHash && typeId == thrift.STRING:
			if s.Hash, err = proto.ReadString(ctx); err != nil {
				return err
			}
		case id == fieldValues && typeId == thrift.LIST:
			if err = s.readValues(ctx, proto); err != nil {
				return err
			}
		case id == fieldChecksum && typeId == thrift.I64:
			if s.Checksum, err = proto.ReadI64(ctx); err != nil {
				return err
			}
		default:
			if err = proto.Skip(ctx, typeId); err != nil {
				return err
			}
		}
		if err = proto.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return proto.ReadStructEnd(ctx)
}

func (s *Snapshot) readValues(ctx context.Context, proto thrift.TProtocol) error {
	elemType, size, err := proto.ReadListBegin(ctx)
	if err != nil {
		return err
	}
	if elemType != thrift.STRING {
		return thrift.NewTProtocolExceptionWithType(thrift.INVALID_DATA,
			errors.Newf("values: list of %v, want string", elemType))
	}
	s.Values = make([]string, 0, size)
	for i := 0; i < size; i++ {
		v, err := proto.ReadString(ctx)
		if err != nil {
			return err
		}
		s.Values = append(s.Values, v)
	}
	return proto.ReadListEnd(ctx)
}

// Marshal encodes values with the thrift binary protocol.
func Marshal(ctx context.Context, values []string, hash string) ([]byte, error) {
	s, err := New(values, hash)
	if err != nil {
		return nil, err
	}
	buf := thrift.NewTMemoryBuffer()
	if err := s.Write(ctx, thrift.NewTBinaryProtocolConf(buf, protoConf)); err != nil {
		return nil, errors.Wrap(err, "encode snapshot")
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes and verifies a snapshot produced by Marshal.
func Unmarshal(ctx context.Context, data []byte) (*Snapshot, error) {
	buf := thrift.NewTMemoryBufferLen(len(data))
	if _, err := buf.Write(data); err != nil {
		return nil, err
	}
	s := &Snapshot{}
	if err := s.Read(ctx, thrift.NewTBinaryProtocolConf(buf, protoConf)); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

func WriteFile(ctx context.Context, path string, values []string, hash string) error {
	data, err := Marshal(ctx, values, hash)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write snapshot %s", path)
}

func ReadFile(ctx context.Context, path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", path)
	}
	return Unmarshal(ctx, data)
}
