package hashkit

import (
	"hash/fnv"
	"sort"

	"github.com/aviddiviner/go-murmur"
	"github.com/cockroachdb/errors"
)

// Murmur32Seed keeps murmur32 checksums stable across processes.
const Murmur32Seed uint32 = 0x9747b28c

type SumFn func([]byte) uint64

var (
	ErrUnknownHash = errors.New("unknown hash")

	sums = map[string]SumFn{
		"jenkins": func(b []byte) uint64 {
			return uint64(Jenkins(b))
		},
		"murmur32": func(b []byte) uint64 {
			h := murmur.New32(Murmur32Seed)
			h.Write(b)
			return uint64(h.Sum32())
		},
		"murmur64": Murmur64,
		"fnv": func(b []byte) uint64 {
			h := fnv.New64a()
			h.Write(b)
			return h.Sum64()
		},
	}
)

// Names lists the supported hash names in order.
func Names() []string {
	names := make([]string, 0, len(sums))
	for name := range sums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(name string) (SumFn, error) {
	fn, ok := sums[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHash, "%q", name)
	}
	return fn, nil
}

// Checksum hashes the values in order, each followed by a zero byte so
// that ["ab", "c"] and ["a", "bc"] differ.
func Checksum(name string, values []string) (uint64, error) {
	fn, err := Lookup(name)
	if err != nil {
		return 0, err
	}
	size := 0
	for _, v := range values {
		size += len(v) + 1
	}
	buf := make([]byte, 0, size)
	for _, v := range values {
		buf = append(buf, v...)
		buf = append(buf, 0)
	}
	return fn(buf), nil
}
