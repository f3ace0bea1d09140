package hashkit

import "hash"

// jenkins32 is Bob Jenkins' one-at-a-time hash as a streaming hash.Hash32.
// Write mixes bytes in, the final avalanche is applied by Sum32.
type jenkins32 uint32

func NewJenkins32() hash.Hash32 {
	var s jenkins32
	return &s
}

func (s *jenkins32) BlockSize() int { return 1 }
func (s *jenkins32) Reset()         { *s = 0 }
func (s *jenkins32) Size() int      { return 4 }

func (s *jenkins32) Write(data []byte) (int, error) {
	h := uint32(*s)
	for _, b := range data {
		h += uint32(b)
		h += h << 10
		h ^= h >> 6
	}
	*s = jenkins32(h)
	return len(data), nil
}

func (s *jenkins32) Sum32() uint32 {
	return finalizeJenkins(uint32(*s))
}

func (s *jenkins32) Sum(in []byte) []byte {
	v := s.Sum32()
	return append(in, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func finalizeJenkins(h uint32) uint32 {
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// Jenkins hashes data in one call.
func Jenkins(data []byte) uint32 {
	h := NewJenkins32()
	h.Write(data)
	return h.Sum32()
}
