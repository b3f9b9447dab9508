package frost

import (
	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/blake2b"

	"github.com/f3rmion/xmrsig/group"
)

// Hasher derives the challenge of the generic Schnorr algorithm. CLSAG
// sessions use their own Keccak based hashes and ignore it.
type Hasher interface {
	// H2 returns H(R || Y || msg) as a scalar.
	H2(g group.Group, R, Y, msg []byte) group.Scalar
}

// SHA256Hasher is the default Hasher.
type SHA256Hasher struct{}

func (h *SHA256Hasher) hash(data ...[]byte) []byte {
	hasher := sha256.New()
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// hashToScalar expands the input to 64 bytes with two counter-prefixed
// SHA-256 calls and reduces the result.
func (h *SHA256Hasher) hashToScalar(g group.Group, data ...[]byte) group.Scalar {
	wide := h.hash(append([][]byte{{0}}, data...)...)
	wide = append(wide, h.hash(append([][]byte{{1}}, data...)...)...)
	s, err := g.ScalarFromWide(wide)
	if err != nil {
		panic(err) // every group accepts 64 bytes
	}
	return s
}

// H2 implements Hasher.
func (h *SHA256Hasher) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return h.hashToScalar(g, []byte("chal"), R, Y, msg)
}

// Blake2bHasher hashes prefix || tag || input with Blake2b-512.
type Blake2bHasher struct {
	// Prefix is the domain separation prefix.
	Prefix string
}

// NewBlake2bHasher creates a Blake2bHasher with the default prefix.
func NewBlake2bHasher() *Blake2bHasher {
	return &Blake2bHasher{
		Prefix: "XMRSIG-SCHNORR-BLAKE512-v1",
	}
}

func (h *Blake2bHasher) hash(tag string, data ...[]byte) []byte {
	hasher, _ := blake2b.New512(nil)
	hasher.Write([]byte(h.Prefix))
	hasher.Write([]byte(tag))
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// hashToScalar reduces the 64-byte digest with the group's wide reduction.
func (h *Blake2bHasher) hashToScalar(g group.Group, tag string, data ...[]byte) group.Scalar {
	s, err := g.ScalarFromWide(h.hash(tag, data...))
	if err != nil {
		panic(err)
	}
	return s
}

// H2 implements Hasher.
func (h *Blake2bHasher) H2(g group.Group, R, Y, msg []byte) group.Scalar {
	return h.hashToScalar(g, "chal", R, Y, msg)
}
