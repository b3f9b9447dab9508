// Package transcript implements the labeled Fiat-Shamir transcript shared by
// every protocol layer, and the per-session random generator derived from it.
//
// A transcript is an append-only sequence of (label, value) records. Each
// record is framed with big-endian length prefixes, so two transcripts are
// equal only if they absorbed the same records in the same order:
//
//	t := transcript.New("xmrsig/frost")
//	t.Append("group_key", Y.Bytes())
//	t.Append("message", msg)
//	rho, err := t.Clone().ChallengeScalar(g, "binding")
//
// Challenges are BLAKE2b-512 digests of the framed records. Deriving a
// challenge absorbs it, so consecutive challenges differ.
package transcript

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"

	"github.com/f3rmion/xmrsig/group"
)

// ChallengeSize is the length of a raw challenge.
const ChallengeSize = blake2b.Size

// Transcript accumulates framed records. The zero value is not usable;
// construct with [New].
type Transcript struct {
	buf []byte
}

// New starts a transcript with a protocol domain label.
func New(domain string) *Transcript {
	t := &Transcript{}
	t.Append("domain", []byte(domain))
	return t
}

// Append absorbs one record. Multiple values are absorbed as separate
// length-prefixed fields under the same label.
func (t *Transcript) Append(label string, values ...[]byte) {
	t.buf = appendField(t.buf, []byte(label))
	t.buf = binary.BigEndian.AppendUint32(t.buf, uint32(len(values)))
	for _, v := range values {
		t.buf = appendField(t.buf, v)
	}
}

// AppendUint64 absorbs an integer record.
func (t *Transcript) AppendUint64(label string, v uint64) {
	t.Append(label, binary.BigEndian.AppendUint64(nil, v))
}

// AppendPoints absorbs the encodings of ps under one label.
func (t *Transcript) AppendPoints(label string, ps ...group.Point) {
	values := make([][]byte, len(ps))
	for i, p := range ps {
		values[i] = p.Bytes()
	}
	t.Append(label, values...)
}

// Clone returns an independent copy of t.
func (t *Transcript) Clone() *Transcript {
	buf := make([]byte, len(t.buf))
	copy(buf, t.buf)
	return &Transcript{buf: buf}
}

// Challenge derives ChallengeSize bytes bound to everything absorbed so far
// and to label, then absorbs the result.
func (t *Transcript) Challenge(label string) []byte {
	t.Append("challenge", []byte(label))
	sum := blake2b.Sum512(t.buf)
	t.Append("output", sum[:])
	return sum[:]
}

// ChallengeScalar derives a challenge and reduces it into g's scalar field.
func (t *Transcript) ChallengeScalar(g group.Group, label string) (group.Scalar, error) {
	return g.ScalarFromWide(t.Challenge(label))
}

// Rand returns a deterministic ChaCha20 keystream keyed by a challenge over
// the transcript. Distinct transcripts yield independent streams.
func (t *Transcript) Rand(label string) io.Reader {
	seed := t.Challenge(label)
	// key = seed[0:32], nonce = seed[32:44]; both lengths are fixed so the
	// constructor cannot fail.
	c, err := chacha20.NewUnauthenticatedCipher(seed[:chacha20.KeySize], seed[chacha20.KeySize:chacha20.KeySize+chacha20.NonceSize])
	if err != nil {
		panic(err)
	}
	return &stream{c: c}
}

type stream struct {
	c *chacha20.Cipher
}

func (s *stream) Read(p []byte) (int, error) {
	clear(p)
	s.c.XORKeyStream(p, p)
	return len(p), nil
}

func appendField(buf, v []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
	return append(buf, v...)
}
