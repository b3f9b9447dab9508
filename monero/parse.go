package monero

import (
	"bytes"
	"io"

	"filippo.io/edwards25519"
	"github.com/multiformats/go-varint"

	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
)

// Prefix is the decoded prefix of a serialized transaction.
type Prefix struct {
	Version    uint64
	UnlockTime uint64
	Inputs     []PrefixInput
	Outputs    []PrefixOutput
	Extra      []byte
}

// PrefixInput is a txin_to_key entry.
type PrefixInput struct {
	Indices  []uint64 // absolute
	KeyImage *edwards25519.Point
}

// PrefixOutput is a txout_to_tagged_key entry.
type PrefixOutput struct {
	Key     *edwards25519.Point
	ViewTag byte
}

// maxCount bounds decoded element counts.
const maxCount = 1 << 16

// ParsePrefix decodes the prefix at the start of blob and returns it with
// the number of bytes consumed.
func ParsePrefix(blob []byte) (*Prefix, int, error) {
	r := bytes.NewReader(blob)
	p := &Prefix{}
	fail := func(err error) (*Prefix, int, error) {
		return nil, 0, errs.Wrap(errs.InvalidEncoding, "monero.parse", err)
	}

	var err error
	if p.Version, err = varint.ReadUvarint(r); err != nil {
		return fail(err)
	}
	if p.UnlockTime, err = varint.ReadUvarint(r); err != nil {
		return fail(err)
	}
	n, err := readCount(r)
	if err != nil {
		return fail(err)
	}
	for range n {
		tag, err := r.ReadByte()
		if err != nil {
			return fail(err)
		}
		if tag != tagTxinToKey {
			return fail(errs.New(errs.InvalidEncoding, "monero.parse", "input tag %#x", tag))
		}
		if _, err := varint.ReadUvarint(r); err != nil {
			return fail(err)
		}
		k, err := readCount(r)
		if err != nil {
			return fail(err)
		}
		in := PrefixInput{Indices: make([]uint64, k)}
		var abs uint64
		for j := range k {
			off, err := varint.ReadUvarint(r)
			if err != nil {
				return fail(err)
			}
			abs += off
			in.Indices[j] = abs
		}
		if in.KeyImage, err = readPoint(r); err != nil {
			return fail(err)
		}
		p.Inputs = append(p.Inputs, in)
	}

	n, err = readCount(r)
	if err != nil {
		return fail(err)
	}
	for range n {
		if _, err := varint.ReadUvarint(r); err != nil {
			return fail(err)
		}
		tag, err := r.ReadByte()
		if err != nil {
			return fail(err)
		}
		if tag != tagTxoutTaggedKey {
			return fail(errs.New(errs.InvalidEncoding, "monero.parse", "output tag %#x", tag))
		}
		var o PrefixOutput
		if o.Key, err = readPoint(r); err != nil {
			return fail(err)
		}
		if o.ViewTag, err = r.ReadByte(); err != nil {
			return fail(err)
		}
		p.Outputs = append(p.Outputs, o)
	}

	extraLen, err := readCount(r)
	if err != nil {
		return fail(err)
	}
	p.Extra = make([]byte, extraLen)
	if _, err := io.ReadFull(r, p.Extra); err != nil {
		return fail(err)
	}
	return p, len(blob) - r.Len(), nil
}

func readCount(r *bytes.Reader) (int, error) {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, errs.New(errs.InvalidEncoding, "monero.parse", "count %d too large", n)
	}
	return int(n), nil
}

func readPoint(r *bytes.Reader) (*edwards25519.Point, error) {
	var b [32]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	p, err := ed25519.DecodePoint(b[:])
	if err != nil {
		return nil, err
	}
	return p.Inner(), nil
}
