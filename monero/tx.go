package monero

import (
	"bytes"

	"filippo.io/edwards25519"
	"github.com/multiformats/go-varint"

	"github.com/f3rmion/xmrsig/clsag"
	"github.com/f3rmion/xmrsig/ed25519"
	"github.com/f3rmion/xmrsig/errs"
)

const (
	txVersion = 2

	tagTxinToKey       = 0x02
	tagTxoutTaggedKey  = 0x03
	rctTypeBulletproof = 6 // RCTTypeBulletproofPlus
)

// TxInput is a signed input: ring, key image and CLSAG.
type TxInput struct {
	// Indices are absolute; the prefix stores them relative.
	Indices   []uint64
	Ring      clsag.Ring
	KeyImage  *edwards25519.Point
	PseudoOut *edwards25519.Point
	Signature *clsag.Signature
}

// TxOutput is a tagged-key output with its commitment.
type TxOutput struct {
	Key             *edwards25519.Point
	ViewTag         byte
	Commitment      *edwards25519.Point
	EncryptedAmount [8]byte
}

// Transaction is a RingCT (BulletproofPlus) transaction under assembly.
type Transaction struct {
	Inputs     []TxInput
	Outputs    []TxOutput
	Fee        uint64
	Extra      []byte
	RangeProof RangeProof
}

// CompletedTransaction is a fully signed, verified transaction.
type CompletedTransaction struct {
	Blob      []byte
	Hash      [32]byte
	KeyImages []*edwards25519.Point
}

// Transaction builds the unsigned transaction for p with the combined key
// images and pseudo-output commitments of every input.
func (p *Plan) Transaction(keyImages, pseudoOuts []*edwards25519.Point) (*Transaction, error) {
	const op = "monero.tx"
	if len(keyImages) != len(p.Inputs) || len(pseudoOuts) != len(p.Inputs) {
		return nil, errs.New(errs.ProtocolViolation, op, "%d key images, %d pseudo-outputs for %d inputs", len(keyImages), len(pseudoOuts), len(p.Inputs))
	}
	tx := &Transaction{
		Inputs:     make([]TxInput, len(p.Inputs)),
		Outputs:    make([]TxOutput, len(p.Outputs)),
		Fee:        p.Fee,
		Extra:      p.Extra,
		RangeProof: p.RangeProof,
	}
	for i, in := range p.Inputs {
		if keyImages[i] == nil || pseudoOuts[i] == nil {
			return nil, errs.New(errs.ProtocolViolation, op, "incomplete input").WithInput(i)
		}
		tx.Inputs[i] = TxInput{Indices: in.Indices, Ring: in.Ring, KeyImage: keyImages[i], PseudoOut: pseudoOuts[i]}
	}
	for i, o := range p.Outputs {
		tx.Outputs[i] = TxOutput{Key: o.Key, ViewTag: o.ViewTag, Commitment: o.Commitment, EncryptedAmount: o.EncryptedAmount}
	}
	return tx, nil
}

// Prefix serializes the transaction prefix.
func (tx *Transaction) Prefix() []byte {
	var b bytes.Buffer
	putVarint(&b, txVersion)
	putVarint(&b, 0) // unlock time
	putVarint(&b, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		b.WriteByte(tagTxinToKey)
		putVarint(&b, 0) // amount, hidden
		putVarint(&b, uint64(len(in.Indices)))
		for _, off := range relativeOffsets(in.Indices) {
			putVarint(&b, off)
		}
		b.Write(in.KeyImage.Bytes())
	}
	putVarint(&b, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		putVarint(&b, 0)
		b.WriteByte(tagTxoutTaggedKey)
		b.Write(o.Key.Bytes())
		b.WriteByte(o.ViewTag)
	}
	putVarint(&b, uint64(len(tx.Extra)))
	b.Write(tx.Extra)
	return b.Bytes()
}

// Base serializes the RingCT base: type, fee, encrypted amounts and output
// commitments.
func (tx *Transaction) Base() []byte {
	var b bytes.Buffer
	b.WriteByte(rctTypeBulletproof)
	putVarint(&b, tx.Fee)
	for _, o := range tx.Outputs {
		b.Write(o.EncryptedAmount[:])
	}
	for _, o := range tx.Outputs {
		b.Write(o.Commitment.Bytes())
	}
	return b.Bytes()
}

// Prunable serializes the range proof, every CLSAG and the pseudo-outputs.
// Inputs without a signature are skipped, so call it only once signed.
func (tx *Transaction) Prunable() []byte {
	var b bytes.Buffer
	b.Write(tx.RangeProof.Serialized)
	for _, in := range tx.Inputs {
		if in.Signature == nil {
			continue
		}
		for _, s := range in.Signature.S {
			b.Write(s.Bytes())
		}
		b.Write(in.Signature.C1.Bytes())
		b.Write(in.Signature.D.Bytes())
	}
	for _, in := range tx.Inputs {
		b.Write(in.PseudoOut.Bytes())
	}
	return b.Bytes()
}

// SigningHash is the message every CLSAG signs:
//
//	H(H(prefix) || H(base) || H(range proof keys))
func (tx *Transaction) SigningHash() [32]byte {
	prefix := ed25519.Keccak256(tx.Prefix())
	base := ed25519.Keccak256(tx.Base())
	proof := ed25519.Keccak256(tx.RangeProof.HashData)
	return ed25519.Keccak256(prefix[:], base[:], proof[:])
}

// Hash is the transaction ID: H(H(prefix) || H(base) || H(prunable)).
func (tx *Transaction) Hash() [32]byte {
	prefix := ed25519.Keccak256(tx.Prefix())
	base := ed25519.Keccak256(tx.Base())
	prunable := ed25519.Keccak256(tx.Prunable())
	return ed25519.Keccak256(prefix[:], base[:], prunable[:])
}

// Complete verifies every CLSAG against the signing hash and the balance
// of pseudo-outputs against outputs plus fee, then serializes.
func (tx *Transaction) Complete() (*CompletedTransaction, error) {
	const op = "monero.complete"
	msg := tx.SigningHash()
	images := make([]*edwards25519.Point, len(tx.Inputs))
	pseudo := make([]*edwards25519.Point, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if in.Signature == nil {
			return nil, errs.New(errs.ProtocolViolation, op, "input not signed").WithInput(i)
		}
		if err := clsag.Verify(in.Signature, msg[:], in.Ring, in.KeyImage, in.PseudoOut); err != nil {
			return nil, errs.Wrap(errs.ChallengeMismatch, op, err).WithInput(i).WithCheck("clsag")
		}
		images[i] = in.KeyImage
		pseudo[i] = in.PseudoOut
	}
	outs := make([]*edwards25519.Point, len(tx.Outputs))
	for i, o := range tx.Outputs {
		outs[i] = o.Commitment
	}
	if err := CheckBalance(pseudo, outs, tx.Fee); err != nil {
		return nil, err
	}

	blob := append(append(tx.Prefix(), tx.Base()...), tx.Prunable()...)
	return &CompletedTransaction{Blob: blob, Hash: tx.Hash(), KeyImages: images}, nil
}

func relativeOffsets(abs []uint64) []uint64 {
	out := make([]uint64, len(abs))
	var prev uint64
	for i, v := range abs {
		out[i] = v - prev
		prev = v
	}
	return out
}

func putVarint(b *bytes.Buffer, v uint64) {
	b.Write(varint.ToUvarint(v))
}
