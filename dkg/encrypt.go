package dkg

import (
	"errors"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/f3rmion/xmrsig/group"
	"github.com/f3rmion/xmrsig/party"
)

var errShortCiphertext = errors.New("ciphertext too short")

// shareKey derives the symmetric key for shares sent from -> to. Both ends
// compute the same Diffie-Hellman point: e_from*E_to = e_to*E_from.
func shareKey(dh group.Point, context []byte, from, to party.ID) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("xmrsig/dkg/share-key"))
	h.Write(dh.Bytes())
	h.Write(context)
	h.Write(from.Bytes())
	h.Write(to.Bytes())
	return h.Sum(nil)
}

func shareAD(context []byte, from, to party.ID) []byte {
	ad := append([]byte{}, context...)
	ad = append(ad, from.Bytes()...)
	return append(ad, to.Bytes()...)
}

// sealShare encrypts a share as nonce || XChaCha20-Poly1305 ciphertext.
func sealShare(rng io.Reader, key, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, ad), nil
}

func openShare(key, ciphertext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errShortCiphertext
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, ad)
}
