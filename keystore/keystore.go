// Package keystore persists key shares for participants.
//
// Shares are stored in their frost.MarshalKeyShare encoding under a key
// derived from the wallet name and participant ID. The signing core never
// touches the store; a participant process loads its share at startup and
// hands it to participant.New.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davidlazar/go-crypto/encoding/base32"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	flatfs "github.com/ipfs/go-ds-flatfs"

	"github.com/f3rmion/xmrsig/frost"
	"github.com/f3rmion/xmrsig/party"
)

// ErrNotFound is returned when no share is stored under a name.
var ErrNotFound = errors.New("keystore: share not found")

// ErrExists is returned by Put when a share is already stored.
var ErrExists = errors.New("keystore: share already stored")

// Store reads and writes key shares.
type Store struct {
	ds    datastore.Datastore
	frost *frost.FROST
}

// New wraps an existing datastore.
func New(ds datastore.Datastore, f *frost.FROST) *Store {
	return &Store{ds: ds, frost: f}
}

// NewMemory returns a store kept in memory.
func NewMemory(f *frost.FROST) *Store {
	return New(dssync.MutexWrap(datastore.NewMapDatastore()), f)
}

// Open opens or creates a flatfs store at path.
func Open(path string, f *frost.FROST) (*Store, error) {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	fs, err := flatfs.CreateOrOpen(path, flatfs.NextToLast(2), true)
	if err != nil {
		return nil, fmt.Errorf("keystore: open %s: %w", path, err)
	}
	return New(fs, f), nil
}

func makeKey(name string, id party.ID) datastore.Key {
	k := base32.EncodeToString([]byte(name + "-" + strconv.Itoa(int(id))))
	return datastore.NewKey(strings.ToUpper(k))
}

// Put stores share under name. An existing share is never overwritten.
func (s *Store) Put(ctx context.Context, name string, share *frost.KeyShare) error {
	key := makeKey(name, share.ID)
	exists, err := s.ds.Has(ctx, key)
	if err != nil {
		return fmt.Errorf("keystore: query %s/%d: %w", name, share.ID, err)
	}
	if exists {
		return fmt.Errorf("%w: %s/%d", ErrExists, name, share.ID)
	}
	if err := s.ds.Put(ctx, key, s.frost.MarshalKeyShare(share)); err != nil {
		return fmt.Errorf("keystore: put %s/%d: %w", name, share.ID, err)
	}
	return s.ds.Sync(ctx, key)
}

// Get loads and validates the share of id under name.
func (s *Store) Get(ctx context.Context, name string, id party.ID) (*frost.KeyShare, error) {
	data, err := s.ds.Get(ctx, makeKey(name, id))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("keystore: get %s/%d: %w", name, id, err)
	}
	share, err := s.frost.UnmarshalKeyShare(data)
	if err != nil {
		return nil, fmt.Errorf("keystore: decode %s/%d: %w", name, id, err)
	}
	if share.ID != id {
		return nil, fmt.Errorf("keystore: %s/%d holds the share of %d", name, id, share.ID)
	}
	return share, nil
}

// Delete removes the share of id under name.
func (s *Store) Delete(ctx context.Context, name string, id party.ID) error {
	if err := s.ds.Delete(ctx, makeKey(name, id)); err != nil {
		return fmt.Errorf("keystore: delete %s/%d: %w", name, id, err)
	}
	return nil
}

// Close closes the underlying datastore.
func (s *Store) Close() error {
	return s.ds.Close()
}
