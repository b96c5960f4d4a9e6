package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/Sadman-Ilham/opencrvs-core/internal/common"
	"github.com/Sadman-Ilham/opencrvs-core/internal/cryptox"
)

// Keys reserved by SealedStore. They are stored in clear text.
const (
	sealSaltKey     = "meta/seal/salt"
	sealVerifierKey = "meta/seal/verifier"
)

// ErrWrongPassphrase is returned by OpenSealed when the passphrase does not
// match the one the store was sealed with.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// SealedStore encrypts values of an inner Store. Keys stay in clear text
// so prefix listing keeps working.
type SealedStore struct {
	inner Store
	key   []byte
}

// OpenSealed derives the store key from passphrase. On first use it
// generates a salt and records a verifier; afterwards the passphrase is
// checked against that verifier.
func OpenSealed(ctx context.Context, inner Store, passphrase []byte) (*SealedStore, error) {
	salt, err := inner.Get(ctx, sealSaltKey)
	if err != nil {
		return nil, err
	}

	if salt == nil {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		key := cryptox.DeriveMasterKey(passphrase, salt)
		err := inner.Update(ctx, func(ctx context.Context, b Batch) error {
			if err := b.Set(ctx, sealSaltKey, salt); err != nil {
				return err
			}
			return b.Set(ctx, sealVerifierKey, cryptox.MakeVerifier(key))
		})
		if err != nil {
			return nil, err
		}
		return &SealedStore{inner: inner, key: key}, nil
	}

	key := cryptox.DeriveMasterKey(passphrase, salt)
	verifier, err := inner.Get(ctx, sealVerifierKey)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(verifier, cryptox.MakeVerifier(key)) {
		return nil, ErrWrongPassphrase
	}
	return &SealedStore{inner: inner, key: key}, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return sealedOps{b: s.inner, key: s.key}.Get(ctx, key)
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	return sealedOps{b: s.inner, key: s.key}.Set(ctx, key, value)
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k == sealSaltKey || k == sealVerifierKey {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *SealedStore) Update(ctx context.Context, fn func(ctx context.Context, b Batch) error) error {
	return s.inner.Update(ctx, func(ctx context.Context, b Batch) error {
		return fn(ctx, sealedOps{b: b, key: s.key})
	})
}

type sealedOps struct {
	b   Batch
	key []byte
}

func (o sealedOps) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := o.b.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(o.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("open kv[%s]: %w: %w", key, common.ErrStorageFailure, err)
	}
	return plain, nil
}

func (o sealedOps) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(o.key, value)
	if err != nil {
		return fmt.Errorf("seal kv[%s]: %w: %w", key, common.ErrStorageFailure, err)
	}
	return o.b.Set(ctx, key, sealed)
}

func (o sealedOps) Remove(ctx context.Context, key string) error {
	return o.b.Remove(ctx, key)
}
