// SPDX-License-Identifier: Apache-2.0

package gotd

import (
	"context"
	"sync"

	"github.com/gotd/td/session"
)

// blobStorage adapts the orchestrator's opaque []byte session blob to gotd's
// session.Storage. The blob is held in memory only; persisting the wrapped
// form is the credential store's job.
type blobStorage struct {
	mu   sync.Mutex
	data []byte
}

func newBlobStorage(blob []byte) *blobStorage {
	s := &blobStorage{}
	if len(blob) > 0 {
		s.data = append([]byte(nil), blob...)
	}
	return s
}

// LoadSession implements session.Storage.
func (s *blobStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil, session.ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// StoreSession implements session.Storage.
func (s *blobStorage) StoreSession(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
	return nil
}

// Bytes returns a copy of the current session blob, nil when empty.
func (s *blobStorage) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil
	}
	return append([]byte(nil), s.data...)
}
