package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer holds one secret sealed in a memguard enclave.
//
// A zero-length secret is represented without an enclave, since memguard
// refuses to seal empty data.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewSecureBuffer seals a copy of data. The caller's slice is left intact;
// memguard wipes only the private copy it is handed.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return &SecureBuffer{empty: true}, nil
	}
	private := make([]byte, len(data))
	copy(private, data)
	return &SecureBuffer{enclave: memguard.NewEnclave(private)}, nil
}

// Open decrypts the secret into a locked buffer. The caller must Destroy the
// returned buffer when done.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.empty {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return s.enclave.Open()
}

// Copy returns the plaintext in ordinary memory and wipes the intermediate
// locked buffer.
func (s *SecureBuffer) Copy() ([]byte, error) {
	locked, err := s.Open()
	if err != nil {
		return nil, err
	}
	defer locked.Destroy()

	out := make([]byte, locked.Size())
	copy(out, locked.Bytes())
	return out, nil
}

// Destroy releases the enclave. It is idempotent; after Destroy, Open
// returns an empty buffer.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.enclave = nil
	s.destroyed = true
}
