package credential

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

var contractCounter atomic.Int64

// ContractTest defines a standard test suite that all stores must pass
type ContractTest struct {
	// CreateStore creates a new instance of the store to test.
	// Stores created by one ContractTest must share their backing storage.
	CreateStore func(t *testing.T) Store

	// SkipNonASCII skips byte content that the backend cannot hold.
	SkipNonASCII bool

	// SkipConcurrency skips the parallel round-trip test.
	SkipConcurrency bool
}

// RunContractTests runs the standard store contract test suite
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Persistence", func(t *testing.T) {
			testStorePersistence(t, contract)
		})

		t.Run("StoreMethods", func(t *testing.T) {
			testStoreMethods(t, contract)
		})

		t.Run("EmptySpecifiers", func(t *testing.T) {
			testEmptySpecifiers(t, contract)
		})

		t.Run("RoundTrip", func(t *testing.T) {
			testRoundTrip(t, contract)
		})

		t.Run("MissingEntry", func(t *testing.T) {
			testMissingEntry(t, contract)
		})

		if !contract.SkipConcurrency {
			t.Run("Concurrency", func(t *testing.T) {
				testConcurrentRoundTrips(t, contract)
			})
		}
	})
}

func uniqueName(t *testing.T, prefix string) string {
	return fmt.Sprintf("%s-%s-%d", prefix, t.Name(), contractCounter.Add(1))
}

func testStorePersistence(t *testing.T, contract ContractTest) {
	s := contract.CreateStore(t)
	if got := s.Persistence(); got != PersistenceUntilDelete {
		t.Errorf("Store.Persistence() = %v, want %v", got, PersistenceUntilDelete)
	}
}

func testStoreMethods(t *testing.T, contract ContractTest) {
	s1 := contract.CreateStore(t)
	s2 := contract.CreateStore(t)

	if s1.Vendor() == "" {
		t.Error("Store.Vendor() returned empty string")
	}
	if s1.Vendor() != s1.Vendor() || s1.ID() != s1.ID() {
		t.Error("Store.Vendor() or Store.ID() not stable")
	}
	if s1.Vendor() != s2.Vendor() {
		t.Errorf("Store.Vendor() differs between instances: %q != %q", s1.Vendor(), s2.Vendor())
	}
	if s1.ID() == s2.ID() {
		t.Errorf("Store.ID() shared between instances: %q", s1.ID())
	}
}

func testEmptySpecifiers(t *testing.T, contract ContractTest) {
	s := contract.CreateStore(t)

	for _, tc := range []struct {
		service, user, param string
	}{
		{"", "user", "service"},
		{"service", "", "user"},
	} {
		_, err := s.Build(tc.service, tc.user, nil)
		var invalid *InvalidError
		if !errors.As(err, &invalid) {
			t.Errorf("Build(%q, %q) error = %v, want InvalidError", tc.service, tc.user, err)
			continue
		}
		if invalid.Parameter != tc.param {
			t.Errorf("Build(%q, %q) parameter = %q, want %q", tc.service, tc.user, invalid.Parameter, tc.param)
		}
	}
}

func testRoundTrip(t *testing.T, contract ContractTest) {
	s := contract.CreateStore(t)

	cases := map[string][]byte{
		"ascii": []byte("test ascii password"),
		"empty": {},
	}
	if !contract.SkipNonASCII {
		cases["non-ascii"] = []byte("このきれいな花は桜です")
		cases["binary"] = []byte{0x00, 0xff, 0x10, 0x80, 0xc3}
	}

	for name, secret := range cases {
		entry, err := s.Build(uniqueName(t, "service"), uniqueName(t, "user"), nil)
		if err != nil {
			t.Fatalf("%s: Build() error = %v", name, err)
		}
		if err := entry.SetSecret(secret); err != nil {
			t.Fatalf("%s: SetSecret() error = %v", name, err)
		}
		got, err := entry.GetSecret()
		if err != nil {
			t.Fatalf("%s: GetSecret() error = %v", name, err)
		}
		if string(got) != string(secret) {
			t.Errorf("%s: GetSecret() = %v, want %v", name, got, secret)
		}
		if err := entry.DeleteCredential(); err != nil {
			t.Fatalf("%s: DeleteCredential() error = %v", name, err)
		}
		if _, err := entry.GetSecret(); !errors.Is(err, ErrNoEntry) {
			t.Errorf("%s: GetSecret() after delete error = %v, want ErrNoEntry", name, err)
		}
	}
}

func testMissingEntry(t *testing.T, contract ContractTest) {
	s := contract.CreateStore(t)

	entry, err := s.Build(uniqueName(t, "missing"), uniqueName(t, "nobody"), nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := entry.GetPassword(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("GetPassword() error = %v, want ErrNoEntry", err)
	}
	if err := entry.DeleteCredential(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("DeleteCredential() error = %v, want ErrNoEntry", err)
	}
	if _, err := entry.GetCredential(); !errors.Is(err, ErrNoEntry) {
		t.Errorf("GetCredential() error = %v, want ErrNoEntry", err)
	}
}

func testConcurrentRoundTrips(t *testing.T, contract ContractTest) {
	s := contract.CreateStore(t)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		entry, err := s.Build(uniqueName(t, fmt.Sprintf("service-%d", i)), uniqueName(t, fmt.Sprintf("user-%d", i)), nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		wg.Add(1)
		go func(i int, entry *Entry) {
			defer wg.Done()
			password := fmt.Sprintf("password for thread %d", i)
			if err := entry.SetPassword(password); err != nil {
				errs <- fmt.Errorf("thread %d: SetPassword: %w", i, err)
				return
			}
			got, err := entry.GetPassword()
			if err != nil {
				errs <- fmt.Errorf("thread %d: GetPassword: %w", i, err)
				return
			}
			if got != password {
				errs <- fmt.Errorf("thread %d: got %q, want %q", i, got, password)
				return
			}
			if err := entry.DeleteCredential(); err != nil {
				errs <- fmt.Errorf("thread %d: DeleteCredential: %w", i, err)
				return
			}
			if _, err := entry.GetPassword(); !errors.Is(err, ErrNoEntry) {
				errs <- fmt.Errorf("thread %d: GetPassword after delete: %v", i, err)
			}
		}(i, entry)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
