package credstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMemStoreRoundTrip(t *testing.T) {
	s := Memory()
	defer s.Close()

	if _, err := s.Get(KeyAuthToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(KeyAuthToken, "abc"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get(KeyAuthToken)
	if err != nil || v != "abc" {
		t.Fatalf("got %q, %v", v, err)
	}
	if err := s.Delete(KeyAuthToken); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(KeyAuthToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDiskStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Set(KeyRefreshToken, "r1"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get(KeyRefreshToken)
	if err != nil || v != "r1" {
		t.Fatalf("got %q, %v", v, err)
	}
	if _, err := s.Get("unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(KeyRefreshToken); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(KeyRefreshToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAuthTokenHelper(t *testing.T) {
	if AuthToken(nil) != "" {
		t.Fatalf("nil store must yield empty token")
	}
	s := Memory()
	if AuthToken(s) != "" {
		t.Fatalf("missing key must yield empty token")
	}
	_ = s.Set(KeyAuthToken, "tok")
	if AuthToken(s) != "tok" {
		t.Fatalf("expected stored token")
	}
}
