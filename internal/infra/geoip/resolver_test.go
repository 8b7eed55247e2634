package geoip

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewResolverEmptyPathDisablesLookups(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil resolver, got %T", r)
	}
}

func TestNewResolverMissingDatabase(t *testing.T) {
	if _, err := NewResolver(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatalf("expected error for missing database")
	}
}

func TestNilResolverIsUnavailable(t *testing.T) {
	var r *Resolver
	if _, err := r.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close nil resolver: %v", err)
	}
}

func TestParseIP(t *testing.T) {
	cases := map[string]string{
		"8.8.8.8":          "8.8.8.8",
		"10.0.0.1:5123":    "10.0.0.1",
		"[2001:db8::1]:80": "2001:db8::1",
		" ::1 ":            "::1",
	}
	for in, want := range cases {
		got, err := parseIP(in)
		if err != nil {
			t.Fatalf("parseIP(%q): %v", in, err)
		}
		if got.String() != want {
			t.Fatalf("parseIP(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := parseIP("not-an-ip"); !errors.Is(err, ErrInvalidIP) {
		t.Fatalf("expected ErrInvalidIP, got %v", err)
	}
}
