// Package testsupport provides fixtures and an in-memory storefront backend,
// callable in process or over HTTP, for tests and examples.
package testsupport

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-storefront-cache/catalog"
)

//go:embed testdata/seed.json
var seedJSON []byte

// Account is a registered storefront user.
type Account struct {
	ID         int64             `json:"id"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Seed is the initial content of a Storefront.
type Seed struct {
	Accounts []Account         `json:"accounts"`
	Products []catalog.Product `json:"products"`
}

// DefaultSeed returns the bundled accounts and products: two users (ada and
// alan) and ten products across the phones, laptops and audio categories.
func DefaultSeed() Seed {
	var s Seed
	if err := json.Unmarshal(seedJSON, &s); err != nil {
		panic(fmt.Sprintf("testsupport: bundled seed: %v", err))
	}
	return s
}

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadSeed reads a Seed from a fixture file.
func LoadSeed(t testing.TB, path string) Seed {
	t.Helper()

	var s Seed
	LoadFixtureJSON(t, path, &s)
	return s
}

// CompareWithGoldenJSON compares the indented JSON of actual with a golden
// file, creating the file when it does not exist yet.
func CompareWithGoldenJSON(t testing.TB, path string, actual any) {
	t.Helper()

	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal JSON for golden file %s: %v", path, err)
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			t.Fatalf("failed to read golden file %s: %v", path, err)
		}
		t.Logf("Golden file %s does not exist, creating it", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("failed to write golden file %s: %v", path, err)
		}
		return
	}

	if string(data) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, data)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
