package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/goliatone/go-offline-store/store"
)

// FixturePath returns the path of name inside the package testdata directory.
func FixturePath(name string) string {
	return filepath.Join("testdata", name)
}

// LoadFixture reads testdata/<name> of the calling package.
func LoadFixture(t *testing.T, name string) []byte {
	t.Helper()

	data, err := os.ReadFile(FixturePath(name))
	if err != nil {
		t.Fatalf("load fixture %s: %v", name, err)
	}
	return data
}

// LoadFixtureJSON decodes testdata/<name> into dest.
func LoadFixtureJSON(t *testing.T, name string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, name), dest); err != nil {
		t.Fatalf("decode fixture %s: %v", name, err)
	}
}

// LoadSite builds a FakeNetwork from testdata/<name>, a JSON object mapping
// absolute URLs to routes.
func LoadSite(t *testing.T, name string) *FakeNetwork {
	t.Helper()

	var routes map[string]Route
	LoadFixtureJSON(t, name, &routes)
	if len(routes) == 0 {
		t.Fatalf("site fixture %s has no routes", name)
	}

	n := NewFakeNetwork()
	for url, route := range routes {
		n.Handle(url, route)
	}
	return n
}

// Golden returns a goldie instance reading testdata/golden/<name>.golden.
// Run tests with -update to rewrite the files.
func Golden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithNameSuffix(".golden"),
	)
}

// AssertGolden compares actual against testdata/golden/<name>.golden.
func AssertGolden(t *testing.T, name string, actual []byte) {
	t.Helper()
	Golden(t).Assert(t, name, actual)
}

// AssertGoldenJSON marshals v with two-space indentation and compares it
// against testdata/golden/<name>.golden.
func AssertGoldenJSON(t *testing.T, name string, v any) {
	t.Helper()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal JSON for golden file %s: %v", name, err)
	}
	AssertGolden(t, name, data)
}

// SampleTeam returns a team registration that passes validation.
func SampleTeam() store.Record {
	return store.Record{
		"teamName":    "Surulere Strikers",
		"captainName": "Tunde Bakare",
		"email":       "captain@strikers.ng",
		"phone":       "+2348012345678",
		"state":       "Lagos",
	}
}

// SampleFan returns a fan registration that passes validation.
func SampleFan() store.Record {
	return store.Record{
		"firstName": "Ada",
		"lastName":  "Obi",
		"email":     "ada@example.com",
		"state":     "Enugu",
	}
}

// SampleSponsor returns a sponsor inquiry that passes validation.
func SampleSponsor() store.Record {
	return store.Record{
		"companyName": "Jollof Ventures",
		"contactName": "Bola Ade",
		"email":       "partners@jollof.ng",
		"tier":        "gold",
	}
}
