package urlsync_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/goliatone/go-scenes/pkg/urlsync"
)

type identifierFixture struct {
	Description string           `json:"description"`
	Cases       []identifierCase `json:"cases"`
}

type identifierCase struct {
	Name   string      `json:"name"`
	Ref    fixtureRef  `json:"ref"`
	Expect expectValue `json:"expect"`
}

type fixtureRef struct {
	Scene string `json:"scene"`
	Scope string `json:"scope"`
	ID    string `json:"id"`
}

type expectValue struct {
	Value string `json:"value"`
	Err   string `json:"err"`
}

func TestRefIdentifierContracts(t *testing.T) {
	fx := loadFixture[identifierFixture](t, "urlsync_identifier.json")
	for _, tc := range fx.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			ref := urlsync.Ref{Scene: tc.Ref.Scene, Scope: tc.Ref.Scope, ID: tc.Ref.ID}
			got, err := ref.Identifier()

			if tc.Expect.Err != "" {
				if err == nil {
					t.Fatalf("expected error %q but got nil", tc.Expect.Err)
				}
				if err.Error() != tc.Expect.Err {
					t.Fatalf("expected error %q, got %q", tc.Expect.Err, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.Expect.Value {
				t.Fatalf("expected %q, got %q", tc.Expect.Value, got)
			}
		})
	}
}

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("failed to locate fixture directory")
	}
	fixturePath := filepath.Join(filepath.Dir(filename), "..", "..", "testdata", name)
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", fixturePath, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", fixturePath, err)
	}
	return out
}
