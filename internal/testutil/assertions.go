package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/runixer/mediarelay/internal/storage"
)

// AssertNoFilesWithPrefix fails if dir still holds a file starting with prefix.
func AssertNoFilesWithPrefix(t *testing.T, dir, prefix string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			t.Errorf("file %s survived cleanup", e.Name())
		}
	}
}

// FindDelivery returns the first delivery passed to AddDelivery on the mock.
func FindDelivery(t *testing.T, m *MockStorage) storage.Delivery {
	t.Helper()
	for _, call := range m.Calls {
		if call.Method == "AddDelivery" {
			return call.Arguments.Get(1).(storage.Delivery)
		}
	}
	t.Fatal("AddDelivery was not called")
	return storage.Delivery{}
}
