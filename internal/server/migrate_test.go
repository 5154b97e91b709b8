package server

import (
	"strings"
	"testing"
)

func TestMigrateRequiresDSN(t *testing.T) {
	err := Migrate("file://migrations", "", "up", 0)
	if err == nil || !strings.Contains(err.Error(), "postgres not configured") {
		t.Fatalf("err = %v, want postgres not configured", err)
	}
}
