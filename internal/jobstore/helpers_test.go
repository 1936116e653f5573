package jobstore_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustRandomUUID(t *testing.T) uuid.UUID {
	t.Helper()

	return uuid.New()
}

func fixedTime(t *testing.T) time.Time {
	t.Helper()

	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}
