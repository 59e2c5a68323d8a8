package ingestion

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "books", 100, 10)

	tracker.Start()
	tracker.Increment(25)
	tracker.Increment(25)
	tracker.Increment(50)

	assert.Equal(t, 100, tracker.Current())
	assert.Greater(t, tracker.Elapsed(), time.Duration(0), "elapsed time should be positive")

	output := buf.String()
	assert.Contains(t, output, "Importing books")
	assert.Contains(t, output, "100/100", "should show completion")
	assert.Contains(t, output, "100.0%", "should show 100%")
	assert.Contains(t, output, "rows/s")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "users", 100, 10)

	tracker.Start()
	tracker.Increment(75)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "100/100", "finish should set to total")
	assert.Contains(t, output, "\n", "finish should print newline")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "books", 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0", "should handle zero total")
}

func TestProgressTracker_IncrementBeyondTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "books", 100, 10)

	tracker.Start()
	tracker.Increment(150)

	assert.Equal(t, 100, tracker.Current())
	assert.Contains(t, buf.String(), "100/100", "should not exceed total")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "books", 100, 10)

	// Should not panic when not started
	tracker.Increment(10)
	tracker.Finish()

	assert.Equal(t, "", buf.String(), "should have no output when not started")
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "books", 1000, 100)

	tracker.Start()

	tracker.Increment(50)
	assert.Equal(t, "", buf.String(), "should not print under interval")

	tracker.Increment(50)
	assert.NotEmpty(t, buf.String(), "should print at interval")

	buf.Reset()
	tracker.Increment(150)
	assert.NotEmpty(t, buf.String(), "should print beyond interval")
}
