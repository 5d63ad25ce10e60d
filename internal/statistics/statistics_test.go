package statistics

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatisticsCounters(t *testing.T) {
	s := NewStatistics()

	s.IncrementFilesFound()
	s.IncrementFilesFound()
	s.IncrementFilesProcessed()
	s.IncrementFilesNormalized()
	s.IncrementFilesPassedThrough()
	s.IncrementFilesWithErrors()
	s.AddEncodeAttempts(7)
	s.AddBytesIn(1000)
	s.AddBytesOut(400)
	s.IncrementMimeType("image/png")
	s.IncrementMimeType("image/png")
	s.Finalize()

	assert.Equal(t, int64(2), s.TotalFilesFound)
	assert.Equal(t, int64(1), s.GetTotalFilesProcessed())
	assert.Equal(t, int64(1), s.GetFilesNormalized())
	assert.Equal(t, int64(1), s.GetFilesWithErrors())
	assert.Equal(t, int64(7), s.EncodeAttempts)
	assert.Equal(t, int64(600), s.BytesSaved())
	assert.Equal(t, int64(2), s.MimeTypeStats["image/png"])
	assert.False(t, s.EndTime.IsZero())
}

func TestStatisticsConcurrentUpdates(t *testing.T) {
	s := NewStatistics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementFilesProcessed()
			s.IncrementMimeType("image/jpeg")
			s.AddBytesIn(10)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), s.GetTotalFilesProcessed())
	assert.Equal(t, int64(50), s.MimeTypeStats["image/jpeg"])
	assert.Equal(t, int64(500), s.BytesIn)
}

func TestGetSummaryContainsCounts(t *testing.T) {
	s := NewStatistics()
	s.IncrementFilesFound()
	s.IncrementFilesNormalized()
	s.Finalize()

	summary := s.GetSummary()
	assert.Contains(t, summary, "Total Found: 1")
	assert.Contains(t, summary, "Normalized: 1")
}

func TestGetErrorSummary(t *testing.T) {
	s := NewStatistics()
	assert.Contains(t, s.GetErrorSummary(), "No errors")

	for i := 0; i < 12; i++ {
		s.AddError("/tmp/x.png", "normalize", "boom")
	}
	summary := s.GetErrorSummary()
	assert.Contains(t, summary, "Errors (12 total)")
	assert.Contains(t, summary, "and 2 more errors")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
	assert.True(t, strings.HasPrefix(formatBytes(-2048), "-"))
}
