package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains all statistics for a normalization run.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesNormalized     int64
	FilesPassedThrough  int64
	FilesSkipped        int64
	FilesWithErrors     int64

	EncodeAttempts int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64
	BytesIn        int64
	BytesOut       int64

	Errors []StatError

	mutex sync.RWMutex

	MimeTypeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		MimeTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
}

// IncrementFilesNormalized increases the count of normalized files by 1.
func (s *Statistics) IncrementFilesNormalized() {
	atomic.AddInt64(&s.FilesNormalized, 1)
}

// IncrementFilesPassedThrough increases the count of non-image files returned unchanged by 1.
func (s *Statistics) IncrementFilesPassedThrough() {
	atomic.AddInt64(&s.FilesPassedThrough, 1)
}

// IncrementFilesSkipped increases the count of skipped files by 1.
func (s *Statistics) IncrementFilesSkipped() {
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// IncrementFilesWithErrors increases the count of files with errors by 1.
func (s *Statistics) IncrementFilesWithErrors() {
	atomic.AddInt64(&s.FilesWithErrors, 1)
}

// AddEncodeAttempts adds the number of rasterize+encode passes spent on one file.
func (s *Statistics) AddEncodeAttempts(attempts int64) {
	atomic.AddInt64(&s.EncodeAttempts, attempts)
}

// AddBytesIn adds the given number of input bytes to the total.
func (s *Statistics) AddBytesIn(bytes int64) {
	atomic.AddInt64(&s.BytesIn, bytes)
}

// AddBytesOut adds the given number of output bytes to the total.
func (s *Statistics) AddBytesOut(bytes int64) {
	atomic.AddInt64(&s.BytesOut, bytes)
}

// IncrementMimeType increases the count for a specific input mime type by 1.
func (s *Statistics) IncrementMimeType(mimeType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.MimeTypeStats[mimeType]++
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates final statistics such as duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}
}

// BytesSaved returns how many bytes normalization shaved off in total.
func (s *Statistics) BytesSaved() int64 {
	return atomic.LoadInt64(&s.BytesIn) - atomic.LoadInt64(&s.BytesOut)
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	return fmt.Sprintf(`Image Normalizer Statistics Summary:

Files:
		Total Found: %d
		Total Processed: %d
		Normalized: %d
		Passed Through: %d
		Skipped: %d
		Errors: %d

Encoding:
		Encode Attempts: %d

Performance:
		Duration: %v
		Files/Second: %.2f
		Bytes In: %s
		Bytes Out: %s
		Bytes Saved: %s`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.TotalFilesProcessed),
		atomic.LoadInt64(&s.FilesNormalized),
		atomic.LoadInt64(&s.FilesPassedThrough),
		atomic.LoadInt64(&s.FilesSkipped),
		atomic.LoadInt64(&s.FilesWithErrors),
		atomic.LoadInt64(&s.EncodeAttempts),
		s.Duration,
		s.FilesPerSecond,
		formatBytes(atomic.LoadInt64(&s.BytesIn)),
		formatBytes(atomic.LoadInt64(&s.BytesOut)),
		formatBytes(s.BytesSaved()))
}

// GetMimeTypeBreakdown returns a formatted breakdown of input mime types.
func (s *Statistics) GetMimeTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.MimeTypeStats) == 0 {
		return "No mime type statistics available"
	}

	result := "Mime Type Breakdown:\n"
	for mimeType, count := range s.MimeTypeStats {
		result += fmt.Sprintf("  %s: %d\n", mimeType, count)
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// GetTotalFilesProcessed returns the total number of files processed.
func (s *Statistics) GetTotalFilesProcessed() int64 {
	return atomic.LoadInt64(&s.TotalFilesProcessed)
}

// GetFilesNormalized returns the total number of files normalized.
func (s *Statistics) GetFilesNormalized() int64 {
	return atomic.LoadInt64(&s.FilesNormalized)
}

// GetFilesWithErrors returns the total number of files with errors.
func (s *Statistics) GetFilesWithErrors() int64 {
	return atomic.LoadInt64(&s.FilesWithErrors)
}

// GetDuration returns the total duration of the operation.
func (s *Statistics) GetDuration() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Duration
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit && bytes > -unit {
		return fmt.Sprintf("%d B", bytes)
	}
	neg := bytes < 0
	if neg {
		bytes = -bytes
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	v := fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
	if neg {
		return "-" + v
	}
	return v
}
