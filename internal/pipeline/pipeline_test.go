package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"image-normalizer-go/internal/config"
	"image-normalizer-go/internal/normalizer"
	"image-normalizer-go/internal/statistics"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	// PNG output keeps the batch tests free of lossy-codec variance.
	cfg.Compression.MimeType = "image/png"
	cfg.Performance.WorkerThreads = 2
	return cfg
}

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func newTestPipeline(cfg *config.Config, stats *statistics.Statistics) *Pipeline {
	norm := normalizer.NewDefault(CompressionOptions(cfg.Compression))
	return New(cfg, testLogger(), stats, norm)
}

func TestPipelineNormalizesDirectory(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	writeTestPNG(t, filepath.Join(srcDir, "a.png"), 100, 50)
	writeTestPNG(t, filepath.Join(srcDir, "b.png"), 60, 40)
	// Unsupported extension is ignored when walking directories.
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("hi"), 0644))

	cfg := testConfig()
	stats := statistics.NewStatistics()
	p := newTestPipeline(cfg, stats)

	results, err := p.Run(context.Background(), Params{
		InputPaths: []string{srcDir},
		TargetDir:  outDir,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.True(t, r.Success, r.Message)
		assert.Equal(t, "normalized", r.Action)
		assert.FileExists(t, r.OutputPath)
		assert.Equal(t, ".png", filepath.Ext(r.OutputPath))
	}
	assert.Equal(t, int64(2), stats.GetFilesNormalized())
	assert.Equal(t, int64(2), stats.GetTotalFilesProcessed())
}

func TestPipelinePassThroughForExplicitNonImage(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	docPath := filepath.Join(srcDir, "report.pdf")
	content := []byte("%PDF-1.4 fake document")
	require.NoError(t, os.WriteFile(docPath, content, 0644))

	cfg := testConfig()
	stats := statistics.NewStatistics()
	p := newTestPipeline(cfg, stats)

	results, err := p.Run(context.Background(), Params{
		InputPaths: []string{docPath},
		TargetDir:  outDir,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "passthrough", r.Action)
	assert.Equal(t, filepath.Join(outDir, "report.pdf"), r.OutputPath)

	copied, err := os.ReadFile(r.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, content, copied)
	assert.Equal(t, int64(1), stats.FilesPassedThrough)
}

func TestPipelineResizesOversizedImage(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	imgPath := filepath.Join(srcDir, "wide.png")
	writeTestPNG(t, imgPath, 300, 200)

	cfg := testConfig()
	cfg.Compression.MaxShortSide = 76
	cfg.Compression.MaxLongSide = 156
	stats := statistics.NewStatistics()
	p := newTestPipeline(cfg, stats)

	results, err := p.Run(context.Background(), Params{
		InputPaths: []string{imgPath},
		TargetDir:  outDir,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)

	data, err := os.ReadFile(results[0].OutputPath)
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	// scale = min(76/200, 156/300) = 0.38
	assert.Equal(t, 114, decoded.Bounds().Dx())
	assert.Equal(t, 76, decoded.Bounds().Dy())
}

func TestPipelineDryRunWritesNothing(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	writeTestPNG(t, filepath.Join(srcDir, "a.png"), 50, 50)

	cfg := testConfig()
	stats := statistics.NewStatistics()
	p := newTestPipeline(cfg, stats)

	results, err := p.Run(context.Background(), Params{
		InputPaths: []string{srcDir},
		TargetDir:  outDir,
		DryRun:     true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dry-run", results[0].Action)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, int64(1), stats.FilesSkipped)
}

func TestPipelineMaxFilesLimit(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	writeTestPNG(t, filepath.Join(srcDir, "a.png"), 20, 20)
	writeTestPNG(t, filepath.Join(srcDir, "b.png"), 20, 20)
	writeTestPNG(t, filepath.Join(srcDir, "c.png"), 20, 20)

	cfg := testConfig()
	stats := statistics.NewStatistics()
	p := newTestPipeline(cfg, stats)

	results, err := p.Run(context.Background(), Params{
		InputPaths: []string{srcDir},
		TargetDir:  outDir,
		MaxFiles:   2,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPipelineRecordsDecodeErrors(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	badPath := filepath.Join(srcDir, "corrupt.png")
	require.NoError(t, os.WriteFile(badPath, []byte("not a png"), 0644))

	cfg := testConfig()
	stats := statistics.NewStatistics()
	p := newTestPipeline(cfg, stats)

	results, err := p.Run(context.Background(), Params{
		InputPaths: []string{srcDir},
		TargetDir:  outDir,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "error", results[0].Action)
	assert.Error(t, results[0].Error)
	assert.Equal(t, int64(1), stats.GetFilesWithErrors())
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "image/png", detectMimeType("photo.png", nil))
	assert.Equal(t, "image/jpeg", detectMimeType("photo.JPG", nil))
	assert.Equal(t, "application/pdf", detectMimeType("doc.pdf", nil))
	// Unknown extension falls back to content sniffing.
	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/png", detectMimeType("photo.bin", pngHeader))
}

func TestCompressionOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := CompressionOptions(cfg.Compression)

	assert.Equal(t, cfg.Compression.MaxLongSide, opts.MaxLongSide)
	assert.Equal(t, cfg.Compression.MaxShortSide, opts.MaxShortSide)
	assert.Equal(t, cfg.Compression.MaxSizeBytes, opts.MaxSizeBytes)
	assert.Equal(t, cfg.Compression.MimeType, opts.MimeType)
	assert.InDelta(t, cfg.Compression.InitialQuality, opts.InitialQuality, 1e-9)
}
