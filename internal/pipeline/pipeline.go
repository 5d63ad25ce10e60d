package pipeline

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"image-normalizer-go/internal/config"
	"image-normalizer-go/internal/logger"
	"image-normalizer-go/internal/normalizer"
	"image-normalizer-go/internal/statistics"

	"github.com/sirupsen/logrus"
)

// Params defines parameters for a batch normalization run.
type Params struct {
	InputPaths []string
	TargetDir  string
	DryRun     bool
	MaxFiles   int
}

// FileResult describes the outcome of normalizing a single file.
type FileResult struct {
	InputPath      string
	OutputPath     string
	OriginalSize   int64
	NormalizedSize int64
	PercentSaved   float64
	Action         string
	Message        string
	Success        bool
	StartedAt      time.Time
	FinishedAt     time.Time
	Error          error
}

// Pipeline normalizes batches of files on disk using a bounded worker
// pool.
type Pipeline struct {
	cfg   *config.Config
	log   *logrus.Logger
	stats *statistics.Statistics
	norm  normalizer.Normalizer
}

// New returns a Pipeline wired to the given normalizer and statistics
// sink.
func New(cfg *config.Config, log *logrus.Logger, stats *statistics.Statistics, norm normalizer.Normalizer) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		log:   log,
		stats: stats,
		norm:  norm,
	}
}

// Run collects files from the input paths and normalizes each of them
// into the target directory. Directories are walked recursively and
// filtered by the configured extensions; files named explicitly are
// taken as-is, so non-image files go through the pass-through path.
func (p *Pipeline) Run(ctx context.Context, params Params) ([]FileResult, error) {
	files, err := p.collectFiles(params.InputPaths)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	if params.MaxFiles > 0 && len(files) > params.MaxFiles {
		files = files[:params.MaxFiles]
	}
	for range files {
		p.stats.IncrementFilesFound()
	}
	if len(files) == 0 {
		return nil, nil
	}

	if params.TargetDir != "" && !params.DryRun {
		if err := os.MkdirAll(params.TargetDir, 0755); err != nil {
			return nil, fmt.Errorf("create target dir: %w", err)
		}
	}

	numWorkers := p.cfg.Performance.WorkerThreads
	if numWorkers > len(files) {
		numWorkers = len(files)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	type job struct {
		index int
		path  string
	}
	type indexed struct {
		index int
		res   FileResult
	}

	jobs := make(chan job, len(files))
	results := make(chan indexed, len(files))

	for w := 0; w < numWorkers; w++ {
		go func() {
			for j := range jobs {
				select {
				case <-ctx.Done():
					results <- indexed{index: j.index, res: FileResult{
						InputPath: j.path,
						Action:    "skipped",
						Message:   "run cancelled",
						Error:     ctx.Err(),
					}}
					continue
				default:
				}
				results <- indexed{index: j.index, res: p.processFile(ctx, j.path, params)}
			}
		}()
	}

	for i, path := range files {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	resArr := make([]FileResult, len(files))
	for i := 0; i < len(files); i++ {
		r := <-results
		resArr[r.index] = r.res
	}

	return resArr, nil
}

// collectFiles gathers input files: explicit files directly, and
// directories recursively filtered by the supported extensions.
func (p *Pipeline) collectFiles(inputPaths []string) ([]string, error) {
	var files []string
	visit := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if p.cfg.IsSupportedExtension(filepath.Ext(d.Name())) {
			files = append(files, path)
		}
		return nil
	}
	for _, in := range inputPaths {
		info, err := os.Stat(in)
		if err != nil {
			p.log.Warnf("Skipping unreadable input %s: %v", in, err)
			continue
		}
		if info.IsDir() {
			_ = filepath.WalkDir(in, visit)
		} else {
			files = append(files, in)
		}
	}
	return files, nil
}

// processFile normalizes a single file and returns a FileResult.
func (p *Pipeline) processFile(ctx context.Context, inputPath string, params Params) FileResult {
	start := time.Now()
	res := FileResult{
		InputPath: inputPath,
		StartedAt: start,
	}
	fail := func(action string, err error) FileResult {
		res.Action = "error"
		res.Message = fmt.Sprintf("%s: %v", action, err)
		res.Error = err
		res.FinishedAt = time.Now()
		p.stats.IncrementFilesWithErrors()
		p.stats.AddError(inputPath, action, err.Error())
		logger.WithFileOperation(p.log, inputPath, action).Errorf("Normalization failed: %v", err)
		return res
	}

	p.stats.IncrementFilesProcessed()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fail("read", err)
	}
	res.OriginalSize = int64(len(data))
	p.stats.AddBytesIn(res.OriginalSize)

	mimeType := detectMimeType(inputPath, data)
	p.stats.IncrementMimeType(mimeType)

	src := normalizer.SourceImage{
		Data:     data,
		MimeType: mimeType,
		Name:     filepath.Base(inputPath),
	}

	if params.DryRun {
		res.Action = "dry-run"
		res.Message = fmt.Sprintf("Would normalize to %s",
			filepath.Join(params.TargetDir, dryRunOutputName(src, p.cfg.Compression.MimeType)))
		res.Success = true
		res.FinishedAt = time.Now()
		p.stats.IncrementFilesSkipped()
		logger.WithFile(p.log, inputPath).Info(res.Message)
		return res
	}

	out, err := p.norm.Normalize(ctx, src)
	if err != nil {
		return fail("normalize", err)
	}

	res.NormalizedSize = int64(len(out.Image.Data))
	p.stats.AddBytesOut(res.NormalizedSize)
	p.stats.AddEncodeAttempts(int64(out.Attempts))

	outPath := filepath.Join(params.TargetDir, out.Image.Name)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fail("mkdir", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, out.Image.Data, 0644); err != nil {
		return fail("write", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fail("rename", err)
	}
	res.OutputPath = outPath

	if out.PassThrough {
		res.Action = "passthrough"
		res.Message = "Not an image, copied unchanged"
		p.stats.IncrementFilesPassedThrough()
	} else {
		res.Action = "normalized"
		res.Message = fmt.Sprintf("Normalized to %dx%d at quality %.2f in %d attempt(s)",
			out.Width, out.Height, out.Quality, out.Attempts)
		p.stats.IncrementFilesNormalized()
	}
	if res.OriginalSize > 0 {
		res.PercentSaved = float64(res.OriginalSize-res.NormalizedSize) * 100 / float64(res.OriginalSize)
	}
	res.Success = true
	res.FinishedAt = time.Now()

	logger.WithFileOperation(p.log, inputPath, res.Action).Debug(res.Message)
	return res
}

// dryRunOutputName predicts the output file name without decoding.
func dryRunOutputName(src normalizer.SourceImage, outputMime string) string {
	if !strings.HasPrefix(src.MimeType, "image/") {
		return src.Name
	}
	return normalizer.RenameForMime(src.Name, outputMime)
}

// detectMimeType derives the declared mime type for a file, preferring
// the extension and sniffing the content when the extension is unknown.
func detectMimeType(path string, data []byte) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		return http.DetectContentType(data)
	}
	return mimeType
}
