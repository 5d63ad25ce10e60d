package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"image-normalizer-go/internal/config"
	"image-normalizer-go/internal/logger"
	"image-normalizer-go/internal/normalizer"
	"image-normalizer-go/internal/pipeline"
	"image-normalizer-go/internal/statistics"
	"image-normalizer-go/internal/web"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	targetDir string
	outMime   string
	dryRun    bool
	verbose   bool
	quiet     bool
	version   string
	buildTime string
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-normalizer [paths...]",
	Short: "Resize and recompress images to fit dimension and byte budgets",
	Long: `ImageNormalizer prepares images for consumers with strict payload
limits. Each image is scaled so that its short side and long side fit
the configured maximums (preserving aspect ratio, never upscaling) and
then re-encoded at decreasing quality until the encoded size fits the
byte budget or the quality floor is reached.

Features:
- Short-side / long-side dimension limits
- Iterative quality reduction against a byte budget
- WebP, JPEG, PNG and GIF output formats
- Non-image files are copied through unchanged
- Batch processing with a worker pool
- Dry-run mode for safe testing
- Web interface with live progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNormalize(args)
	},
}

// inspectCmd prints the decoded dimensions and the normalization plan
// for a single file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show image dimensions and the normalization plan for a file",
	Long: `Decodes the given file and shows its dimensions, orientation, the
output dimensions the normalizer would choose, and the output file
name. For JPEG files the EXIF capture date is shown when present.
This is useful for checking what a run would do to a specific image.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server with an HTTP API for ImageNormalizer:
- POST /api/normalize uploads a single image and returns it normalized
- POST /api/batch starts an asynchronous batch run
- GET /api/status and /api/statistics report progress
- /ws streams batch lifecycle events over WebSocket

Access the API at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&targetDir, "target", "", "target directory for normalized files (default: alongside sources)")
	rootCmd.Flags().StringVar(&outMime, "mime", "", "output mime type (default from config, image/webp)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan the run without writing files")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.image-normalizer")
		viper.AddConfigPath("/etc/image-normalizer")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runNormalize executes the batch normalization logic.
func runNormalize(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if dryRun {
		cfg.Security.DryRun = true
	}
	if outMime != "" {
		cfg.Compression.MimeType = outMime
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --mime override: %w", err)
		}
	}

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{cfg.SourceDirectory}
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	norm := normalizer.NewDefault(pipeline.CompressionOptions(cfg.Compression))
	p := pipeline.New(cfg, log, stats, norm)

	results, err := p.Run(context.Background(), pipeline.Params{
		InputPaths: inputs,
		TargetDir:  resolveTargetDir(cfg),
		DryRun:     cfg.Security.DryRun,
		MaxFiles:   cfg.Security.MaxFilesPerRun,
	})
	stats.Finalize()
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}

	if !quiet {
		for _, r := range results {
			if r.Error != nil {
				fmt.Fprintf(os.Stderr, "ERROR %s: %s\n", r.InputPath, r.Message)
			}
		}
		fmt.Println("\n" + stats.GetSummary())
	}

	if stats.GetFilesWithErrors() > 0 {
		return fmt.Errorf("%d file(s) failed", stats.GetFilesWithErrors())
	}
	return nil
}

// runInspect decodes a file and prints the normalization plan.
func runInspect(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	opts := pipeline.CompressionOptions(cfg.Compression)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filePath)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	fmt.Printf("File: %s\n", filePath)
	fmt.Printf("Mime type: %s\n", mimeType)
	fmt.Printf("Size: %d bytes\n", len(data))

	if !strings.HasPrefix(mimeType, "image/") {
		fmt.Println("Not an image: would be passed through unchanged")
		return nil
	}

	img, err := normalizer.NewImagingCodec().Decode(data)
	if err != nil {
		fmt.Printf("Decode failed: %v\n", err)
		return nil
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	orientation := "landscape"
	if height >= width {
		orientation = "portrait"
	}
	planW, planH := normalizer.PlanDimensions(width, height, opts)

	fmt.Printf("Dimensions: %dx%d (%s)\n", width, height, orientation)
	fmt.Printf("Planned output: %dx%d as %s\n", planW, planH, opts.MimeType)
	fmt.Printf("Output name: %s\n", normalizer.RenameForMime(filepath.Base(filePath), opts.MimeType))

	if mimeType == normalizer.MimeJPEG {
		printExifDate(filePath)
	}
	return nil
}

// printExifDate prints the EXIF capture date of a JPEG, if present.
func printExifDate(filePath string) {
	f, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		fmt.Println("No EXIF data found")
		return
	}
	if date, err := x.DateTime(); err == nil {
		fmt.Printf("EXIF capture date: %s\n", date.Format("2006-01-02 15:04:05"))
	}
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
		cfg.SourceDirectory = "."
		cfg.Security.DryRun = true
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("ImageNormalizer web interface started on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if targetDir != "" {
		cfg.TargetDirectory = &targetDir
	}

	if cfg.SourceDirectory == "" && len(args) == 0 {
		cfg.SourceDirectory = "."
	}

	return cfg, nil
}

// resolveTargetDir picks the directory normalized files are written to.
func resolveTargetDir(cfg *config.Config) string {
	if dir := cfg.GetTargetDirectory(); dir != "" {
		return dir
	}
	return "."
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
