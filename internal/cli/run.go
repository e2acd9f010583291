package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mgpai22/captionjob/internal/config"
	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/metrics"
	"github.com/mgpai22/captionjob/internal/pipeline"
	"github.com/mgpai22/captionjob/internal/publish"
	"github.com/mgpai22/captionjob/internal/source"
	"github.com/mgpai22/captionjob/internal/storage"
	"github.com/mgpai22/captionjob/internal/subtitle"
	"github.com/mgpai22/captionjob/internal/transcribe"
	"github.com/mgpai22/captionjob/internal/translate"
)

const dryRunBucket = "captionjob-dry-run"

// replaced in tests
var (
	newLoader    = transcribe.NewLoader
	newJobLogger = logging.NewLoggerLevel
)

// objectStore is what a job needs from the bucket
type objectStore interface {
	publish.Uploader
	source.Lister
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Transcribe one asset and publish its caption tracks",
	Long: `Run a caption job for a single asset.

The input may be a local file, a direct URL, or an HLS master.m3u8. For a
manifest the original upload is searched in the asset's bucket directory
first, then the 1080/720/480 variant playlists are probed.

Captions are uploaded to {owner}/{collection}/{asset}/captions_{lang}.vtt and
made public. On success the URL of the English track is the last line
printed to stdout.

Examples:
  captionjob run --input gs://media/u1/c1/a1/master.m3u8 --bucket media \
    --owner-id u1 --collection-id c1 --asset-id a1
  captionjob run --input lecture.mp4 --bucket media --admin-id u1 \
    --course-id c1 --asset-id a1 --generate-all-langs
  captionjob run --input lecture.mp4 --dry-run --output-dir ./captions \
    --owner-id u1 --collection-id c1 --asset-id a1`,
	Args: cobra.NoArgs,
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().
		StringP("input", "i", "", "Media file, URL or HLS master manifest (required)")
	runCmd.Flags().
		StringP("bucket", "b", "", "Bucket the captions are published to")
	runCmd.Flags().
		String("owner-id", "", "Owner id, first key segment (alias --admin-id)")
	runCmd.Flags().
		String("collection-id", "", "Collection id, second key segment (alias --course-id)")
	runCmd.Flags().
		String("asset-id", "", "Asset id, third key segment")
	runCmd.Flags().
		String("key-prefix", "", "Prefix for every caption key (overrides storage.key_prefix)")
	runCmd.Flags().
		StringP("model", "m", "base", "Model size (tiny, base, small, medium, large-v3)")
	runCmd.Flags().
		String("compute-type", "int8", "Compute type (int8, int8_float16, float16, float32)")
	runCmd.Flags().
		StringP("lang", "l", "", "Spoken language hint, logged only: recognition always runs in English")
	runCmd.Flags().
		Bool("all-languages", false, "Also publish translated tracks (alias --generate-all-langs)")
	runCmd.Flags().
		StringP("format", "f", "", "Subtitle format (vtt, srt); defaults to output.format")
	runCmd.Flags().
		String("backend", "", "Recognition backend (whisper, openai, gemini); defaults to recognizer.backend")
	runCmd.Flags().
		Bool("dry-run", false, "Keep captions in memory instead of uploading them")
	runCmd.Flags().
		String("output-dir", "", "With --dry-run, write the caption files here")

	runCmd.Flags().SetNormalizeFunc(flagAliases)
	_ = runCmd.MarkFlagRequired("input")
}

// flagAliases maps the legacy flag names onto the current ones
func flagAliases(f *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "admin-id":
		name = "owner-id"
	case "course-id":
		name = "collection-id"
	case "generate-all-langs":
		name = "all-languages"
	}
	return pflag.NormalizedName(name)
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	input, _ := cmd.Flags().GetString("input")
	bucket, _ := cmd.Flags().GetString("bucket")
	ownerID, _ := cmd.Flags().GetString("owner-id")
	collectionID, _ := cmd.Flags().GetString("collection-id")
	assetID, _ := cmd.Flags().GetString("asset-id")
	modelName, _ := cmd.Flags().GetString("model")
	computeName, _ := cmd.Flags().GetString("compute-type")
	hint, _ := cmd.Flags().GetString("lang")
	allLanguages, _ := cmd.Flags().GetBool("all-languages")
	formatName, _ := cmd.Flags().GetString("format")
	backendName, _ := cmd.Flags().GetString("backend")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	cfg, cfgFile, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("key-prefix") {
		cfg.Storage.KeyPrefix, _ = cmd.Flags().GetString("key-prefix")
	}
	if backendName != "" {
		cfg.Recognizer.Backend = strings.ToLower(backendName)
	}
	if formatName == "" {
		formatName = cfg.Output.Format
	}

	if dryRun && bucket == "" {
		bucket = dryRunBucket
	}
	if outputDir != "" && !dryRun {
		return fmt.Errorf("--output-dir requires --dry-run")
	}

	format, err := subtitle.ParseFormat(formatName)
	if err != nil {
		return err
	}
	size, err := transcribe.ParseModelSize(modelName)
	if err != nil {
		return err
	}
	compute, err := transcribe.ParseComputeProfile(computeName)
	if err != nil {
		return err
	}

	jobID := uuid.NewString()
	log := newJobLogger(cfg.Logging.Level, verbose).With("job_id", jobID)
	defer log.Sync()

	log.Infow("Starting caption job",
		"input", input,
		"bucket", bucket,
		"asset_id", assetID,
		"model", size,
		"compute_type", compute,
		"backend", cfg.Recognizer.Backend,
		"all_languages", allLanguages,
		"format", format,
		"config", cfgFile,
		"dry_run", dryRun,
	)

	var (
		store  objectStore
		memory *storage.Memory
	)
	if dryRun {
		memory = storage.NewMemory()
		store = memory
	} else {
		client, err := storage.NewClient(ctx, cfg.Storage.CredentialsFile, cfg.StorageTimeout())
		if err != nil {
			return err
		}
		defer client.Close()
		store = client
	}

	publisher, err := publish.NewPublisher(store, publish.Target{
		Bucket:       bucket,
		Prefix:       cfg.Storage.KeyPrefix,
		OwnerID:      ownerID,
		CollectionID: collectionID,
		AssetID:      assetID,
	}, log)
	if err != nil {
		return err
	}

	loader, err := newLoader(transcribe.Backend(cfg.Recognizer.Backend), transcribe.LoaderConfig{
		Python:       cfg.Recognizer.Python,
		Device:       cfg.Recognizer.Device,
		DownloadRoot: cfg.Recognizer.DownloadRoot,
		OpenAIKey:    cfg.Recognizer.OpenAIAPIKey,
		OpenAIModel:  cfg.Recognizer.OpenAIModel,
		GeminiKey:    cfg.Recognizer.GeminiAPIKey,
		GeminiModel:  cfg.Recognizer.GeminiModel,
		WorkDir:      cfg.Recognizer.WorkDir,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}

	var translator translate.TrackTranslator
	if allLanguages {
		translator, err = translate.Factory(ctx, translate.Provider(cfg.Translation.Provider), translate.Options{
			InputLanguage: transcribe.WorkingLanguage,
			LexiconDir:    cfg.Translation.LexiconDir,
			APIKey:        cfg.Translation.AnthropicAPIKey,
			Model:         cfg.Translation.AnthropicModel,
			BatchSize:     cfg.Translation.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("failed to create translator: %w", err)
		}
	}

	decode := transcribe.DefaultDecodeOptions()
	decode.BeamSize = cfg.Recognizer.BeamSize
	decode.BestOf = cfg.Recognizer.BestOf
	decode.VADFilter = cfg.Recognizer.VADFilter

	jobMetrics := metrics.New()
	job := &pipeline.Job{
		ID: jobID,
		Options: pipeline.Options{
			Input:        input,
			LanguageHint: hint,
			ModelSize:    size,
			Compute:      compute,
			Decode:       decode,
			AllLanguages: allLanguages,
			Languages:    cfg.Translation.Languages,
			Format:       format,
		},
		Loader: loader,
		Resolver: source.NewResolver(store, source.Options{
			Variants:     cfg.Source.Variants,
			ProbeTimeout: cfg.ProbeTimeout(),
			MinSize:      cfg.Source.MinSize,
		}, log),
		Translator: translator,
		Publisher:  publisher,
		Metrics:    jobMetrics,
		Logger:     log,
	}

	result, runErr := job.Run(ctx)
	pushMetrics(ctx, jobMetrics, cfg, jobID, log)
	if runErr != nil {
		return runErr
	}

	if memory != nil && outputDir != "" {
		if err := writeArtifacts(memory, bucket, outputDir, result.Artifacts); err != nil {
			return err
		}
		log.Infow("Captions written", "dir", outputDir)
	}

	if isTerminal(cmd.ErrOrStderr()) {
		fmt.Fprintln(cmd.ErrOrStderr(), renderArtifacts(result.Artifacts))
	}

	primary, _ := result.Primary()
	fmt.Fprintln(cmd.OutOrStdout(), primary.URL)
	return nil
}

func pushMetrics(ctx context.Context, m *metrics.Metrics, cfg *config.Config, jobID string, log *logging.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, jobID); err != nil {
		log.Warnw("Failed to push metrics", "error", err)
	}
}

// writeArtifacts copies dry-run documents from memory to dir, keeping the
// object key layout
func writeArtifacts(mem *storage.Memory, bucket, dir string, artifacts []publish.Artifact) error {
	for _, a := range artifacts {
		data, _, _, ok := mem.Get(bucket, a.Key)
		if !ok {
			return fmt.Errorf("artifact %s not found in memory store", a.Key)
		}
		path := filepath.Join(dir, filepath.FromSlash(a.Key))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return logging.IsTerminal(f)
}
