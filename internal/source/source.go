// Package source finds the best media to feed the recognizer when a job is
// pointed at a streaming manifest.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/storage"
)

const manifestName = "master.m3u8"

// how a Resolution was reached
type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyPreferred Strategy = "preferred"
	StrategyScan      Strategy = "scan"
	StrategyVariant   Strategy = "variant"
	StrategyManifest  Strategy = "manifest"
)

type Resolution struct {
	Source string
	Via    Strategy
}

var (
	preferredNames  = []string{"source", "original", "input", "video"}
	videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

	// numeric quality directories such as /720/ or /1080p/
	qualityDirRegex = regexp.MustCompile(`/\d{3,4}p?/`)
)

// Lister lists objects under a key prefix.
type Lister interface {
	List(ctx context.Context, bucket, prefix string) ([]storage.Object, error)
}

type Options struct {
	Variants     []string      // probed best first
	ProbeTimeout time.Duration // per HEAD request
	MinSize      int64         // smallest acceptable unnamed file
	HTTPClient   *http.Client
}

func DefaultOptions() Options {
	return Options{
		Variants:     []string{"1080", "720", "480"},
		ProbeTimeout: 5 * time.Second,
		MinSize:      1 << 20,
	}
}

// Resolver never fails: every problem degrades to the next strategy and is
// logged as a warning.
type Resolver struct {
	lister Lister
	opts   Options
	client *http.Client
	logger *logging.Logger
}

func NewResolver(lister Lister, opts Options, logger *logging.Logger) *Resolver {
	defaults := DefaultOptions()
	if len(opts.Variants) == 0 {
		opts.Variants = defaults.Variants
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaults.ProbeTimeout
	}
	if opts.MinSize <= 0 {
		opts.MinSize = defaults.MinSize
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Resolver{lister: lister, opts: opts, client: client, logger: logger}
}

// reports whether ref names an adaptive-streaming master manifest
func IsManifest(ref string) bool {
	return strings.Contains(ref, manifestName)
}

// bucket and asset prefix a manifest lives under
type Location struct {
	Bucket string
	Prefix string
}

// ParseLocation extracts the bucket and asset directory from a manifest URL
// in virtual-hosted, path-style or gs:// form.
func ParseLocation(ref string) (Location, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return Location{}, false
	}

	var bucket, objectPath string
	switch {
	case u.Scheme == "gs":
		bucket = u.Host
		objectPath = strings.TrimPrefix(u.Path, "/")
	case u.Host == "storage.googleapis.com":
		bucket, objectPath, _ = strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	case strings.HasSuffix(u.Host, ".storage.googleapis.com"):
		bucket = strings.TrimSuffix(u.Host, ".storage.googleapis.com")
		objectPath = strings.TrimPrefix(u.Path, "/")
	default:
		return Location{}, false
	}

	if bucket == "" || path.Base(objectPath) != manifestName {
		return Location{}, false
	}

	prefix := path.Dir(objectPath)
	if prefix == "." {
		prefix = ""
	}
	return Location{Bucket: bucket, Prefix: prefix}, true
}

// Resolve picks the media to recognize for ref.
func (r *Resolver) Resolve(ctx context.Context, ref string) Resolution {
	if !IsManifest(ref) {
		return Resolution{Source: ref, Via: StrategyDirect}
	}

	r.logger.Infow("Streaming manifest detected, searching for source media", "manifest", ref)

	loc, ok := ParseLocation(ref)
	if !ok {
		r.degraded("manifest is not an object-store URL", fmt.Errorf("unrecognized manifest URL %q", ref))
	}
	return r.resolve(ctx, ref, loc, ok)
}

func (r *Resolver) resolve(ctx context.Context, ref string, loc Location, listable bool) Resolution {
	if listable && r.lister != nil {
		if res, found := r.searchBucket(ctx, loc); found {
			return res
		}
	}

	if res, found := r.probeVariants(ctx, ref); found {
		return res
	}

	r.logger.Warnw("No working variant found, using the manifest itself", "manifest", ref)
	return Resolution{Source: ref, Via: StrategyManifest}
}

func (r *Resolver) degraded(msg string, err error) {
	r.logger.Warnw("Source resolution degraded: "+msg,
		"kind", "SourceResolutionDegraded",
		"error", err,
	)
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (r *Resolver) searchBucket(ctx context.Context, loc Location) (Resolution, bool) {
	listPrefix := ""
	if loc.Prefix != "" {
		listPrefix = loc.Prefix + "/"
	}

	objects, err := r.lister.List(ctx, loc.Bucket, listPrefix)
	if err != nil {
		r.degraded("listing failed", err)
		return Resolution{}, false
	}

	r.logger.Debugw("Listed asset objects", "bucket", loc.Bucket, "prefix", listPrefix, "count", len(objects))

	if obj, ok := pickPreferred(objects, loc.Prefix); ok {
		r.logger.Infow("Found preferred source video", "key", obj.Key, "size", humanize.IBytes(uint64(obj.Size)))
		return Resolution{Source: storage.VirtualHostedURL(loc.Bucket, obj.Key), Via: StrategyPreferred}, true
	}

	if obj, ok := pickFirstEligible(objects, loc.Prefix, r.opts.MinSize); ok {
		r.logger.Infow("Found video file", "key", obj.Key, "size", humanize.IBytes(uint64(obj.Size)))
		return Resolution{Source: storage.VirtualHostedURL(loc.Bucket, obj.Key), Via: StrategyScan}, true
	}

	r.logger.Warnw("No suitable video file found in bucket", "bucket", loc.Bucket, "prefix", listPrefix)
	return Resolution{}, false
}

// pickPreferred checks names before extensions: source.mkv beats video.mp4
func pickPreferred(objects []storage.Object, prefix string) (storage.Object, bool) {
	byKey := make(map[string]storage.Object, len(objects))
	for _, obj := range objects {
		byKey[obj.Key] = obj
	}
	for _, name := range preferredNames {
		for _, ext := range videoExtensions {
			if obj, ok := byKey[objectKey(prefix, name+ext)]; ok {
				return obj, true
			}
		}
	}
	return storage.Object{}, false
}

// pickFirstEligible returns the first listed video that is not a streaming
// rendition and meets the size floor. Only the part of the key below the
// asset prefix is checked for rendition directories.
func pickFirstEligible(objects []storage.Object, prefix string, minSize int64) (storage.Object, bool) {
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, objectKey(prefix, ""))
		if !hasVideoExtension(obj.Key) || isRenditionPart(rel) {
			continue
		}
		if obj.Size >= minSize {
			return obj, true
		}
	}
	return storage.Object{}, false
}

func hasVideoExtension(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, allowed := range videoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// reports whether key looks like part of an adaptive-bitrate rendition
func isRenditionPart(key string) bool {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "segment") || strings.Contains(lower, ".ts") {
		return true
	}
	return qualityDirRegex.MatchString("/" + lower)
}

// https form of a manifest reference, so gs:// manifests can be probed
func probeBase(ref string) string {
	if loc, ok := ParseLocation(ref); ok && strings.HasPrefix(ref, "gs://") {
		return storage.VirtualHostedURL(loc.Bucket, objectKey(loc.Prefix, manifestName))
	}
	return ref
}

func (r *Resolver) probeVariants(ctx context.Context, ref string) (Resolution, bool) {
	base := probeBase(ref)
	for _, variant := range r.opts.Variants {
		candidate := strings.Replace(base, manifestName, variant+"/index.m3u8", 1)
		if err := r.probe(ctx, candidate); err != nil {
			r.logger.Debugw("Variant unavailable", "variant", variant, "url", candidate, "error", err)
			continue
		}
		r.logger.Infow("Using streaming variant", "variant", variant+"p", "url", candidate)
		return Resolution{Source: candidate, Via: StrategyVariant}, true
	}
	return Resolution{}, false
}

// probe issues a HEAD request bounded by the probe timeout; only 200 counts
func (r *Resolver) probe(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
