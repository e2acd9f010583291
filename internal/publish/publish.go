// Package publish uploads caption documents and makes them world-readable.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mgpai22/captionjob/internal/logging"
	"github.com/mgpai22/captionjob/internal/storage"
	"github.com/mgpai22/captionjob/internal/subtitle"
)

// Uploader is the object-store surface the publisher needs.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (storage.Handle, error)
	MakePublic(ctx context.Context, h storage.Handle) error
	PublicURL(h storage.Handle) string
}

// published caption document
type Artifact struct {
	Language string
	Key      string
	URL      string
	Cues     int
	Size     int
}

// where an asset's captions go
type Target struct {
	Bucket       string
	Prefix       string // optional, e.g. "assets/"
	OwnerID      string
	CollectionID string
	AssetID      string
}

func (t Target) Validate() error {
	missing := []string{}
	if t.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if t.OwnerID == "" {
		missing = append(missing, "owner id")
	}
	if t.CollectionID == "" {
		missing = append(missing, "collection id")
	}
	if t.AssetID == "" {
		missing = append(missing, "asset id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("publish target is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// DestinationKey builds {prefix}{owner}/{collection}/{asset}/captions_{lang}.{ext}.
func DestinationKey(prefix, owner, collection, asset, lang, ext string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%s%s/%s/%s/captions_%s.%s", prefix, owner, collection, asset, lang, ext)
}

type Publisher struct {
	store  Uploader
	target Target
	logger *logging.Logger
}

func NewPublisher(store Uploader, target Target, logger *logging.Logger) (*Publisher, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	return &Publisher{store: store, target: target, logger: logger}, nil
}

// key a document will be stored under
func (p *Publisher) Key(doc subtitle.Document) string {
	return DestinationKey(
		p.target.Prefix,
		p.target.OwnerID,
		p.target.CollectionID,
		p.target.AssetID,
		doc.Language,
		subtitle.Extension(doc.Format),
	)
}

// Publish uploads one document, makes it public and returns its URL. It
// does not retry.
func (p *Publisher) Publish(ctx context.Context, doc subtitle.Document) (Artifact, error) {
	key := p.Key(doc)

	handle, err := p.store.Upload(ctx, p.target.Bucket, key, doc.Body, subtitle.ContentType(doc.Format))
	if err != nil {
		return Artifact{}, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := p.store.MakePublic(ctx, handle); err != nil {
		return Artifact{}, fmt.Errorf("publish %s: %w", key, err)
	}

	artifact := Artifact{
		Language: doc.Language,
		Key:      key,
		URL:      p.store.PublicURL(handle),
		Cues:     doc.Cues,
		Size:     len(doc.Body),
	}

	p.logger.Infow("Captions uploaded",
		"language", artifact.Language,
		"url", artifact.URL,
		"cues", artifact.Cues,
		"size", humanize.Bytes(uint64(artifact.Size)),
	)
	return artifact, nil
}

// PublishTrack renders a track and publishes it.
func (p *Publisher) PublishTrack(
	ctx context.Context,
	track subtitle.Track,
	format subtitle.Format,
) (Artifact, error) {
	return p.Publish(ctx, subtitle.Render(track, format))
}
