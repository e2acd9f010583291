// Package storage talks to the object store that holds source media and
// published captions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

var ErrNotFound = errors.New("object not found")

// DefaultTimeout bounds a single listing, upload or ACL call.
const DefaultTimeout = 2 * time.Minute

// listed object
type Object struct {
	Key  string
	Size int64
}

// Handle addresses an uploaded object.
type Handle struct {
	Bucket string
	Key    string
}

// Client is a Google Cloud Storage backed store.
type Client struct {
	gcs     *gcs.Client
	timeout time.Duration
}

// NewClient connects with the given service account file, or with
// application default credentials when credentialsFile is empty.
func NewClient(ctx context.Context, credentialsFile string, timeout time.Duration) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{gcs: client, timeout: timeout}, nil
}

// List returns every object whose key starts with prefix, in key order.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var objects []Object
	it := c.gcs.Bucket(bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", bucket, prefix, err)
		}
		objects = append(objects, Object{Key: attrs.Name, Size: attrs.Size})
	}
	return objects, nil
}

// Upload writes data to bucket/key, replacing any existing object.
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	data []byte,
	contentType string,
) (Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	w := c.gcs.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=300"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Handle{}, fmt.Errorf("write gs://%s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return Handle{}, fmt.Errorf("finalize gs://%s/%s: %w", bucket, key, err)
	}
	return Handle{Bucket: bucket, Key: key}, nil
}

// MakePublic grants anonymous read access to the object.
func (c *Client) MakePublic(ctx context.Context, h Handle) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	acl := c.gcs.Bucket(h.Bucket).Object(h.Key).ACL()
	if err := acl.Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
		return fmt.Errorf("make gs://%s/%s public: %w", h.Bucket, h.Key, err)
	}
	return nil
}

func (c *Client) PublicURL(h Handle) string {
	return PublicURL(h.Bucket, h.Key)
}

// Stat reports the size of one object.
func (c *Client) Stat(ctx context.Context, bucket, key string) (Object, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attrs, err := c.gcs.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return Object{}, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrNotFound)
	}
	if err != nil {
		return Object{}, fmt.Errorf("stat gs://%s/%s: %w", bucket, key, err)
	}
	return Object{Key: attrs.Name, Size: attrs.Size}, nil
}

func (c *Client) Close() error {
	return c.gcs.Close()
}

// escapes each path segment of a key, keeping the slashes
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// PublicURL is the anonymous download URL of a public object.
func PublicURL(bucket, key string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + escapeKey(key)
}

// VirtualHostedURL addresses an object through the bucket subdomain, the
// form streaming manifests are served from.
func VirtualHostedURL(bucket, key string) string {
	return "https://" + bucket + ".storage.googleapis.com/" + escapeKey(key)
}
