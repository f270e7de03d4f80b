package archive

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"gocloud.dev/blob"
)

// Options configures the archiver.
type Options struct {
	// Prefix is prepended to every object key.
	Prefix string

	// BufferSize is passed to blob.WriterOptions. Zero uses the driver default.
	BufferSize int
}

// Archiver stores raw export streams in a bucket.
type Archiver struct {
	bucket *blob.Bucket
	owned  bool
	opts   Options
}

// Open opens the bucket at bucketURL (s3://, gs://, file://, mem://).
// The archiver owns the bucket and closes it in Close.
func Open(ctx context.Context, bucketURL string, opts Options) (*Archiver, error) {
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	a := New(bkt, opts)
	a.owned = true
	return a, nil
}

// New returns an archiver writing into bkt. The caller keeps ownership of bkt.
func New(bkt *blob.Bucket, opts Options) *Archiver {
	return &Archiver{bucket: bkt, opts: opts}
}

// Close closes the bucket if the archiver opened it.
func (a *Archiver) Close() error {
	if a.owned {
		return a.bucket.Close()
	}
	return nil
}

// Key returns the object key for sourceURL archived at t:
// {prefix}{yyyy}/{mm}/{dd}/{file name}.
func (a *Archiver) Key(sourceURL string, t time.Time) string {
	name := "export.csv"
	if u, err := url.Parse(sourceURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	return a.opts.Prefix + t.UTC().Format("2006/01/02/") + name
}

// Begin starts a new archive object for sourceURL. The returned Copy must be
// finished with Commit or Abort.
func (a *Archiver) Begin(ctx context.Context, sourceURL, contentType string) (*Copy, error) {
	key := a.Key(sourceURL, time.Now())

	ctx, cancel := context.WithCancel(ctx)
	w, err := a.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: contentTypeOrDefault(contentType),
		BufferSize:  a.opts.BufferSize,
		Metadata: map[string]string{
			"source_url": sourceURL,
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create archive object %s: %w", key, err)
	}
	return &Copy{key: key, w: w, cancel: cancel}, nil
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "text/csv"
	}
	// Drop parameters such as charset; some drivers reject them.
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		return strings.TrimSpace(ct[:i])
	}
	return ct
}

// Copy is an in-progress archive object. It is an io.Writer meant to sit
// behind an io.TeeReader on the download stream.
type Copy struct {
	key    string
	w      *blob.Writer
	cancel context.CancelFunc

	mu      sync.Mutex
	written int64
	err     error
	done    bool
}

// Write appends p to the object. The first failure is kept and returned by
// Err.
func (c *Copy) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.written += int64(n)
	if err != nil {
		c.err = fmt.Errorf("write archive object %s: %w", c.key, err)
		return n, c.err
	}
	return n, nil
}

// Commit flushes and finalizes the object.
func (c *Copy) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.err
	}
	c.done = true
	defer c.cancel()

	if c.err != nil {
		c.w.Close()
		return c.err
	}
	if err := c.w.Close(); err != nil {
		c.err = fmt.Errorf("close archive object %s: %w", c.key, err)
	}
	return c.err
}

// Abort discards the object. It is a no-op after Commit.
func (c *Copy) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	// Cancelling the writer's context before Close discards the write.
	c.cancel()
	c.w.Close()
}

// Err returns the first write error, if any.
func (c *Copy) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Key returns the object key.
func (c *Copy) Key() string {
	return c.key
}

// Written returns the number of bytes written so far.
func (c *Copy) Written() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}
