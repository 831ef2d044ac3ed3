package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/koba/tabledef/internal/errs"
)

// Sink is a destination for the rendered document
type Sink interface {
	Write(ctx context.Context, data []byte) error
	String() string
}

// Publish renders doc once and writes it to every sink. The first failing
// sink stops the publish.
func Publish(ctx context.Context, doc *Document, sinks ...Sink) error {
	const op errs.Op = "metadata.Publish"

	data, err := doc.MarshalJSON()
	if err != nil {
		return errs.E(errs.Internal, op, fmt.Errorf("encoding metadata: %w", err))
	}

	for _, sink := range sinks {
		if err := sink.Write(ctx, data); err != nil {
			return errs.E(op, fmt.Errorf("writing metadata to %s: %w", sink, err))
		}
	}

	return nil
}

// FileSink replaces a local file. Readers never see a partially written
// document because the content goes to a temporary file that is renamed
// over the target.
type FileSink struct {
	Path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(s.Path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing temporary file: %w", err)
	}

	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("setting file mode: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err := os.Rename(f.Name(), s.Path); err != nil {
		return fmt.Errorf("replacing file: %w", err)
	}

	return nil
}

func (s *FileSink) String() string {
	return s.Path
}

// GCSSink writes the document to a Cloud Storage object
type GCSSink struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSSink creates a sink with its own storage client. endpoint is only
// set when talking to an emulator.
func NewGCSSink(ctx context.Context, bucket, object, endpoint string, disableAuth bool) (*GCSSink, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	if disableAuth {
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return NewGCSSinkFromClient(client, bucket, object), nil
}

func NewGCSSinkFromClient(client *storage.Client, bucket, object string) *GCSSink {
	return &GCSSink{
		client: client,
		bucket: bucket,
		object: object,
	}
}

func (s *GCSSink) Write(ctx context.Context, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing object: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("closing writer: %w", err)
	}

	return nil
}

func (s *GCSSink) String() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}
