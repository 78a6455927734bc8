package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// ErrReportNotFound: the report has not been rendered yet (or was removed).
var ErrReportNotFound = errors.New("closing report not found")

// ReportStore persists rendered closing reports and reads them back for
// download. Save returns a location string (file path or gs:// URL).
type ReportStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// ── Local filesystem ─────────────────────────────────────────────────────────

type LocalReportStore struct {
	dir string
}

func NewLocalReportStore(dir string) (*LocalReportStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report store: create dir: %w", err)
	}
	return &LocalReportStore{dir: dir}, nil
}

func (s *LocalReportStore) Save(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("report store: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("report store: rename: %w", err)
	}
	return path, nil
}

func (s *LocalReportStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dir, filepath.Base(name)))
	if os.IsNotExist(err) {
		return nil, ErrReportNotFound
	}
	return f, err
}

// ── Google Cloud Storage ─────────────────────────────────────────────────────

type GCSReportStore struct {
	client *storage.Client
	bucket string
}

// NewGCSReportStore connects with the given credentials file, or with
// application default credentials when credentialsFile is empty.
func NewGCSReportStore(ctx context.Context, bucket, credentialsFile string) (*GCSReportStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("report store: gcs client: %w", err)
	}
	log.Info().Str("bucket", bucket).Msg("closing reports stored in GCS")
	return &GCSReportStore{client: client, bucket: bucket}, nil
}

func (s *GCSReportStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/pdf"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("report store: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("report store: gcs close: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

func (s *GCSReportStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrReportNotFound
	}
	return r, err
}

func (s *GCSReportStore) Close() error { return s.client.Close() }
