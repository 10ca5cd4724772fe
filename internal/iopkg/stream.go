// Package iopkg opens, creates and lists run files on the local filesystem
// (file:// or bare paths) and on S3 (s3://bucket/key).
package iopkg

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3iface is the subset of s3 client methods we use; allows test fakes.
type s3iface interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// newS3Client constructs an s3 client; overridden in tests.
// Honors AWS_ENDPOINT_URL_S3 and AWS_S3_FORCE_PATH_STYLE for MinIO.
var newS3Client = func(ctx context.Context) (s3iface, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ep := os.Getenv("AWS_ENDPOINT_URL_S3"); ep != "" {
			o.BaseEndpoint = aws.String(ep)
		}
		if strings.EqualFold(os.Getenv("AWS_S3_FORCE_PATH_STYLE"), "true") {
			o.UsePathStyle = true
		}
	}), nil
}

// location is a parsed run file URI. Exactly one of path or bucket is set.
type location struct {
	path   string
	bucket string
	key    string
}

func parseLocation(uri string) (location, error) {
	if !strings.Contains(uri, "://") {
		return location{path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return location{}, err
	}
	switch u.Scheme {
	case "file":
		return location{path: strings.TrimPrefix(uri, "file://")}, nil
	case "s3":
		if u.Host == "" {
			return location{}, fmt.Errorf("s3 uri without bucket: %s", uri)
		}
		return location{bucket: u.Host, key: strings.TrimPrefix(u.Path, "/")}, nil
	default:
		return location{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (l location) isS3() bool { return l.bucket != "" }

// Open returns a ReadCloser and, when known, the size of the object at uri.
func Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	loc, err := parseLocation(uri)
	if err != nil {
		return nil, 0, err
	}
	if !loc.isS3() {
		f, err := os.Open(loc.path)
		if err != nil {
			return nil, 0, err
		}
		var sz int64
		if st, err := f.Stat(); err == nil {
			sz = st.Size()
		}
		return f, sz, nil
	}
	cl, err := newS3Client(ctx)
	if err != nil {
		return nil, 0, err
	}
	resp, err := cl.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(loc.bucket), Key: aws.String(loc.key)})
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", uri, err)
	}
	return resp.Body, aws.ToInt64(resp.ContentLength), nil
}

func OpenReader(ctx context.Context, uri string) (io.ReadCloser, error) {
	rc, _, err := Open(ctx, uri)
	return rc, err
}

// Create creates a local file and its parent directories.
func Create(path string) (io.Writer, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// CreateWriter creates the object at uri. S3 objects are streamed through
// the multipart upload manager and complete on Close; a writer that is never
// closed leaves no object. Cancelling ctx aborts the upload.
func CreateWriter(ctx context.Context, uri string) (io.Writer, io.Closer, error) {
	loc, err := parseLocation(uri)
	if err != nil {
		return nil, nil, err
	}
	if !loc.isS3() {
		return Create(loc.path)
	}
	cl, err := newS3Client(ctx)
	if err != nil {
		return nil, nil, err
	}
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := manager.NewUploader(cl).Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(loc.bucket),
			Key:    aws.String(loc.key),
			Body:   pr,
		})
		if err != nil {
			err = fmt.Errorf("upload %s: %w", uri, err)
		}
		// Unblocks pending writes if the upload failed early.
		pr.CloseWithError(err)
		done <- err
	}()
	var once sync.Once
	var closeErr error
	return pw, closerFunc(func() error {
		once.Do(func() {
			_ = pw.Close()
			closeErr = <-done
		})
		return closeErr
	}), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
