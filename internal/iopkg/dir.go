package iopkg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Entry is a file under a listed directory, keyed by its path relative to it.
type Entry struct {
	Path string
	Size int64
}

// List returns every file below a file:// or s3:// directory URI, sorted by
// relative path. A missing directory lists as empty.
func List(ctx context.Context, uri string) ([]Entry, error) {
	loc, err := parseLocation(uri)
	if err != nil {
		return nil, err
	}
	var out []Entry
	if loc.isS3() {
		out, err = listS3(ctx, loc)
	} else {
		out, err = listLocal(loc.path)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func listLocal(root string) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, Entry{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	return out, err
}

func listS3(ctx context.Context, loc location) ([]Entry, error) {
	cl, err := newS3Client(ctx)
	if err != nil {
		return nil, err
	}
	prefix := loc.key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var out []Entry
	pg := s3.NewListObjectsV2Paginator(cl, &s3.ListObjectsV2Input{Bucket: aws.String(loc.bucket), Prefix: aws.String(prefix)})
	for pg.HasMorePages() {
		resp, err := pg.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, o := range resp.Contents {
			key := aws.ToString(o.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, Entry{Path: strings.TrimPrefix(key, prefix), Size: aws.ToInt64(o.Size)})
		}
	}
	return out, nil
}

// ErrUnsupportedLocation is returned by DirComparer for locations that are
// neither file:// nor s3:// URIs.
var ErrUnsupportedLocation = errors.New("unsupported data location")

// DirComparer compares directories by relative file names and sizes.
// Both locations must carry an explicit file:// or s3:// scheme; a bare path
// could name a remote filesystem and would be walked locally.
type DirComparer struct{}

// Equal reports whether both directories hold the same files with the same sizes.
func (DirComparer) Equal(ctx context.Context, a, b string) (bool, error) {
	for _, uri := range []string{a, b} {
		if !strings.HasPrefix(uri, "file://") && !strings.HasPrefix(uri, "s3://") {
			return false, fmt.Errorf("%w: %s", ErrUnsupportedLocation, uri)
		}
	}
	la, err := List(ctx, a)
	if err != nil {
		return false, err
	}
	lb, err := List(ctx, b)
	if err != nil {
		return false, err
	}
	if len(la) != len(lb) {
		return false, nil
	}
	for i := range la {
		if la[i] != lb[i] {
			return false, nil
		}
	}
	return true, nil
}
