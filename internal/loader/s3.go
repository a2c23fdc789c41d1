package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/parser"
)

// candidateExts are tried in order when an identifier has no extension.
var candidateExts = []string{".docx", ".html", ".htm", ".md", ".txt", ".json"}

// S3Config locates a bucket of content blocks.
type S3Config struct {
	Endpoint string
	Region   string
	Key      string
	Secret   string
	Bucket   string
	Prefix   string
}

// objectGetter is the part of the S3 client the loader uses.
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader loads blocks from an S3-compatible bucket. Object keys are
// case-sensitive, so aliases and candidate extensions are tried exactly.
type S3Loader struct {
	client  objectGetter
	bucket  string
	prefix  string
	aliases Aliases
	opts    parser.Options
	log     *slog.Logger
}

// NewS3 creates a loader with static credentials.
func NewS3(cfg S3Config, aliases Aliases, opts parser.Options, log *slog.Logger) (*S3Loader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 loader: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	o := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: true,
	}
	if cfg.Key != "" || cfg.Secret != "" {
		o.Credentials = credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")
	}
	if cfg.Endpoint != "" {
		o.BaseEndpoint = aws.String(strings.TrimSuffix(cfg.Endpoint, "/"+cfg.Bucket))
	}
	return newS3(s3.New(o), cfg.Bucket, cfg.Prefix, aliases, opts, log), nil
}

func newS3(client objectGetter, bucket, prefix string, aliases Aliases, opts parser.Options, log *slog.Logger) *S3Loader {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	if log == nil {
		log = slog.Default()
	}
	return &S3Loader{client: client, bucket: bucket, prefix: prefix, aliases: aliases, opts: opts, log: log}
}

// candidates lists object keys to try for id.
func (l *S3Loader) candidates(id string) []string {
	var names []string
	names = append(names, l.aliases[doctree.FoldKey(id)]...)
	names = append(names, id)

	var keys []string
	for _, name := range names {
		name = strings.TrimPrefix(name, "/")
		stem := name
		if parser.IsSupportedExtension(name) {
			keys = append(keys, path.Join(l.prefix, name))
			stem = strings.TrimSuffix(name, path.Ext(name))
		}
		for _, ext := range candidateExts {
			if key := path.Join(l.prefix, stem+ext); key != path.Join(l.prefix, name) {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// Load fetches the first existing candidate object and extracts it.
func (l *S3Loader) Load(ctx context.Context, id string) (doctree.Tree, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("content block %q: %w", id, docerr.ErrNotFound)
	}
	for _, key := range l.candidates(id) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isMissing(err) {
				continue
			}
			return nil, fmt.Errorf("get s3://%s/%s: %w", l.bucket, key, err)
		}
		data, err := io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read s3://%s/%s: %w", l.bucket, key, err)
		}

		p, err := parser.ForFileWith(key, l.opts)
		if err != nil {
			return nil, err
		}
		doc, err := p.Parse(bytes.NewReader(data), path.Base(key))
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", key, err)
		}
		l.log.Debug("content block loaded", "id", id, "bucket", l.bucket, "key", key)
		return doc.Body, nil
	}
	return nil, fmt.Errorf("content block %q in bucket %s: %w", id, l.bucket, docerr.ErrNotFound)
}

func isMissing(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}
