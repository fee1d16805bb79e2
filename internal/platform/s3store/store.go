package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/phrazzld/tasklist/internal/config"
	"github.com/phrazzld/tasklist/internal/store"
)

// DefaultFileName is the todo object used when no path is configured.
const DefaultFileName = "todo.txt"

// pingInterval limits how often IsOnline contacts the bucket.
const pingInterval = 10 * time.Second

// pingTimeout bounds a single reachability check.
const pingTimeout = 3 * time.Second

// API is the subset of the S3 client used by Store.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store is a store.FileStore over one bucket. Todo paths are object keys
// below an optional prefix.
type Store struct {
	client        API
	bucket        string
	prefix        string
	authenticated bool
	logger        *slog.Logger

	mu       sync.Mutex
	online   bool
	pingedAt time.Time
	now      func() time.Time
}

var _ store.FileStore = (*Store)(nil)

// New creates a Store over an existing client. authenticated reports
// whether the client has credentials.
func New(client API, bucket, prefix string, authenticated bool, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3 client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.New("bucket cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Store{
		client:        client,
		bucket:        bucket,
		prefix:        strings.Trim(prefix, "/"),
		authenticated: authenticated,
		logger:        logger.With("component", "s3store", "bucket", bucket),
		now:           time.Now,
	}, nil
}

// NewFromConfig builds the AWS client from cfg. Static credentials are
// used when both keys are set; otherwise the default credential chain.
func NewFromConfig(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
		},
	}
	if cfg.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	authenticated := true
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		logger.Warn("no usable AWS credentials, s3 backend is unauthenticated", "error", err)
		authenticated = false
	}

	return New(s3.NewFromConfig(awsCfg, s3Options...), cfg.Bucket, cfg.Prefix, authenticated, logger)
}

// IsAuthenticated implements store.FileStore.
func (s *Store) IsAuthenticated() bool {
	return s.authenticated
}

// IsOnline implements store.FileStore. The bucket is checked at most once
// per pingInterval; in between, the last check or request outcome is used.
func (s *Store) IsOnline() bool {
	s.mu.Lock()
	if !s.pingedAt.IsZero() && s.now().Sub(s.pingedAt) < pingInterval {
		online := s.online
		s.mu.Unlock()
		return online
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		s.logger.Debug("bucket check failed", "error", err)
	}
	s.markOnline(err == nil)
	return err == nil
}

func (s *Store) markOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
	s.pingedAt = s.now()
}

// DefaultPath implements store.FileStore.
func (s *Store) DefaultPath() string {
	return DefaultFileName
}

// Key returns the object key of a todo path.
func (s *Store) Key(p string) string {
	if p == "" {
		p = DefaultFileName
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if s.prefix == "" {
		return p
	}
	return s.prefix + "/" + p
}

// LoadContents implements store.FileStore.
func (s *Store) LoadContents(ctx context.Context, p string) (*store.RemoteContents, error) {
	key := s.Key(p)
	body, etag, err := s.get(ctx, key)
	if err != nil {
		return nil, s.mapError(key, "load", err)
	}
	return &store.RemoteContents{RemoteID: etag, Lines: store.SplitLines(body)}, nil
}

// SaveContents implements store.FileStore.
func (s *Store) SaveContents(ctx context.Context, p string, lines []string, eol string) (string, error) {
	key := s.Key(p)
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(store.JoinLines(lines, eol)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", s.mapError(key, "save", err)
	}
	s.markOnline(true)
	s.logger.Debug("saved todo object", "key", key, "lines", len(lines))
	return aws.ToString(out.ETag), nil
}

// AppendContents implements store.FileStore. S3 objects cannot be
// appended to, so the object is read and rewritten with a precondition on
// the ETag (or on absence) that was read.
func (s *Store) AppendContents(ctx context.Context, p string, lines []string, eol string) error {
	if len(lines) == 0 {
		return nil
	}
	key := s.Key(p)

	body, etag, err := s.get(ctx, key)
	missing := isNotFound(err)
	if err != nil && !missing {
		return s.mapError(key, "append", err)
	}

	if body != "" && !strings.HasSuffix(body, "\n") {
		if eol == "" {
			eol = store.EOLUnix
		}
		body += eol
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body + store.JoinLines(lines, eol)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}
	if missing {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return s.mapError(key, "append", err)
	}
	return nil
}

// RemoteVersion implements store.FileStore. A missing object has no version.
func (s *Store) RemoteVersion(ctx context.Context, p string) (string, error) {
	key := s.Key(p)
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		s.markOnline(true)
		return "", nil
	}
	if err != nil {
		return "", s.mapError(key, "stat", err)
	}
	s.markOnline(true)
	return aws.ToString(out.ETag), nil
}

// ListFiles implements store.FileStore. Common prefixes are folders.
func (s *Store) ListFiles(ctx context.Context, p string, txtOnly bool) ([]store.FileEntry, error) {
	dir := s.prefix
	if p != "" && p != "/" {
		dir = strings.TrimSuffix(s.Key(p), "/")
	}
	listPrefix := ""
	if dir != "" {
		listPrefix = dir + "/"
	}

	var out []store.FileEntry
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(listPrefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.mapError(listPrefix, "list", err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), listPrefix), "/")
			if name != "" {
				out = append(out, store.FileEntry{Name: name, IsFolder: true})
			}
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), listPrefix)
			if name == "" || (txtOnly && !store.IsTextFile(name)) {
				continue
			}
			out = append(out, store.FileEntry{Name: name})
		}
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, key string) (string, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", "", err
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", "", err
	}
	s.markOnline(true)
	return string(data), aws.ToString(out.ETag), nil
}

// mapError translates S3 errors into the store error taxonomy.
func (s *Store) mapError(key, operation string, err error) error {
	switch {
	case isNotFound(err):
		s.markOnline(true)
		return store.NewStoreError(key, operation, "object does not exist",
			fmt.Errorf("%w: %w", store.ErrTodoFileNotFound, err))
	case isPreconditionFailed(err):
		return store.NewStoreError(key, operation, "object changed concurrently",
			fmt.Errorf("%w: %w", store.ErrStateConflict, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return store.NewStoreError(key, operation, "request interrupted",
			fmt.Errorf("%w: %w", store.ErrIOFailure, err))
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// No service response: the endpoint is unreachable.
		s.markOnline(false)
	}
	return store.NewStoreError(key, operation, "object storage error",
		fmt.Errorf("%w: %w", store.ErrIOFailure, err))
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
	}
	return false
}
