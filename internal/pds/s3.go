package pds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Credentials are stored per account for the s3 provider.
type S3Credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
}

// s3API is the subset of the S3 client the backend uses.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Provider stores documents in an S3 compatible bucket. Directories are
// zero length objects whose key ends in a slash.
type S3Provider struct {
	region   string
	endpoint string
	bucket   string
	// newClient is replaced in tests.
	newClient func(ctx context.Context, creds S3Credentials) (s3API, error)
}

// NewS3Provider creates the provider with defaults for credentials that
// leave region, endpoint or bucket empty.
func NewS3Provider(region, endpoint, bucket string) *S3Provider {
	p := &S3Provider{region: region, endpoint: endpoint, bucket: bucket}
	p.newClient = p.connect
	return p
}

func (p *S3Provider) Name() string { return "s3" }

func (p *S3Provider) Description() Description {
	return Description{Name: "S3 compatible storage"}
}

func (p *S3Provider) Open(ctx context.Context, raw []byte) (Backend, error) {
	var creds S3Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("invalid s3 credentials: %w", err)
	}
	if creds.Bucket == "" {
		creds.Bucket = p.bucket
	}
	if creds.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	client, err := p.newClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	return &s3Backend{client: client, bucket: creds.Bucket, prefix: strings.Trim(creds.Prefix, "/")}, nil
}

func (p *S3Provider) connect(ctx context.Context, creds S3Credentials) (s3API, error) {
	region := creds.Region
	if region == "" {
		region = p.region
	}
	endpoint := creds.Endpoint
	if endpoint == "" {
		endpoint = p.endpoint
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if creds.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type s3Backend struct {
	client s3API
	bucket string
	prefix string
}

var _ Backend = (*s3Backend)(nil)

func (b *s3Backend) key(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if b.prefix == "" {
		return p
	}
	if p == "" {
		return b.prefix
	}
	return b.prefix + "/" + p
}

func (b *s3Backend) dirKey(p string) string {
	k := b.key(p)
	if k == "" {
		return ""
	}
	return k + "/"
}

func (b *s3Backend) Stat(ctx context.Context, p string) (*FileInfo, error) {
	name := path.Base(p)
	if b.key(p) == b.prefix {
		return &FileInfo{Name: name, IsDir: true}, nil
	}

	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err == nil {
		return &FileInfo{Name: name, Size: aws.ToInt64(head.ContentLength)}, nil
	}
	if !isS3NotFound(err) {
		return nil, s3Error("stat", p, err)
	}

	exists, err := b.dirExists(ctx, p)
	if err != nil {
		return nil, s3Error("stat", p, err)
	}
	if !exists {
		return nil, notExist("stat", p)
	}
	return &FileInfo{Name: name, IsDir: true}, nil
}

func (b *s3Backend) ReadFile(ctx context.Context, p string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		return nil, s3Error("open", p, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, s3Error("read", p, err)
	}
	return data, nil
}

func (b *s3Backend) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := b.requireDir(ctx, "open", path.Dir(p)); err != nil {
		return err
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key(p)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return s3Error("write", p, err)
	}
	return nil
}

func (b *s3Backend) Mkdir(ctx context.Context, p string) error {
	if err := b.requireDir(ctx, "mkdir", path.Dir(p)); err != nil {
		return err
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.dirKey(p)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return s3Error("mkdir", p, err)
	}
	return nil
}

func (b *s3Backend) Readdir(ctx context.Context, p string) ([]string, error) {
	prefix := b.dirKey(p)
	var names []string
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, s3Error("scandir", p, err)
		}
		for _, cp := range out.CommonPrefixes {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/"))
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}

	if len(names) == 0 {
		exists, err := b.dirExists(ctx, p)
		if err != nil {
			return nil, s3Error("scandir", p, err)
		}
		if !exists {
			return nil, notExist("scandir", p)
		}
	}
	return names, nil
}

func (b *s3Backend) dirExists(ctx context.Context, p string) (bool, error) {
	prefix := b.dirKey(p)
	if prefix == "" || b.key(p) == b.prefix {
		return true, nil
	}
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

func (b *s3Backend) requireDir(ctx context.Context, op, dir string) error {
	exists, err := b.dirExists(ctx, dir)
	if err != nil {
		return s3Error(op, dir, err)
	}
	if !exists {
		return notExist(op, dir)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func s3Error(op, p string, err error) error {
	if isS3NotFound(err) {
		return notExist(op, p)
	}
	return &PathError{Op: op, Path: p, Code: "EIO", Err: err}
}
