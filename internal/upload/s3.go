// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package upload

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// PutObjectAPI is the subset of *s3.Client the sink uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // e.g. https://fra1.digitaloceanspaces.com; empty for AWS
	PublicURL       string // base URL objects are served from; derived when empty
	ACL             string
	KeyPrefix       string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool // MinIO and other self-hosted stores
}

// S3 uploads clips to an S3-compatible bucket such as DigitalOcean Spaces.
type S3 struct {
	client     PutObjectAPI
	bucket     string
	acl        types.ObjectCannedACL
	prefix     string
	publicBase string
}

// NewS3 builds an S3 sink from the default AWS configuration chain, overridden by cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return NewS3WithClient(client, cfg)
}

// NewS3WithClient builds an S3 sink around an existing client.
func NewS3WithClient(client PutObjectAPI, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must not be empty")
	}
	base, err := publicBase(cfg)
	if err != nil {
		return nil, err
	}
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		acl:        types.ObjectCannedACL(cfg.ACL),
		prefix:     cfg.KeyPrefix,
		publicBase: base,
	}, nil
}

// publicBase returns the URL prefix objects are reachable under: PublicURL when set, else the
// bucket URL of the endpoint, else the AWS regional URL.
func publicBase(cfg S3Config) (string, error) {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/"), nil
	}
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid s3 endpoint %q", cfg.Endpoint)
		}
		if cfg.PathStyle {
			return fmt.Sprintf("%s://%s/%s", u.Scheme, u.Host, cfg.Bucket), nil
		}
		return fmt.Sprintf("%s://%s.%s", u.Scheme, cfg.Bucket, u.Host), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region), nil
}

func (s *S3) Name() string { return "s3" }

func (s *S3) Publish(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	objectKey := s.prefix + key
	input := &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(objectKey),
		Body:               f,
		ContentLength:      aws.Int64(info.Size()),
		ContentType:        aws.String("video/mp4"),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", key)),
	}
	if s.acl != "" {
		input.ACL = s.acl
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	return s.publicBase + "/" + objectKey, nil
}
