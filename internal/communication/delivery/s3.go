package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/destination"
	"github.com/autopeer-io/commhub/pkg/log"
)

// ObjectStore is the subset of *minio.Client used by S3Provider.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ ObjectStore = (*minio.Client)(nil)

// ObjectParameters locate a delivery inside the bucket.
type ObjectParameters struct {
	Key string
}

var _ destination.ParameterExtractor[ObjectParameters] = (*S3ParameterExtractor)(nil)

// S3ParameterExtractor lays out a per-device mailbox:
//
//	{prefix}/{hardwareID}/commands/{invocationID}{ext}
//	{prefix}/{hardwareID}/system/{uuid}{ext}
type S3ParameterExtractor struct {
	prefix    string
	extension string
}

func NewS3ParameterExtractor(prefix, extension string) *S3ParameterExtractor {
	return &S3ParameterExtractor{prefix: prefix, extension: extension}
}

func (x *S3ParameterExtractor) Extract(nesting *model.NestingContext, _ *model.DeviceAssignment, execution *model.CommandExecution) (ObjectParameters, error) {
	target := nesting.Target()
	if target == nil || target.HardwareID == "" {
		return ObjectParameters{}, errors.New("no hardware id to address")
	}

	if execution == nil {
		return ObjectParameters{Key: path.Join(x.prefix, target.HardwareID, "system", uuid.NewString()+x.extension)}, nil
	}
	return ObjectParameters{Key: path.Join(x.prefix, target.HardwareID, "commands", execution.Invocation.ID+x.extension)}, nil
}

// S3ProviderOptions configures the mailbox bucket.
type S3ProviderOptions struct {
	Bucket      string
	Region      string
	ContentType string
	// CreateBucket makes the bucket on start when it is missing.
	CreateBucket bool
}

var _ destination.Provider[[]byte, ObjectParameters] = (*S3Provider)(nil)

// S3Provider drops encoded commands into an object-storage mailbox that
// intermittently connected devices poll.
type S3Provider struct {
	store  ObjectStore
	opts   S3ProviderOptions
	logger log.Logger
}

func NewS3Provider(store ObjectStore, opts S3ProviderOptions) *S3Provider {
	return &S3Provider{store: store, opts: opts, logger: log.WithName("s3-provider").WithValues("bucket", opts.Bucket)}
}

func (p *S3Provider) Name() string { return "s3-delivery-provider" }

func (p *S3Provider) Start(ctx context.Context) error {
	exists, err := p.store.BucketExists(ctx, p.opts.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if !p.opts.CreateBucket {
		return fmt.Errorf("bucket %q does not exist", p.opts.Bucket)
	}

	p.logger.Info("Bucket does not exist, creating")
	if err := p.store.MakeBucket(ctx, p.opts.Bucket, minio.MakeBucketOptions{Region: p.opts.Region}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (p *S3Provider) Stop(context.Context) error { return nil }

func (p *S3Provider) Deliver(ctx context.Context, nesting *model.NestingContext, _ *model.DeviceAssignment, execution *model.CommandExecution, encoded []byte, params ObjectParameters) error {
	meta := map[string]string{
		"invocation": execution.Invocation.ID,
		"command":    execution.Command.Token,
	}
	if nesting != nil && nesting.Nested != nil {
		meta["hardware-id"] = nesting.Nested.HardwareID
	}
	return p.put(ctx, params.Key, encoded, meta)
}

func (p *S3Provider) DeliverSystemCommand(ctx context.Context, nesting *model.NestingContext, _ *model.DeviceAssignment, encoded []byte, params ObjectParameters) error {
	meta := map[string]string{"kind": "system"}
	if nesting != nil && nesting.Nested != nil {
		meta["hardware-id"] = nesting.Nested.HardwareID
	}
	return p.put(ctx, params.Key, encoded, meta)
}

func (p *S3Provider) put(ctx context.Context, key string, payload []byte, meta map[string]string) error {
	info, err := p.store.PutObject(ctx, p.opts.Bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:  p.opts.ContentType,
		UserMetadata: meta,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	p.logger.Debug("Stored command object", "key", key, "etag", info.ETag)
	return nil
}
