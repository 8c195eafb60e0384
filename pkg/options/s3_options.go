package options

import (
	"errors"

	"github.com/spf13/pflag"
)

var _ IOptions = (*S3Options)(nil)

// S3Options configure the object-storage mailbox.
type S3Options struct {
	Endpoint        string `json:"endpoint" mapstructure:"endpoint"`
	AccessKeyID     string `json:"access-key-id" mapstructure:"access-key-id"`
	SecretAccessKey string `json:"secret-access-key" mapstructure:"secret-access-key"`
	UseSSL          bool   `json:"use-ssl" mapstructure:"use-ssl"`
	// InsecureSkipVerify accepts self-signed certificates. Development only.
	InsecureSkipVerify bool   `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`
	BucketName         string `json:"bucket-name" mapstructure:"bucket-name"`
	Region             string `json:"region" mapstructure:"region"`
	// Prefix is the mailbox root inside the bucket.
	Prefix       string `json:"prefix" mapstructure:"prefix"`
	CreateBucket bool   `json:"create-bucket" mapstructure:"create-bucket"`
}

func NewS3Options() *S3Options {
	return &S3Options{
		Endpoint:     "localhost:9000",
		UseSSL:       false,
		BucketName:   "device-commands",
		Region:       "us-east-1",
		Prefix:       "mailbox",
		CreateBucket: true,
	}
}

// Validate only checks what any S3 destination needs; the group is unused
// when no destination has the s3 transport.
func (o *S3Options) Validate() []error {
	errs := []error{}

	if o.Endpoint == "" {
		errs = append(errs, errors.New("s3.endpoint must not be empty"))
	}
	if o.BucketName == "" {
		errs = append(errs, errors.New("s3.bucket-name must not be empty"))
	}

	return errs
}

func (o *S3Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	name := func(n string) string { return flagName("s3", prefixes, n) }

	fs.StringVar(&o.Endpoint, name("endpoint"), o.Endpoint, "S3 service endpoint (e.g. s3.amazonaws.com or minio.local:9000)")
	fs.StringVar(&o.AccessKeyID, name("access-key-id"), o.AccessKeyID, "S3 access key ID")
	fs.StringVar(&o.SecretAccessKey, name("secret-access-key"), o.SecretAccessKey, "S3 secret access key")
	fs.BoolVar(&o.UseSSL, name("use-ssl"), o.UseSSL, "Enable SSL for S3 connection")
	fs.BoolVar(&o.InsecureSkipVerify, name("insecure-skip-verify"), o.InsecureSkipVerify, "Skip TLS certificate verification for S3")
	fs.StringVar(&o.BucketName, name("bucket-name"), o.BucketName, "S3 bucket holding device command mailboxes")
	fs.StringVar(&o.Region, name("region"), o.Region, "S3 region")
	fs.StringVar(&o.Prefix, name("prefix"), o.Prefix, "Key prefix of the device mailboxes")
	fs.BoolVar(&o.CreateBucket, name("create-bucket"), o.CreateBucket, "Create the bucket on startup when it is missing")
}
