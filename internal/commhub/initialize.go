package commhub

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/autopeer-io/commhub/pkg/log"
	"github.com/autopeer-io/commhub/pkg/mqtt"
	"github.com/autopeer-io/commhub/pkg/options"
)

// InitializeMQTTClient creates a client for one connection role. Every
// destination and inbound source owns its own connection.
func InitializeMQTTClient(opts *options.MqttOptions, role string) (mqtt.Client, error) {
	mqttclient, err := mqtt.NewClient(opts.ToClientConfig(role))
	if err != nil {
		log.Error(err, "failed to new mqtt client", "role", role)
		return nil, err
	}

	return mqttclient, nil
}

// InitializeObjectStore creates the S3 client behind mailbox destinations.
func InitializeObjectStore(opts *options.S3Options) (*minio.Client, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}
	if opts.InsecureSkipVerify {
		minioOpts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}
