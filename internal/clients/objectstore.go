package clients

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tyemirov/dagbuild/internal/dag"
)

const (
	objectStoreEndpointMissingMessageConstant  = "object store endpoint not provided"
	objectStoreAccessKeyMissingMessageConstant = "object store access key not provided"
	objectStoreSecretKeyMissingMessageConstant = "object store secret key not provided"

	objectStoreDialTimeoutConstant           = 5 * time.Second
	objectStoreKeepAliveConstant             = 30 * time.Second
	objectStoreMaxIdleConnectionsConstant    = 100
	objectStoreIdleConnectionTimeoutConstant = 90 * time.Second
	objectStoreTLSHandshakeTimeoutConstant   = 5 * time.Second
	objectStoreExpectContinueTimeoutConstant = 1 * time.Second
)

// ObjectStoreConfiguration captures the settings of a MinIO-compatible client.
type ObjectStoreConfiguration struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Region    string `mapstructure:"region" yaml:"region"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// Validate checks the configuration for usable values.
func (configuration ObjectStoreConfiguration) Validate() error {
	if len(strings.TrimSpace(configuration.Endpoint)) == 0 {
		return errors.New(objectStoreEndpointMissingMessageConstant)
	}
	if len(strings.TrimSpace(configuration.AccessKey)) == 0 {
		return errors.New(objectStoreAccessKeyMissingMessageConstant)
	}
	if len(strings.TrimSpace(configuration.SecretKey)) == 0 {
		return errors.New(objectStoreSecretKeyMissingMessageConstant)
	}
	return nil
}

// ObjectStoreClient wraps a MinIO-compatible object storage connection as a
// graph resource client. The client owns its transport so Close can release
// the pooled connections.
type ObjectStoreClient struct {
	api       *minio.Client
	transport *http.Transport
}

var _ dag.Client = (*ObjectStoreClient)(nil)

// NewObjectStoreClient constructs a client with an owned transport.
func NewObjectStoreClient(configuration ObjectStoreConfiguration) (*ObjectStoreClient, error) {
	if validationError := configuration.Validate(); validationError != nil {
		return nil, validationError
	}

	transport := newObjectStoreTransport()
	api, clientError := minio.New(configuration.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(configuration.AccessKey, configuration.SecretKey, ""),
		Secure:    configuration.UseSSL,
		Region:    configuration.Region,
		Transport: transport,
	})
	if clientError != nil {
		return nil, clientError
	}

	return &ObjectStoreClient{api: api, transport: transport}, nil
}

// API exposes the object store handle for task builds.
func (client *ObjectStoreClient) API() *minio.Client {
	return client.api
}

// EnsureBucket creates the bucket when it does not exist yet.
func (client *ObjectStoreClient) EnsureBucket(executionContext context.Context, bucket string, region string) error {
	exists, existsError := client.api.BucketExists(executionContext, bucket)
	if existsError != nil {
		return existsError
	}
	if exists {
		return nil
	}
	return client.api.MakeBucket(executionContext, bucket, minio.MakeBucketOptions{Region: region})
}

// Close releases the pooled connections held by the owned transport.
func (client *ObjectStoreClient) Close() error {
	client.transport.CloseIdleConnections()
	return nil
}

func newObjectStoreTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   objectStoreDialTimeoutConstant,
		KeepAlive: objectStoreKeepAliveConstant,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          objectStoreMaxIdleConnectionsConstant,
		IdleConnTimeout:       objectStoreIdleConnectionTimeoutConstant,
		TLSHandshakeTimeout:   objectStoreTLSHandshakeTimeoutConstant,
		ExpectContinueTimeout: objectStoreExpectContinueTimeoutConstant,
	}
}
