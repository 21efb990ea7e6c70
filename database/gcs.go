package database

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	config "ckreport/config"

	"cloud.google.com/go/storage"
	"github.com/customerio/clock"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GCSSink uploads report files to a bucket and hands back a signed download URL.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
	conf   config.GCSConfig
	ttl    time.Duration
}

func NewGCSSink(ctx context.Context, conf config.GCSConfig, bucket, prefix string, ttl time.Duration) (*GCSSink, error) {
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(conf.Credentials_File))
	if err != nil {
		return nil, errors.Wrap(err, "new gcs client")
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix, conf: conf, ttl: ttl}, nil
}

func (g *GCSSink) Upload(ctx context.Context, name string, reader io.Reader, contentType string) (string, error) {
	objectName := path.Join(g.prefix, name)

	obj := g.client.Bucket(g.bucket).Object(objectName)
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.ContentDisposition = fmt.Sprintf("attachment; filename=%v", path.Base(objectName))

	if _, err := io.Copy(writer, reader); err != nil {
		writer.Close()
		return "", errors.Wrap(err, "gcs upload")
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(err, "gcs writer close")
	}

	log.WithFields(log.Fields{"bucket": g.bucket, "object": objectName}).Info("uploaded report to gcs")
	return g.SignedURL(objectName)
}

func (g *GCSSink) SignedURL(objectName string) (string, error) {
	url, err := storage.SignedURL(g.bucket, objectName, &storage.SignedURLOptions{
		GoogleAccessID: g.conf.Client_Email,
		PrivateKey:     []byte(g.conf.Private_Key),
		Method:         "GET",
		Expires:        clock.Now().Add(g.ttl),
	})
	if err != nil {
		return "", errors.Wrap(err, "sign gcs url")
	}
	return url, nil
}

func (g *GCSSink) Close() error {
	return g.client.Close()
}
