package database

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// S3Sink uploads report files to a private, server-side encrypted bucket.
type S3Sink struct {
	api    s3iface.S3API
	bucket string
	prefix string
}

func NewS3Sink(region, bucket, prefix string) (*S3Sink, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "new aws session")
	}
	return NewS3SinkWithAPI(s3.New(sess), bucket, prefix), nil
}

func NewS3SinkWithAPI(api s3iface.S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) Upload(ctx context.Context, name string, reader io.Reader, contentType string) (string, error) {
	buffer, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.Wrap(err, "read report")
	}
	key := path.Join(s.prefix, name)

	_, err = s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		ACL:                  aws.String("private"),
		Body:                 bytes.NewReader(buffer),
		ContentLength:        aws.Int64(int64(len(buffer))),
		ContentType:          aws.String(contentType),
		ContentDisposition:   aws.String("attachment"),
		ServerSideEncryption: aws.String("AES256"),
	})
	if err != nil {
		return "", errors.Wrap(err, "s3 put object")
	}

	log.WithFields(log.Fields{"bucket": s.bucket, "key": key}).Info("uploaded report to s3")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
