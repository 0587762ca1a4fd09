// MIT License
//
// Copyright (c) 2025 André Jesus and vHive team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MinioStorage keeps results as objects of one bucket
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStorageFromConfig connects to the endpoint of cfg
func NewMinioStorageFromConfig(cfg Config) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating minio client for %s", cfg.Endpoint)
	}

	return NewMinioStorage(client, cfg.Bucket)
}

// NewMinioStorage returns a store on bucketName, creating the bucket if needed
func NewMinioStorage(client *minio.Client, bucketName string) (*MinioStorage, error) {
	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "checking bucket existence")
	}
	if !exists {
		err = client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "creating bucket")
		}
	}
	return &MinioStorage{client: client, bucketName: bucketName}, nil
}

// Save encodes v and uploads it under objectKey
func (m *MinioStorage) Save(ctx context.Context, objectKey string, v interface{}) error {
	data, err := Marshal(objectKey, v)
	if err != nil {
		return err
	}

	if err := m.UploadObject(ctx, objectKey, bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}

	log.WithFields(log.Fields{"bucket": m.bucketName, "key": objectKey, "bytes": len(data)}).Debug("Result uploaded")

	return nil
}

// Load downloads objectKey and decodes it into v
func (m *MinioStorage) Load(ctx context.Context, objectKey string, v interface{}) error {
	obj, err := m.DownloadObject(ctx, objectKey)
	if err != nil {
		return err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return errors.Wrapf(err, "reading object %s", objectKey)
	}

	return Unmarshal(objectKey, data, v)
}

func (m *MinioStorage) UploadObject(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := m.client.PutObject(
		ctx,
		m.bucketName,
		objectKey,
		reader,
		size,
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	return errors.Wrapf(err, "uploading object %s", objectKey)
}

func (m *MinioStorage) DownloadObject(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(
		ctx,
		m.bucketName,
		objectKey,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "getting object %s", objectKey)
	}
	return obj, nil
}

func (m *MinioStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := m.client.StatObject(
		ctx,
		m.bucketName,
		objectKey,
		minio.StatObjectOptions{},
	)
	if err != nil {
		// Check if the error is because the object doesn't exist
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrapf(err, "checking if object %s exists", objectKey)
	}
	return true, nil
}

// ListObjects lists the result keys under prefix
func (m *MinioStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var objects []string
	for object := range objectCh {
		if object.Err != nil {
			return nil, object.Err
		}
		objects = append(objects, object.Key)
	}
	return objects, nil
}
