// MIT License
//
// Copyright (c) 2025 vHive team
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

// Package storage persists experiment results to local files or to an
// S3-compatible object store. The encoding follows the name of the target:
// ".cbor" selects CBOR, anything else JSON, and a trailing ".zst" compresses
// the encoded bytes with zstd.
package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

const zstdSuffix = ".zst"

// ResultStore persists one encoded value under a name
type ResultStore interface {
	Save(ctx context.Context, name string, v interface{}) error
	Load(ctx context.Context, name string, v interface{}) error
}

// Config selects the result store. Results go to the local filesystem
// unless a bucket is configured.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Secure    bool   `json:"secure"`
}

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	if encMode, err = encOptions.EncMode(); err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}

	if zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// New returns a MinIO store when cfg names a bucket, a file store otherwise
func New(cfg Config) (ResultStore, error) {
	if cfg.Bucket == "" {
		return NewFileStorage(), nil
	}

	return NewMinioStorageFromConfig(cfg)
}

// Marshal encodes v in the format selected by name
func Marshal(name string, v interface{}) ([]byte, error) {
	base, compressed := splitCompression(name)

	var (
		data []byte
		err  error
	)
	if filepath.Ext(base) == ".cbor" {
		data, err = encMode.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s", name)
	}

	if compressed {
		data = zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	return data, nil
}

// Unmarshal decodes data written by Marshal under the same name
func Unmarshal(name string, data []byte, v interface{}) error {
	base, compressed := splitCompression(name)

	if compressed {
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return errors.Wrapf(err, "decompressing %s", name)
		}
		data = raw
	}

	var err error
	if filepath.Ext(base) == ".cbor" {
		err = decMode.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}

	return errors.Wrapf(err, "decoding %s", name)
}

func splitCompression(name string) (string, bool) {
	if strings.HasSuffix(name, zstdSuffix) {
		return strings.TrimSuffix(name, zstdSuffix), true
	}
	return name, false
}
