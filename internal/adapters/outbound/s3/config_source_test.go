package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/archon-research/stl/pyth-keeper/internal/testutil"
)

const configJSON = `{
  "pythNetworkAddress": "0xff1a0f4744e8582DF1aE09D5611b887B6a12925C",
  "priceServiceEndpoint": "https://hermes.pyth.network",
  "configRefreshRateInSeconds": 600,
  "validTimePeriodSeconds": 3600,
  "deviationThresholdBps": 50,
  "priceIds": ["ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"],
  "callMode": "feeds"
}`

type mockS3API struct {
	getObjectFunc func(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	lastBucket    string
	lastKey       string
}

func (m *mockS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.lastBucket = aws.ToString(params.Bucket)
	m.lastKey = aws.ToString(params.Key)
	if m.getObjectFunc != nil {
		return m.getObjectFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(""))}, nil
}

func sourceWith(body []byte) (*ConfigSource, *mockS3API) {
	mock := &mockS3API{
		getObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
		},
	}
	return &ConfigSource{client: mock, logger: testutil.DiscardLogger()}, mock
}

func TestNewConfigSource(t *testing.T) {
	src := NewConfigSource(aws.Config{}, nil)
	if src.client == nil || src.logger == nil {
		t.Fatal("expected client and logger to be set")
	}
	if src.Name() != "s3" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestFetchConfig(t *testing.T) {
	src, mock := sourceWith([]byte(configJSON))

	cfg, err := src.FetchConfig(context.Background(), "s3://keeper-config/prod/config.json")
	if err != nil {
		t.Fatalf("FetchConfig: %v", err)
	}
	if mock.lastBucket != "keeper-config" || mock.lastKey != "prod/config.json" {
		t.Errorf("requested %s/%s", mock.lastBucket, mock.lastKey)
	}
	if cfg.DeviationThresholdBps != 50 || cfg.CallMode != "feeds" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestFetchConfig_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(configJSON)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	src, _ := sourceWith(buf.Bytes())
	cfg, err := src.FetchConfig(context.Background(), "keeper-config/config.json.gz")
	if err != nil {
		t.Fatalf("FetchConfig: %v", err)
	}
	if cfg.RefreshIntervalSeconds != 600 {
		t.Errorf("refresh = %d", cfg.RefreshIntervalSeconds)
	}
}

func TestFetchConfig_Errors(t *testing.T) {
	t.Run("get object fails", func(t *testing.T) {
		boom := errors.New("access denied")
		mock := &mockS3API{getObjectFunc: func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
			return nil, boom
		}}
		src := &ConfigSource{client: mock, logger: testutil.DiscardLogger()}
		if _, err := src.FetchConfig(context.Background(), "s3://b/k"); !errors.Is(err, boom) {
			t.Errorf("err = %v, want wrapping access denied", err)
		}
	})

	t.Run("empty document", func(t *testing.T) {
		src, _ := sourceWith(nil)
		if _, err := src.FetchConfig(context.Background(), "s3://b/k"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("not gzip", func(t *testing.T) {
		src, _ := sourceWith([]byte(configJSON))
		if _, err := src.FetchConfig(context.Background(), "s3://b/k.gz"); err == nil {
			t.Error("expected gzip error")
		}
	})
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{in: "s3://bucket/a/b.yaml", bucket: "bucket", key: "a/b.yaml"},
		{in: "bucket/key", bucket: "bucket", key: "key"},
		{in: "s3://bucket", wantErr: true},
		{in: "s3:///key", wantErr: true},
		{in: "bucket/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, key, err := ParseLocation(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.bucket || key != tt.key {
				t.Errorf("got %s/%s, want %s/%s", bucket, key, tt.bucket, tt.key)
			}
		})
	}
}
