package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "document-generator-service/internal/config"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLocalSink(t *testing.T) {
	path := writeFile(t, "a.txt", "hola")
	got, err := LocalSink{}.Store(context.Background(), 1, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = LocalSink{}.Store(context.Background(), 1, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestS3Sink_Store(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "docs-bucket", "/generated/")
	path := writeFile(t, "Juan.txt", "contenido")

	location, err := sink.Store(context.Background(), 42, path)
	require.NoError(t, err)
	assert.Equal(t, "s3://docs-bucket/generated/42/Juan.txt", location)
	assert.Equal(t, "docs-bucket", aws.ToString(client.input.Bucket))
	assert.Equal(t, "generated/42/Juan.txt", aws.ToString(client.input.Key))
	assert.Contains(t, aws.ToString(client.input.ContentType), "text/plain")
	assert.Equal(t, "contenido", string(client.body))
}

func TestS3Sink_DefaultPrefixAndError(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	sink := NewS3SinkWithClient(client, "b", "")
	path := writeFile(t, "x.xlsx", "data")

	assert.Equal(t, "documents/3/x.xlsx", sink.Key(3, path))
	_, err := sink.Store(context.Background(), 3, path)
	assert.ErrorContains(t, err, "access denied")
}

func TestFromConfig_LocalWithoutBucket(t *testing.T) {
	sink, err := FromConfig(context.Background(), appconfig.OutputConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, LocalSink{}, sink)
}
