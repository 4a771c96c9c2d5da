package asset

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	deletes []*s3.DeleteObjectInput
	putErr  error
	delErr  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(b))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.delErr != nil {
		return nil, f.delErr
	}
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Manager_Store(t *testing.T) {
	freezeTime(t, time.UnixMilli(1700000000000))

	client := &fakeS3{}
	m := NewS3Manager(client, "avatars", "uploads/", zap.NewNop())

	name, err := m.Store(context.Background(), strings.NewReader("img"), "png")
	require.NoError(t, err)
	assert.Equal(t, "1700000000000.png", name)

	require.Len(t, client.puts, 1)
	assert.Equal(t, "avatars", aws.ToString(client.puts[0].Bucket))
	assert.Equal(t, "uploads/1700000000000.png", aws.ToString(client.puts[0].Key))
	assert.Equal(t, "*", aws.ToString(client.puts[0].IfNoneMatch))
	assert.Equal(t, int64(3), aws.ToInt64(client.puts[0].ContentLength))
	assert.Equal(t, "img", client.bodies[0])
}

func TestS3Manager_StoreError(t *testing.T) {
	client := &fakeS3{putErr: errors.New("precondition failed")}
	m := NewS3Manager(client, "avatars", "", zap.NewNop())

	_, err := m.Store(context.Background(), strings.NewReader("img"), ".png")
	assert.Error(t, err)
}

func TestS3Manager_Remove(t *testing.T) {
	client := &fakeS3{}
	m := NewS3Manager(client, "avatars", "uploads/", zap.NewNop())

	require.NoError(t, m.Remove(context.Background(), "1700000000000.png"))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, "uploads/1700000000000.png", aws.ToString(client.deletes[0].Key))

	assert.ErrorIs(t, m.Remove(context.Background(), "../x.png"), ErrInvalidName)
}

func TestS3Manager_RemoveError(t *testing.T) {
	client := &fakeS3{delErr: errors.New("access denied")}
	m := NewS3Manager(client, "avatars", "", zap.NewNop())

	assert.Error(t, m.Remove(context.Background(), "1.png"))
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Options{Endpoint: "http://localhost:9000", Region: "auto", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NotNil(t, c)

	opts := c.Options()
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
}
