package s3images

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

// fakeS3 accepts single part uploads only, which is all small images need.
type fakeS3 struct {
	puts []*s3.PutObjectInput
	body []string
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.body = append(f.body, string(data))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func TestStore_Upload(t *testing.T) {
	fake := &fakeS3{}
	store := newStore(fake, "fruit-evidence", "/spoilages/", "https://cdn.example.com/", zap.NewNop())
	store.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }

	url, err := store.Upload(context.Background(), "Rotten.JPG", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)

	require.Len(t, fake.puts, 1)
	put := fake.puts[0]
	key := aws.ToString(put.Key)
	assert.Equal(t, "fruit-evidence", aws.ToString(put.Bucket))
	assert.True(t, strings.HasPrefix(key, "spoilages/2024/03/"), key)
	assert.True(t, strings.HasSuffix(key, ".jpg"), key)
	assert.Equal(t, "image/jpeg", aws.ToString(put.ContentType))
	assert.Equal(t, "Rotten.JPG", put.Metadata["original-name"])
	assert.Equal(t, "jpeg", fake.body[0])
	assert.Equal(t, "https://cdn.example.com/"+key, url)
}

func TestStore_UploadGuessesContentType(t *testing.T) {
	fake := &fakeS3{}
	store := newStore(fake, "b", "", "https://cdn.example.com", nil)

	_, err := store.Upload(context.Background(), "photo.png", strings.NewReader("png"), "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", aws.ToString(fake.puts[0].ContentType))
}

func TestStore_UploadError(t *testing.T) {
	store := newStore(&fakeS3{err: errors.New("access denied")}, "b", "p", "https://cdn.example.com", nil)

	_, err := store.Upload(context.Background(), "photo.jpg", strings.NewReader("x"), "image/jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
