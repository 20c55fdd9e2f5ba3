package s3client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// TestClient returns a Client backed by an in-memory gofakes3 server with
// bucketName already created. The server is closed when the test ends.
func TestClient(t testing.TB, bucketName string) *Client {
	t.Helper()

	faker := gofakes3.New(s3mem.New())
	ts := httptest.NewServer(faker.Server())
	t.Cleanup(ts.Close)

	client, err := New(context.Background(), Config{
		Endpoint:        ts.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      bucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("s3client: %v", err)
	}

	if _, err := client.s3.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}); err != nil {
		t.Fatalf("failed to create test bucket: %v", err)
	}
	return client
}
