package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "documents/fy2023.pdf", want: "documents/fy2023.pdf"},
		{name: "simple prefix", prefix: "memo", key: "documents/fy2023.pdf", want: "memo/documents/fy2023.pdf"},
		{name: "prefix trailing slash", prefix: "memo/", key: "library/template.docx", want: "memo/library/template.docx"},
		{name: "prefix and key slashes", prefix: "/memo/", key: "/documents/fy2023.pdf", want: "memo/documents/fy2023.pdf"},
		{name: "empty key", prefix: "memo", key: "", want: "memo"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	if got := normalizePrefix("  /memo/prod/ "); got != "memo/prod" {
		t.Fatalf("normalizePrefix = %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &s3types.NoSuchKey{})) {
		t.Fatalf("expected NoSuchKey to be not found")
	}
	if !isNotFound(&smithy.GenericAPIError{Code: "NotFound"}) {
		t.Fatalf("expected generic NotFound api error to be not found")
	}
	if isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}) {
		t.Fatalf("access denied must not be treated as not found")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatalf("plain errors must not be treated as not found")
	}
}

func newPresignStore() *Store {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider("AKID", "SECRET", "")),
	}
	client := s3.NewFromConfig(cfg)
	return &Store{client: client, presign: s3.NewPresignClient(client), bucket: "bucket", prefix: "memos"}
}

func TestPresignPutSignedHeadersExcludeContentLength(t *testing.T) {
	store := newPresignStore()

	uploadURL, key, err := store.PresignPut(context.Background(), "documents", "acme-2023.pdf", 15*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(key, "documents/") || !strings.HasSuffix(key, "_acme-2023.pdf") {
		t.Fatalf("unexpected storage key %q", key)
	}

	parsed, err := url.Parse(uploadURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.Contains(parsed.Path, "memos/"+key) {
		t.Fatalf("expected prefixed object key in %q", parsed.Path)
	}

	signed := parsed.Query().Get("X-Amz-SignedHeaders")
	if signed == "" {
		t.Fatalf("expected X-Amz-SignedHeaders")
	}
	if strings.Contains(signed, "content-length") {
		t.Fatalf("unexpected content-length in signed headers: %s", signed)
	}
	if !strings.Contains(signed, "host") {
		t.Fatalf("expected host in signed headers: %s", signed)
	}
	if got := parsed.Query().Get("X-Amz-Expires"); got != "900" {
		t.Fatalf("expected 900s expiry, got %q", got)
	}
}
