package drivers

import (
	"context"
	"testing"
)

func TestS3DriverPrefixedKeys(t *testing.T) {
	driver := NewS3Driver(nil, "voltwise-documents", "/documents/", "https://cdn.example.com/")

	if got := driver.objectKey("abc123.pdf"); got != "documents/abc123.pdf" {
		t.Errorf("objectKey = %q, want %q", got, "documents/abc123.pdf")
	}

	url, err := driver.PublicURL(context.Background(), "abc123.pdf", 0)
	if err != nil {
		t.Fatalf("PublicURL failed: %v", err)
	}
	if want := "https://cdn.example.com/documents/abc123.pdf"; url != want {
		t.Errorf("PublicURL = %q, want %q", url, want)
	}

	bare := NewS3Driver(nil, "voltwise-documents", "", "https://cdn.example.com")
	if got := bare.objectKey("abc123.pdf"); got != "abc123.pdf" {
		t.Errorf("objectKey without prefix = %q, want bare key", got)
	}
}
