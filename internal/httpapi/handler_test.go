package httpapi

import (
	"testing"

	"github.com/docuflow/enginecore/internal/domain/campaign"
)

func TestSplitDocumentPath(t *testing.T) {
	uuid, resource, ok := splitDocumentPath("/documents/abc-123/progress")
	if !ok || uuid != "abc-123" || resource != "progress" {
		t.Fatalf("expected (abc-123, progress, true), got (%s, %s, %v)", uuid, resource, ok)
	}

	if _, _, ok := splitDocumentPath("/documents/abc-123"); ok {
		t.Fatalf("expected a bare document path to be rejected")
	}
	if _, _, ok := splitDocumentPath("/documents/"); ok {
		t.Fatalf("expected an empty document path to be rejected")
	}
}

func TestValidateUpload_SizeLimit(t *testing.T) {
	camp := &campaign.Campaign{MaxFileSizeBytes: 100, AllowedMimeTypes: []string{"application/pdf"}}
	if err := validateUpload(camp, "application/pdf", 50); err != nil {
		t.Fatalf("expected upload within limit to pass: %v", err)
	}
	if err := validateUpload(camp, "application/pdf", 200); err == nil {
		t.Fatalf("expected oversized upload to be rejected")
	}
}

func TestValidateUpload_MimeType(t *testing.T) {
	camp := &campaign.Campaign{AllowedMimeTypes: []string{"application/pdf"}}
	if err := validateUpload(camp, "image/png", 10); err == nil {
		t.Fatalf("expected disallowed mime type to be rejected")
	}
}

func TestValidateUpload_DefaultsApplyWhenCampaignUnconfigured(t *testing.T) {
	camp := &campaign.Campaign{}
	if err := validateUpload(camp, "application/pdf", campaign.DefaultMaxFileSizeBytes+1); err == nil {
		t.Fatalf("expected the platform default size ceiling to apply")
	}
	if err := validateUpload(camp, "application/pdf", 10); err != nil {
		t.Fatalf("expected a default-allowed mime type to pass: %v", err)
	}
}
