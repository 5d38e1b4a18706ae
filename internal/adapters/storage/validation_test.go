package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	cases := []struct {
		contentType string
		ok          bool
	}{
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"image/jpeg; charset=binary", true},
		{" video/mp4 ", true},
		{"text/vcard", true},
		{"application/pdf", false},
		{"application/octet-stream", false},
		{"", false},
	}
	for _, tc := range cases {
		err := ValidateContentType(tc.contentType)
		if (err == nil) != tc.ok {
			t.Fatalf("ValidateContentType(%q) err=%v, want ok=%v", tc.contentType, err, tc.ok)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	// The extension list varies by OS mime tables; only require a sane result.
	if ext := extensionFor("image/png"); len(ext) < 2 || ext[0] != '.' {
		t.Fatalf("expected a file extension for image/png, got %q", ext)
	}
	if ext := extensionFor("not/a-real-type"); ext != "" {
		t.Fatalf("expected empty extension for unknown type, got %q", ext)
	}
}
