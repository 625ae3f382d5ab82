package domain

import (
	"errors"
	"testing"
)

func TestNewJobID_Unique(t *testing.T) {
	a := NewJobID()
	b := NewJobID()
	if a == b {
		t.Errorf("NewJobID() returned duplicate %q", a)
	}
	if _, err := ParseJobID(a.String()); err != nil {
		t.Errorf("ParseJobID(%q) failed: %v", a, err)
	}
}

func TestParseJobID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"canonical uuid", "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b", false},
		{"empty", "", true},
		{"traversal", "../etc/passwd", true},
		{"braced uuid", "{3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b}", true},
		{"urn uuid", "urn:uuid:3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b", true},
		{"with extension", "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b.mp4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseJobID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidJobID) {
				t.Errorf("error = %v, want ErrInvalidJobID", err)
			}
		})
	}
}

func TestJobID_Filename(t *testing.T) {
	id := JobID("3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b")
	if got := id.Filename(); got != "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b.mp4" {
		t.Errorf("Filename() = %q", got)
	}
}

func TestJobIDFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    JobID
		wantErr bool
	}{
		{"stored video", "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b.mp4", "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b", false},
		{"no extension", "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b", "", true},
		{"staging file", "3f2b8c1e-9a4d-4e7f-8b2a-1c5d6e7f8a9b.mp4.part", "", true},
		{"other name", "notes.mp4", "", true},
		{"traversal", "../secret.mp4", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JobIDFromFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("JobIDFromFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("JobIDFromFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConversionError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *ConversionError
		wantMsg string
	}{
		{
			name:    "with job ID",
			err:     NewConversionError("job-123", "download", errors.New("timeout")),
			wantMsg: "download [job-123]: timeout",
		},
		{
			name:    "without job ID",
			err:     NewConversionError("", "download", errors.New("timeout")),
			wantMsg: "download: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConversionError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConversionError_Unwrap(t *testing.T) {
	err := NewConversionError("job-123", "fetch", ErrHTMLContent)

	if !errors.Is(err, ErrHTMLContent) {
		t.Error("errors.Is should return true for wrapped sentinel")
	}

	var convErr *ConversionError
	if !errors.As(error(err), &convErr) || convErr.Op != "fetch" {
		t.Errorf("errors.As should recover ConversionError, got %+v", convErr)
	}
}
