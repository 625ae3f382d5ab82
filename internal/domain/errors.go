package domain

import "errors"

// Domain errors.
var (
	// ErrNoURL is returned when a conversion request carries no source URL.
	ErrNoURL = errors.New("no URL provided")

	// ErrInvalidJobID is returned when a job identifier is not a UUID.
	ErrInvalidJobID = errors.New("invalid job ID")

	// ErrVideoNotFound is returned when a stored video cannot be found.
	ErrVideoNotFound = errors.New("video not found")

	// ErrNoVideoLink is returned when a page does not expose a usable video link.
	ErrNoVideoLink = errors.New("no video links found on the webpage, provide a direct link to a video file")

	// ErrUnsupportedHost is returned for hosts that need a dedicated extractor.
	ErrUnsupportedHost = errors.New("video host is not supported")

	// ErrDownloadFailed is returned when the source responds with a non-success status.
	ErrDownloadFailed = errors.New("video download failed")

	// ErrHTMLContent is returned when the source declares an HTML content type.
	ErrHTMLContent = errors.New("URL returns HTML content, provide a direct link to a video file")

	// ErrHTMLPayload is returned when a small download looks like an HTML page.
	ErrHTMLPayload = errors.New("downloaded file appears to be an HTML page, not a video")

	// ErrTranscodeFailed is returned when the transcoder exits unsuccessfully.
	ErrTranscodeFailed = errors.New("MP4 conversion failed")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")
)

// ConversionError wraps an error with job context.
type ConversionError struct {
	JobID JobID
	Op    string
	Err   error
}

func (e *ConversionError) Error() string {
	if e.JobID != "" {
		return e.Op + " [" + e.JobID.String() + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewConversionError creates a new ConversionError.
func NewConversionError(jobID JobID, op string, err error) *ConversionError {
	return &ConversionError{
		JobID: jobID,
		Op:    op,
		Err:   err,
	}
}
