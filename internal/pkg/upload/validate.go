package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedExt = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".ogg":  true,
	".webm": true,
}

var allowedMime = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/wave":  true,
	"audio/x-wav": true,
	"audio/mp4":   true,
	"audio/flac":  true,
	"audio/ogg":   true,
	"video/mp4":   true,
	"video/webm":  true,
}

// ValidateMediaBySniff checks the provided filename (extension) and the first
// bytes (head) against a whitelist of audio/video types. Returns the detected
// mime or an error.
func ValidateMediaBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", errors.New("only MP3, WAV, M4A, MP4, FLAC, OGG and WEBM files are supported")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") {
		return "", errors.New("XML content is not supported")
	}

	// Several audio containers (M4A, FLAC frames mid-file) come back as
	// octet-stream from the sniffer; allow those by extension.
	if detected == "application/octet-stream" && allowedExt[ext] {
		return detected, nil
	}

	if allowedMime[detected] {
		return detected, nil
	}

	return "", errors.New("the file type is not supported")
}
