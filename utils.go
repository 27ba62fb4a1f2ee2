package stowgate

import (
	"mime"
	"path"
	"strings"
	"unicode/utf8"
)

const (
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeText        = "text/plain;charset=utf-8"
)

// IsValidKey validates an object key taken from a request path.
// It checks that the key:
//   - is not empty
//   - does not start or end with "/"
//   - does not contain empty, "." or ".." segments
//   - does not contain a backslash
//   - is valid UTF-8
//   - does not contain null bytes, control characters (< 0x20) or DEL (0x7f)
//
// Spaces and other printable characters are allowed; clients percent-encode
// them in the URL.
func IsValidKey(key string) bool {
	if key == "" {
		return false
	}

	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return false
	}

	if strings.Contains(key, `\`) {
		return false
	}

	if !utf8.ValidString(key) {
		return false
	}

	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}

	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}

// ResolveContentType computes the Content-Type served for an object.
//
// The stored type is used unless it is empty or the generic octet-stream
// placeholder, in which case it is guessed from the key's extension. A text
// object is then always served as UTF-8 plain text, whatever came before.
func ResolveContentType(stored, key string, meta Metadata) string {
	contentType := stored
	if contentType == "" || contentType == ContentTypeOctetStream {
		contentType = detectContentType(key)
	}

	if meta.IsText() {
		contentType = ContentTypeText
	}

	return contentType
}

func detectContentType(key string) string {
	ext := path.Ext(key)
	if ext == "" {
		return ContentTypeOctetStream
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return ContentTypeOctetStream
	}

	return contentType
}
