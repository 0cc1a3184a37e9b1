// Package entity holds reusable entities.
package entity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// DefaultFileNameMax is the default maximum length of a FileName.
const DefaultFileNameMax = 50

var (
	ErrFileNameTooShort    = errors.New("the file name is too short; min: 3 characters")
	ErrFileNameTooLong     = errors.New("the file name is too long")
	ErrFileNameEndsWithDot = errors.New("a file name must not end with a dot")
	ErrFileNameNoExtension = errors.New("a file name must have an extension")
	ErrFileNameHasSlash    = errors.New("a file name must not contain a slash")
	ErrUploadedFilePayload = errors.New("the file contents are not valid base64")
)

// FileName is a validated, trimmed file name with an extension.
type FileName string

// ParseFileName validates value with the default maximum length.
func ParseFileName(value string) (FileName, error) {
	return NewFileName(value, DefaultFileNameMax)
}

// NewFileName validates value; maxLen is the maximum length, 0 for unlimited.
func NewFileName(value string, maxLen int) (FileName, error) {
	value = strings.TrimSpace(value)
	length := len([]rune(value))
	switch {
	case length <= 2:
		return "", ErrFileNameTooShort
	case maxLen != 0 && length > maxLen:
		return "", fmt.Errorf("%w; max: %d characters", ErrFileNameTooLong, maxLen)
	case strings.HasSuffix(value, "."):
		return "", ErrFileNameEndsWithDot
	case !strings.Contains(value, "."):
		return "", ErrFileNameNoExtension
	case strings.Contains(value, "/"):
		return "", ErrFileNameHasSlash
	}
	return FileName(value), nil
}

// Extension is what follows the last dot.
func (f FileName) Extension() string {
	s := string(f)
	return s[strings.LastIndex(s, ".")+1:]
}

// Title is the name without the extension.
func (f FileName) Title() string {
	s := string(f)
	return s[:strings.LastIndex(s, ".")]
}

func (f FileName) String() string { return string(f) }

// UploadedFile is a file received as a base64 payload.
type UploadedFile struct {
	Bytes    []byte   `json:"bytes"`
	Filename FileName `json:"filename"`
}

func NewUploadedFile(filename, payload string) (*UploadedFile, error) {
	name, err := ParseFileName(filename)
	if err != nil {
		return nil, err
	}
	byts, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadedFilePayload, err)
	}
	return &UploadedFile{Bytes: byts, Filename: name}, nil
}
