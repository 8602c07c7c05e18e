// Package validator holds field checks shared by request validation tags.
package validator

import (
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"
)

const (
	TagContentType = "content_type"
	TagDisplayName = "display_name"

	maxContentTypeLen = 255
	maxDisplayNameLen = 64
	asciiControlStart = 32
	asciiDelete       = 127

	errContentTypeMaxLengthFmt = "content type must not exceed %d characters"
	errContentTypeInvalidFmt   = "invalid content type"
	errNameEmptyFmt            = "name cannot be empty"
	errNameMaxLengthFmt        = "name must not exceed %d characters"
	errNamePathSepFmt          = "name cannot contain path separators"
	errNameControlCharsFmt     = "name cannot contain control characters"
)

// ContentType accepts an empty value or a type/subtype media type with optional parameters.
func ContentType(contentType string) error {
	if contentType == "" {
		return nil
	}

	if len(contentType) > maxContentTypeLen {
		return fmt.Errorf(errContentTypeMaxLengthFmt, maxContentTypeLen)
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf(errContentTypeInvalidFmt)
	}

	// ParseMediaType accepts a bare token; a content type needs type/subtype.
	major, minor, ok := strings.Cut(mediaType, "/")
	if !ok || major == "" || minor == "" || strings.Contains(minor, "/") {
		return fmt.Errorf(errContentTypeInvalidFmt)
	}

	return nil
}

// DisplayName checks a file or folder name as typed by a user.
func DisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf(errNameEmptyFmt)
	}

	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return fmt.Errorf(errNameMaxLengthFmt, maxDisplayNameLen)
	}

	if name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf(errNamePathSepFmt)
	}

	for _, char := range name {
		if char < asciiControlStart || char == asciiDelete {
			return fmt.Errorf(errNameControlCharsFmt)
		}
	}

	return nil
}

// Register adds the content_type and display_name tags to v.
func Register(v *playground.Validate) error {
	if err := v.RegisterValidation(TagContentType, func(fl playground.FieldLevel) bool {
		return ContentType(fl.Field().String()) == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation(TagDisplayName, func(fl playground.FieldLevel) bool {
		return DisplayName(fl.Field().String()) == nil
	})
}
