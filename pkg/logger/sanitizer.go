package logger

import (
	"regexp"
	"strings"
)

// Sensitive field patterns to filter from logs
var (
	tokenPattern     = regexp.MustCompile(`(?i)(token|jwt|bearer)[\s:=]+[^\s&]+`)
	secretPattern    = regexp.MustCompile(`(?i)(secret|private[_-]?key|password)[\s:=]+[^\s&]+`)
	signaturePattern = regexp.MustCompile(`(?i)(X-Amz-Signature|X-Amz-Credential|X-Amz-Security-Token)=[^\s&"]+`)
)

const redactedPlaceholder = "[REDACTED]"

// SanitizeLogMessage removes credentials and presigned URL signatures from a log message.
func SanitizeLogMessage(message string) string {
	message = signaturePattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = tokenPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = secretPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	return message
}

var sensitiveKeys = []string{
	"token", "jwt", "bearer",
	"secret", "private_key", "password",
	"url", "code",
}

// SanitizeMap redacts values whose key names a credential. Share codes and presigned URLs count:
// either one grants access on its own.
func SanitizeMap(data map[string]any) map[string]any {
	sanitized := make(map[string]any, len(data))
	for k, v := range data {
		lowerKey := strings.ToLower(k)
		sanitized[k] = v
		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(lowerKey, sensitiveKey) {
				sanitized[k] = redactedPlaceholder
				break
			}
		}
	}
	return sanitized
}
