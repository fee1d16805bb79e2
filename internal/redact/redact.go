// Package redact removes credentials from strings before they are logged or
// returned in error responses. Backend errors routinely embed database URLs,
// S3 presigned query strings and access keys; none of those may leave the
// process unmasked.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

var (
	// user:password@ in postgres:// and similar URLs
	urlCredentialRegex = regexp.MustCompile(`(?i)\b([a-z][a-z0-9+.-]*://)[^/\s:@]+:[^@\s]+@`)

	passwordRegex = regexp.MustCompile(`(?i)\b(password|passwd|pwd)(\s*[=:]\s*['"]?)[^'"&\s]{3,}`)

	secretRegex = regexp.MustCompile(
		`(?i)\b(secret[_-]?access[_-]?key|secret|token|api[_-]?key)(\s*[=:]\s*['"]?)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	awsAccessKeyRegex = regexp.MustCompile(`\b(AKIA|ASIA)[A-Z0-9]{16}\b`)

	// X-Amz-Signature and X-Amz-Credential in presigned URLs
	amzQueryRegex = regexp.MustCompile(`(?i)(X-Amz-(?:Signature|Credential|Security-Token)=)[^&\s]+`)

	patterns = []struct {
		re          *regexp.Regexp
		replacement string
	}{
		{urlCredentialRegex, "${1}" + RedactedCredentialPlaceholder + "@"},
		{passwordRegex, "${1}${2}" + RedactedCredentialPlaceholder},
		{secretRegex, "${1}${2}" + RedactedKeyPlaceholder},
		{awsAccessKeyRegex, RedactedKeyPlaceholder},
		{amzQueryRegex, "${1}" + RedactionPlaceholder},
	}
)

// String returns s with every known credential pattern masked.
func String(s string) string {
	if s == "" {
		return s
	}

	for _, p := range patterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}

// Error returns the redacted message of err, or "" for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
