package internal

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"
)

// langConfidenceFloor avoids tagging short or ambiguous bodies with a
// guessed language; below it the record carries no language at all.
const langConfidenceFloor = 0.6

// DetectLanguage returns the ISO 639-3 tag of a text body, or "" when the
// detector is not confident enough.
func DetectLanguage(body string) string {
	info := whatlanggo.Detect(body)
	if info.Confidence < langConfidenceFloor {
		return ""
	}
	return info.Lang.Iso6393()
}

// CheckImagePayload verifies that an image message body really carries an
// encoded image. Clients send the payload base64-encoded; the sniff runs on
// the decoded bytes. The size ceiling is enforced upstream by the router.
func CheckImagePayload(body string) error {
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("image payload is not valid base64: %w", err)
	}
	mime := mimetype.Detect(decoded)
	if !strings.HasPrefix(mime.String(), "image/") {
		return fmt.Errorf("image payload has type %s", mime.String())
	}
	return nil
}
