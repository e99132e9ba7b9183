package llm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/billguard/constants"
)

var ErrBadDataURI = errors.New("malformed data uri")

// ParseDataURI splits "data:<mime>;base64,<payload>" and checks that the payload is an accepted image.
func ParseDataURI(uri string) (InlineImage, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "data:")
	if !ok {
		return InlineImage{}, fmt.Errorf("%w: missing data: prefix", ErrBadDataURI)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return InlineImage{}, fmt.Errorf("%w: missing payload separator", ErrBadDataURI)
	}

	params := strings.Split(header, ";")
	mt := strings.ToLower(strings.TrimSpace(params[0]))
	isB64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isB64 = true
		}
	}
	if !isB64 {
		return InlineImage{}, fmt.Errorf("%w: payload must be base64", ErrBadDataURI)
	}
	if !constants.IsAllowedImage(mt) {
		return InlineImage{}, fmt.Errorf("%w: unsupported mime type %q", ErrBadDataURI, mt)
	}
	if payload == "" {
		return InlineImage{}, fmt.Errorf("%w: empty payload", ErrBadDataURI)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return InlineImage{}, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	return InlineImage{MIMEType: mt, Data: payload}, nil
}

// EncodeDataURI is the inverse of ParseDataURI.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
