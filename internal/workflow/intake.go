package workflow

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/llm"
)

type pendingFile struct {
	PendingUpload
	dataURI string
}

// readUpload checks size and type and encodes the file as a data URI.
// The sniffed type wins; the extension is only consulted when sniffing is inconclusive (HEIC).
func readUpload(name string, data []byte, maxBytes int) (*pendingFile, error) {
	v := common.NewValidator().
		Field("file", data, common.Required, common.MaxBytes(maxBytes)).
		Field("name", name, common.MaxLength(255))
	if err := v.Error(); err != nil {
		return nil, err
	}

	mt := http.DetectContentType(data)
	if !constants.IsAllowedImage(mt) {
		byExt := constants.MimeForExt(filepath.Ext(name))
		if mt != "application/octet-stream" || byExt == "" {
			return nil, fmt.Errorf("%w: unsupported file type %q", common.ErrInvalidInput, mt)
		}
		mt = byExt
	}

	return &pendingFile{
		PendingUpload: PendingUpload{Name: name, MIMEType: mt, Size: len(data)},
		dataURI:       llm.EncodeDataURI(mt, data),
	}, nil
}

// readDataURI accepts an already-encoded image, as sent by thin clients.
func readDataURI(name, uri string, maxBytes int) (*pendingFile, error) {
	img, err := llm.ParseDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
	}
	if err := common.NewValidator().Field("file", data, common.MaxBytes(maxBytes)).Error(); err != nil {
		return nil, err
	}
	return &pendingFile{
		PendingUpload: PendingUpload{Name: name, MIMEType: img.MIMEType, Size: len(data)},
		dataURI:       llm.EncodeDataURI(img.MIMEType, data),
	}, nil
}
