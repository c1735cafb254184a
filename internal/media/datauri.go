package media

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fathima-sithara/dm-service/internal/errs"
)

// DecodeDataURI decodes "data:<mime>;base64,<data>" or bare base64. The
// declared mime type is returned but callers should not trust it.
func DecodeDataURI(payload string) (data []byte, declared string, err error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", fmt.Errorf("%w: empty image payload", errs.ErrInvalidInput)
	}

	encoded := payload
	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, "", fmt.Errorf("%w: malformed data uri", errs.ErrInvalidInput)
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("%w: data uri is not base64", errs.ErrInvalidInput)
		}
		declared = strings.TrimSuffix(meta, ";base64")
		encoded = body
	}

	data, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// some clients strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: bad base64 image", errs.ErrInvalidInput)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty image payload", errs.ErrInvalidInput)
	}
	return data, declared, nil
}

// EncodeDataURI is the inverse of DecodeDataURI.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
