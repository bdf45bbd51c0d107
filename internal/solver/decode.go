package solver

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// DecodeImage decodes data into an NRGBA raster at its natural size. data
// may be an encoded image (any format imaging reads), a data URL such as
// "data:image/png;base64,...", or bare base64.
func DecodeImage(data []byte) (*image.NRGBA, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}

	if bytes.HasPrefix(data, []byte("data:")) {
		raw, err := decodeDataURL(string(data))
		if err != nil {
			return nil, err
		}
		data = raw
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		raw, b64err := base64.StdEncoding.DecodeString(string(data))
		if b64err != nil {
			return nil, errors.Wrap(err, "decoding image")
		}
		if img, err = imaging.Decode(bytes.NewReader(raw)); err != nil {
			return nil, errors.Wrap(err, "decoding base64 image")
		}
	}
	return imaging.Clone(img), nil
}

func decodeDataURL(url string) ([]byte, error) {
	comma := strings.IndexByte(url, ',')
	if comma < 0 {
		return nil, errors.New("data URL has no payload")
	}
	header, payload := url[len("data:"):comma], url[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return nil, errors.Errorf("unsupported data URL encoding %q", header)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decoding data URL")
	}
	return raw, nil
}
