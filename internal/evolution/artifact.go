package evolution

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"
)

const defaultImageType = "image/png"

// DecodePairing extracts pairing material from a connect, create or qrcode
// response body. Gateway variants disagree on field names, so every known
// location is tried: top-level base64/artifact/code, a nested "qrcode" object,
// or "qrcode" as a bare string. A body with no pairing fields decodes to an
// empty payload; a body that is not a JSON object or carries an undecodable
// image is malformed.
func DecodePairing(body []byte) (PairingPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return PairingPayload{}, nil
	}
	var env pairingEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return PairingPayload{}, malformed("decode pairing payload: %v", err)
	}

	var nested qrRecord
	var nestedString string
	if raw := bytes.TrimSpace(env.QRCode); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		switch raw[0] {
		case '{':
			if err := json.Unmarshal(raw, &nested); err != nil {
				return PairingPayload{}, malformed("decode qrcode object: %v", err)
			}
		case '"':
			if err := json.Unmarshal(raw, &nestedString); err != nil {
				return PairingPayload{}, malformed("decode qrcode string: %v", err)
			}
		}
	}

	payload := PairingPayload{
		Code:        firstNonEmpty(env.Code, nested.Code),
		PairingCode: firstNonEmpty(env.PairingCode, nested.PairingCode),
	}
	encoded := firstNonEmpty(env.Base64, env.Artifact, nested.Base64, nested.Artifact, nestedString)
	if encoded == "" {
		return payload, nil
	}
	img, mime, err := decodeImage(encoded)
	if err != nil {
		return PairingPayload{}, err
	}
	payload.Image = img
	payload.ImageType = mime
	return payload, nil
}

// decodeImage accepts either a data URI ("data:image/png;base64,....") or a
// bare base64 string.
func decodeImage(value string) ([]byte, string, error) {
	mime := defaultImageType
	data := strings.TrimSpace(value)
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, "", malformed("data uri without payload")
		}
		header := data[len("data:"):comma]
		data = data[comma+1:]
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", malformed("data uri is not base64 encoded")
		}
		if t := strings.TrimSuffix(header, ";base64"); t != "" {
			mime = t
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		if img, err := enc.DecodeString(data); err == nil && len(img) > 0 {
			return img, mime, nil
		}
	}
	return nil, "", malformed("pairing image is not valid base64")
}
