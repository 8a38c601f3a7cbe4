package sandbox

import (
	"encoding/base64"
	"encoding/hex"
	"unicode/utf8"
)

// DecodeContent turns a file's declared transport encoding plus raw bytes
// into canonical source bytes. The utf8 encoding (and a nil encoding) passes
// the bytes through unchanged; base64 and hex interpret the bytes as the
// UTF-8 text of an encoded string and decode it. Every failure is reported,
// never silently coerced to empty content.
func DecodeContent(file File) ([]byte, error) {
	encoding := EncodingUTF8
	if file.Encoding != nil {
		encoding = *file.Encoding
	}

	switch encoding {
	case EncodingUTF8:
		return file.Content, nil
	case EncodingBase64:
		if !utf8.Valid(file.Content) {
			return nil, Internalf("invalid UTF-8 in base64 content of %q", file.Name)
		}
		decoded, err := base64.StdEncoding.DecodeString(string(file.Content))
		if err != nil {
			return nil, Internalf("base64 decode error in %q: %v", file.Name, err)
		}
		return decoded, nil
	case EncodingHex:
		if !utf8.Valid(file.Content) {
			return nil, Internalf("invalid UTF-8 in hex content of %q", file.Name)
		}
		decoded, err := hex.DecodeString(string(file.Content))
		if err != nil {
			return nil, Internalf("hex decode error in %q: %v", file.Name, err)
		}
		return decoded, nil
	default:
		return nil, Internalf("unknown content encoding %q for %q", string(encoding), file.Name)
	}
}
