// Package envelope implements the opaque request envelope carried as a
// URL path segment by the download endpoint: a small JSON object is
// byte-reversed, bitwise-NOTed, and hex-encoded. This is obfuscation,
// not encryption — it exists only so the wire format matches what
// existing clients and servers already interoperate on.
package envelope

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed reports an envelope that is not valid hex, has odd
// length, or does not decode to a JSON object matching Request.
var ErrMalformed = errors.New("envelope: malformed")

// Example is the JSON of a well-formed request. Its encoded form,
// EncodeRaw([]byte(Example)), is a literal valid envelope; 406 error
// bodies show both so a caller can see what a well-formed request looks
// like.
const Example = "{\"catalog\":\"default\",\"file\":\"path/to/file\"}"

// Request is the decoded contents of an envelope.
type Request struct {
	Catalog string `json:"catalog"`
	File    string `json:"file"`
	Skip    uint64 `json:"skip,omitempty"`
	Take    uint64 `json:"take,omitempty"`
}

// Encode serializes req to JSON, reverses it byte-wise, bitwise-NOTs
// every byte, and hex-encodes the result.
func Encode(req Request) (string, error) {
	j, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("envelope: marshal: %w", err)
	}
	return EncodeRaw(j), nil
}

// EncodeRaw applies the wire transform to an arbitrary byte slice,
// e.g. a literal JSON string used in a test or error example.
func EncodeRaw(b []byte) string {
	out := make([]byte, len(b))
	n := len(b)
	for i, c := range b {
		out[n-1-i] = ^c
	}
	return hex.EncodeToString(out)
}

// Decode reverses EncodeRaw and parses the result as a Request.
func Decode(s string) (Request, error) {
	b, err := DecodeRaw(s)
	if err != nil {
		return Request{}, err
	}
	var req Request
	if err := json.Unmarshal(b, &req); err != nil {
		return Request{}, fmt.Errorf("%w: not a valid request object: %v", ErrMalformed, err)
	}
	if req.File == "" {
		return Request{}, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	return req, nil
}

// DecodeRaw reverses EncodeRaw's transform without interpreting the
// result as JSON.
func DecodeRaw(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length", ErrMalformed)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex: %v", ErrMalformed, err)
	}
	n := len(raw)
	out := make([]byte, n)
	for i, c := range raw {
		out[n-1-i] = ^c
	}
	return out, nil
}
