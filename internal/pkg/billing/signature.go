package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the replay window applied when the caller does not
// configure one.
const DefaultTolerance = 5 * time.Minute

// signatureScheme is the versioned element name inside the signature header,
// format: "t=<unix>,v1=<hex hmac-sha256 of '<unix>.<body>'>".
const signatureScheme = "v1"

// VerifyAndDecode authenticates a raw webhook delivery and returns the
// decoded event. It recomputes the expected signature over the raw bytes in
// constant time and rejects payloads whose embedded timestamp falls outside
// the tolerance window. No side effects.
func VerifyAndDecode(rawBody []byte, signatureHeader, secret string, now time.Time, tolerance time.Duration) (*Event, error) {
	header := strings.TrimSpace(signatureHeader)
	if header == "" || len(rawBody) == 0 || strings.TrimSpace(secret) == "" {
		return nil, ErrMissingCredential
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return nil, err
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return nil, ErrStalePayload
	}

	expected := ComputeSignature(rawBody, secret, ts)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, ErrAuthentication
	}

	return DecodeEvent(rawBody)
}

// ComputeSignature returns the hex HMAC-SHA256 of "<ts>.<body>" under
// secret. Exposed for signing test payloads and outbound verification
// checks.
func ComputeSignature(body []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (ts int64, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, "", ErrAuthentication
			}
		case signatureScheme:
			sig = strings.ToLower(v)
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", ErrMissingCredential
	}
	return ts, sig, nil
}
