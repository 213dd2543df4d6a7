package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Planguard-Signature"
	TimestampHeader = "X-Planguard-Timestamp"
	DeliveryHeader  = "X-Planguard-Delivery"

	signaturePrefix = "sha256="
)

// Sign returns "sha256=<hex>" of HMAC-SHA256(secret, "<unix ts>.<payload>").
func Sign(secret string, payload []byte, ts time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if len(payload) == 0 {
		return "", ErrInvalidPayload
	}
	return signaturePrefix + hex.EncodeToString(mac(secret, payload, ts.Unix())), nil
}

// Verify checks the signature headers of a delivered request against its body.
// A zero maxAge disables the freshness check.
func Verify(secret string, payload []byte, header http.Header, maxAge time.Duration) error {
	if secret == "" {
		return ErrMissingSecret
	}

	sig, rawTS := header.Get(SignatureHeader), header.Get(TimestampHeader)
	if sig == "" || rawTS == "" {
		return ErrMissingSignatureData
	}

	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrMalformedSignature, rawTS)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > maxAge {
			return fmt.Errorf("%w: %s old", ErrSignatureExpired, age.Truncate(time.Second))
		}
		if age < -time.Minute {
			return ErrSignatureFromFuture
		}
	}

	hexSig, ok := strings.CutPrefix(sig, signaturePrefix)
	if !ok {
		return fmt.Errorf("%w: missing %q prefix", ErrMalformedSignature, signaturePrefix)
	}
	got, err := hex.DecodeString(hexSig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	if !hmac.Equal(got, mac(secret, payload, ts)) {
		return ErrInvalidSignature
	}
	return nil
}

func mac(secret string, payload []byte, ts int64) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return h.Sum(nil)
}
