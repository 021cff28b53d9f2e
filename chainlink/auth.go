package chainlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
)

// signRequest returns the Data Streams HMAC-SHA256 signature of
// "METHOD PATH BODY_HASH API_KEY TIMESTAMP_MS". The body hash is empty for
// body-less requests, matching the server's canonicalization.
func signRequest(apiKey, apiSecret, method, path, body string, tsMs int64) string {
	bodyHash := ""
	if body != "" {
		sum := sha256.Sum256([]byte(body))
		bodyHash = hex.EncodeToString(sum[:])
	}

	stringToSign := fmt.Sprintf("%s %s %s %s %d", method, path, bodyHash, apiKey, tsMs)

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// authHeaders builds the three Data Streams auth headers for a GET of path.
func authHeaders(apiKey, apiSecret, path string, tsMs int64) http.Header {
	signature := signRequest(apiKey, apiSecret, http.MethodGet, path, "", tsMs)

	header := http.Header{}
	header.Set("Authorization", apiKey)
	header.Set("X-Authorization-Timestamp", strconv.FormatInt(tsMs, 10))
	header.Set("X-Authorization-Signature-SHA256", signature)
	return header
}
