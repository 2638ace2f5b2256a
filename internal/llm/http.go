package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Tiliavir/ttt-insights/internal/logger"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// vendorError is the error envelope shared by the Anthropic and Gemini APIs.
type vendorError struct {
	Error *struct {
		Type    string `json:"type"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// doJSON sends body (if non-nil) as JSON and decodes a 2xx response into
// out. Non-2xx responses become KindHTTP errors carrying the vendor message;
// undecodable 2xx bodies become KindMalformed. secret is redacted from any
// error text.
func doJSON(ctx context.Context, client *http.Client, v Vendor, method, url string, headers map[string]string, secret string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Kind: KindHTTP, Vendor: v, Message: logger.RedactSecret(logger.SanitizeError(err), secret), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindHTTP, Vendor: v, Status: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		var ve vendorError
		if json.Unmarshal(data, &ve) == nil && ve.Error != nil && ve.Error.Message != "" {
			msg = ve.Error.Message
		} else if s := strings.TrimSpace(string(data)); s != "" {
			msg = logger.SanitizeString(s, logger.MaxPreviewLength)
		}
		return &Error{Kind: KindHTTP, Vendor: v, Status: resp.StatusCode, Message: logger.RedactSecret(msg, secret)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindMalformed, Vendor: v, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}
