package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// doPost performs one HTTP attempt and classifies its result. Connection
// and timeout failures classify as retryable; the response body is drained
// and discarded so the underlying connection can be reused.
func doPost(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Outcome{Class: ClassTerminal, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{Class: ClassRetryable, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return Outcome{Class: classifyStatus(resp.StatusCode), StatusCode: resp.StatusCode}
}
