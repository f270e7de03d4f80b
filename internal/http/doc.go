// Package http provides the streaming HTTP client used to download exports.
//
// This package handles:
//   - Authorized GET requests built from a [Request] descriptor
//   - Returning the response body as a live stream, never buffered in full
//   - Mapping non-2xx statuses to sentinel errors
//   - Optional retry with exponential backoff before the body is handed out
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	resp, err := client.Open(ctx, auth.FileRequest(url, token))
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
package http
