// Package remote is the HTTP client for the local download service.
//
// The service exposes three endpoints:
//
//	GET  {base}/status            -> {"status": "running"}
//	POST {base}/download/{track}  -> {"queueId": "...", "status": "...", "position": 0}
//	GET  {base}/queue             -> {"items": [{"id", "status", "progress", "position", "error"}]}
//
// and optionally DELETE {base}/queue/{id} when it supports cancellation.
//
// Every method takes the base URL explicitly because the connection manager may
// move the service to a fallback port at any time. Nothing here retries: retry and
// backoff policy belong to the callers.
package remote
