// Package connection discovers the local download service and keeps a
// health state machine against it.
//
// A Manager is Disconnected, Connecting or Connected. Connecting doubles as the
// mutual-exclusion flag: while a check is in flight, CheckStatus returns the
// current state instead of starting another probe. Failed checks schedule their
// own retry with exponential backoff, so the manager keeps reconnecting on its
// own until Stop is called.
//
// Until the first successful connection ever, a failed probe of the configured
// port is followed by a sweep of the fallback ports on the same host; the first
// port that answers becomes the endpoint and is persisted through the PortSaver.
package connection
