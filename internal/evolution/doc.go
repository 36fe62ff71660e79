// Package evolution provides an HTTP client for the Evolution API WhatsApp gateway.
//
// # Overview
//
// The client covers the instance lifecycle routes courier needs:
//
//   - GET    /instance/fetchInstances   list every instance and its connection state
//   - GET    /instance/connect/{name}   open or continue a session (may return a QR)
//   - POST   /instance/create           register a new instance with a QR challenge
//   - GET    /instance/qrcode/{name}    dedicated pairing-artifact endpoint
//   - DELETE /instance/logout/{name}    end an open session
//   - DELETE /instance/delete/{name}    remove the instance
//
// Every request carries the static "apikey" header supplied by configuration.
//
// # Response Shapes
//
// Gateway releases disagree on field names. ListInstances accepts the flat
// record (name, connectionStatus, ownerJid, _count) and the legacy record nested
// under "instance" (instanceName, status, owner). DecodePairing looks for image
// data in base64, artifact, qrcode.base64 or a bare qrcode string, and accepts
// both data URIs and raw base64.
//
// # Error Handling
//
// Failures are reported through a small taxonomy so callers can decide policy:
//
//   - ErrTransient: the request never produced a response (timeout, refused)
//   - *RejectionError: the gateway answered with a non-2xx status
//   - ErrMalformed: the body could not be decoded into the expected shape
//
// Use errors.Is / errors.As to classify. The client never retries; the caller's
// polling cadence is the retry policy.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package evolution
