// Package logtail reads and follows courier's JSON log file for the log view.
//
// # Reading
//
// Read returns the last N lines of a file in one pass using a ring buffer of
// N entries, so memory stays O(N) regardless of file size:
//
//	lines, err := logtail.Read(logging.Path(dataDir), 400)
//
// A missing file returns nil, nil; the logger creates it on first write.
//
// # Decoding
//
// Parse decodes one zap JSON line into an Entry (time, level, message and the
// remaining fields sorted by key). Format renders an Entry as a compact line:
//
//	12:00:05 WARN  poll failed consecutive=2 instance=agente
//
// Lines that are not JSON pass through unchanged.
//
// # Following
//
// Watch uses fsnotify on the parent directory and sends a coalesced signal on
// every write to the log, letting the UI reload only when something changed.
package logtail
