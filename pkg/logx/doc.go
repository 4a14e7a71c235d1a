// Package logx configures slabot's structured logging.
//
// A small wrapper (logx.Logger) over zerolog keeps console output readable,
// file output JSON-structured, and can mirror warnings to the admin chat
// (min-level + rate limited, never blocking the caller).
package logx
