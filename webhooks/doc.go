// Package webhooks contains inbound signature verification schemes and the
// per-vendor templates that bundle them.
//
// Verification always runs against the raw request body before any JSON
// decoding, and signature comparisons are constant time.
package webhooks
