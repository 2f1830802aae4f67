// Package inbound is the HTTP boundary for vendor deliveries: webhook
// intake and OAuth authorization callbacks. Every rejection renders the
// structured {code, message, vendor} envelope so clients never parse prose.
package inbound
