// Package api defines the request and response messages of the splitledger.v1
// RPC services. Messages travel as JSON; monetary values are decimal strings
// with two fractional digits ("54.00") and timestamps are Unix seconds.
package api
