// Package client is the Go client for the closet API.
//
// A Session holds the in-memory access token and the signed-in user. It is
// an ordinary value: construct one per user or per test with New. Requests
// issued through Session.API go through Transport, which attaches the bearer
// token and recovers from an expired access token by refreshing once and
// retrying the original request.
//
// The refresh token itself never leaves the cookie jar of the injected
// *http.Client.
package client
