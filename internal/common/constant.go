// Package common holds constants and sentinel errors shared by the offsync
// client and server.
package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
const AccessTokenHeaderName = "access_token"
