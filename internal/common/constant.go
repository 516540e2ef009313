// Package common contains constants and sentinel errors shared by the
// splitsync client and the reference sync server.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"
