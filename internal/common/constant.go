package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// registrar's access token on outbound requests.
const AccessTokenHeaderName = "authorization"

// DefaultPageSize is the number of rows requested per tab page.
const DefaultPageSize = 10
