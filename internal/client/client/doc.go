// Package client contains the device-side building blocks that talk to
// the outside world.
//
// # Overview
//
//  1. Gateway, the transport-agnostic contract of the remote registration
//     service: Submit one outbound operation, FetchTab for a page of
//     search results, Ping.
//  2. GRPCClient, the gRPC implementation. Messages travel as
//     google.protobuf.Struct values on the opencrvs.registration.v1
//     RegistrationService, and the access token is attached by an
//     interceptor.
//  3. InitDatabase and RunMigrations, which open the local SQLite file
//     and apply the embedded goose migrations.
//
// # Error Handling
//
// Server failures come back as *RemoteError carrying an HTTP-style status
// code. Network-level failures and 5xx codes match
// common.ErrTransientNetworkFailure; 4xx codes match
// common.ErrPermanentRejection. Use IsTransient and IsPermanent, or
// errors.Is.
package client
