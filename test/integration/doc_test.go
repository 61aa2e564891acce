//go:build integration

// Package integration_test runs the client against real Redis servers.
//
// # Running Integration Tests
//
// The tests need Docker and the integration build tag:
//
//	go test -tags integration ./test/integration/...
//
// Set SKIP_INTEGRATION_TESTS=1 to skip them on machines without Docker.
//
// Each test starts a master and a replica container. An in-process fake
// sentinel reports their host-mapped addresses, so promotions are driven by
// REPLICAOF and the fake sentinel instead of a sentinel quorum.
package integration_test
