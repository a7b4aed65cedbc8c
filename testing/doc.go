// Package testing provides test doubles for code built on the fetch engine.
//
// # Mocks
//
// The mocks subpackage provides a testify-based implementation of fetch.Transport
// with request matchers, so tests can script exchanges without a network.
//
// # Fixtures
//
// The fixtures subpackage provides canned responses and pre-configured transports
// for common scenarios: a healthy upstream, an unreachable one, and one that recovers
// after a number of connection failures.
//
// # Usage
//
//	import (
//		"github.com/gaborage/go-fetch/testing/fixtures"
//		"github.com/gaborage/go-fetch/testing/mocks"
//	)
//
//	engine := fetch.NewBuilder(log).
//		WithTransport(fixtures.NewFlakyTransport(2, 200, `{"id":"a"}`)).
//		Build()
package testing
