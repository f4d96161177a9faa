// Package testutil provides test utilities and helpers for dsvault tests.
//
// This package contains shared test infrastructure: a capturing logger and
// assertions for redaction and rendered files. Configuration builders live
// in the testconfig subpackage.
package testutil
