// Package testutil provides shared fixtures for emerge tests: sample
// envelope object types mirroring the canonical example objects, a type
// registry pre-loaded with them, and an in-process transport that binds a
// client directly to a dispatcher without a network hop.
package testutil
