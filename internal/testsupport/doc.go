// Package testsupport holds helpers shared by package tests: temp-dir backed
// configs, opened task stores, and small image fixtures.
package testsupport
