// Package voidhttp implements an HTTP/1.x server framework built around a
// streaming, connection-affinitized request pipeline: an incremental parser,
// a per-connection finite state machine, an ordered reply writer, and a
// pluggable streaming handler contract.
package voidhttp
