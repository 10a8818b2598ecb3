// Package api handles incoming HTTP requests, request validation and
// response formatting for practice executions and statistics. It translates
// HTTP concerns into calls on the execution service and maps service errors
// to status codes without leaking internal details.
package api
