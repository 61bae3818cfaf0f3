// Package api exposes the task engine over HTTP. Handlers decode and validate
// JSON requests, take the acting user from the authenticated context, call
// the engine and map its error taxonomy onto status codes.
package api
