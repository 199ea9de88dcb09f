// Package api serves the task HTTP interface. Handlers decode and validate
// requests, call the task service and translate its errors into status codes
// and safe messages; raw error text only reaches the server log, redacted.
package api
