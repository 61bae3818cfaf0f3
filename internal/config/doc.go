// Package config loads the service settings (HTTP server, database, token
// validation, assignment tunables and notifications) from an optional
// config.yaml and TASKFLOW_* environment variables, and validates them before
// anything is started.
package config
