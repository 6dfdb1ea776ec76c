// Package logging builds the slog loggers used by the relay daemon and CLI.
//
// New selects a console or JSON handler and routes output to stderr and an
// optional log file. The helpers in this package keep field names uniform:
// component loggers, request ids carried on the context, warnings that always
// state an impact, and routing decision attributes.
package logging
