// Package cli implements the webuictl command-line interface.
//
// Each Cobra command loads the config, builds a fleet.Manager and hands
// the work to it. Output goes to the command's writer so tests can capture
// it; progress and logs go to stderr.
//
// # Commands
//
//	webuictl list               - Print the server registry
//	webuictl status             - Probe every server's web UI
//	webuictl restart <server>   - Relaunch the web UI on one server
//	webuictl download <url>     - Fetch a model through the egress proxy
//	webuictl init               - Write a starter config
//	webuictl version            - Print build information
//	webuictl completion <shell> - Generate shell completions
//
// # Flags
//
// Global flags (--config, --verbose, --no-color) are defined on the root
// command. --verbose switches the zap logger to debug level, which logs
// every remote command with secrets redacted.
//
// status, restart and download are interactive on a terminal: status
// renders colored reports, restart asks for confirmation, and download
// shows a live view that ctrl+c detaches from. Piped output falls back to
// plain text.
package cli
