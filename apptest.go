// Package apptest is a golden-output acceptance harness for command-line
// programs. The commands live under cmd/ and the implementation under
// internal/.
package apptest

// Version is the release version reported by the CLI and the MCP server.
const Version = "0.1.0"
