// Package logx configures sleepbot's structured logging.
//
// A small wrapper (logx.Logger) sits on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional chat sink (min-level + rate limiting) that forwards
//     warnings to an operator log chat through the transport adapter
package logx
