// Package logx is a thin structured-logging layer over zerolog.
//
// A Service owns the sinks (console, JSON file, operator alerts) and can be
// reconfigured at runtime with Apply; Loggers derived from it follow the change.
// Alert lines at or above the configured level are rate limited and posted
// through a transport.Client, so any subscriber provider can receive them.
package logx
