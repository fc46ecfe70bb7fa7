// Package logx configures chirpbot's structured logging.
//
// Loggers are cheap values. A Logger obtained from a Service follows every
// Service.Apply call, so components keep their logger across config reloads.
package logx
