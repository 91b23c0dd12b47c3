// Package logging builds the agent's process logger.
//
// The logger is a plain *slog.Logger over a JSON or text handler. Its level
// lives in a slog.LevelVar so a configuration reload can change it without
// rebuilding the handler. A ReplaceAttr hook redacts NT device paths and any
// configured patterns before records are written:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactDevicePaths: true})
//	logger.Slog().Info("rule sent", "path", `\Device\HarddiskVolume3\docs\a.txt`)
//	// {"level":"INFO","msg":"rule sent","path":"[device-path]"}
//
// Context fields (request id, operation id, administrator) are added by
// the handler when records are logged with a *Context method.
package logging
