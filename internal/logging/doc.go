// Package logging provides file-based logging with rotation for insightd.
// Every insightd command writes JSON logs to {data_dir}/logs/insightd.log
// (~/.insightd/logs/ with the default data directory), mirrored to stderr.
// The --debug flag lowers the level from info to debug; it does not turn
// file logging on or off.
package logging
