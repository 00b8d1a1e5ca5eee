/*
Package log provides structured logging for the scaler using zerolog.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("cluster initialized")

	schedLog := log.WithComponent("scaler")
	schedLog.Info().Str("node_id", "node-1").Msg("launching node")

Context loggers (WithComponent, WithNodeID, WithClusterName, WithNodeType)
attach a field to every subsequent log line without repeating it at each
call site.

# Log Levels

Debug for verbose per-tick detail, Info for node lifecycle transitions,
Warn for recovered provider errors, Error for failed updates, Fatal only
for unrecoverable startup failures (exits the process).

Never log SSH private key material or provider credentials; provider
config maps are opaque and should be logged by key set, not by value.
*/
package log
