// Package logging builds the process logger from configuration.
//
// Components take a *slog.Logger and tag it with their name:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//	loader := manager.NewPolicyLoader(cache, nil, logger)
package logging
