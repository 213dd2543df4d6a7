// Package logger builds the service's *slog.Logger and provides attribute
// helpers so records across packages use the same keys.
//
// Context extractors copy request-scoped values, such as the request id or
// the subscriber id, into every record logged with a *Context method.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "planguard"),
//	    logger.WithConfig(logCfg),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "entitlement denied",
//	    logger.SubscriberID(id),
//	    logger.PlanSlug(plan.Slug),
//	    logger.Feature(entitlement.FeatureWorkspaces),
//	)
//
// Components that accept an optional logger default to Discard.
package logger
