// Package health reports whether cached parameters are being served fresh.
//
// A Checker reports one component. NewGroupChecker and NewParameterChecker
// read the outcome of the last refresh without fetching anything;
// NewStoreChecker probes the remote store directly. An Aggregator runs a set
// of checkers and folds their results into one Status, and the HTTP handlers
// expose it for probes:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewGroupChecker("app", group))
//	agg.Register(health.NewStoreChecker("ssm", s, "/app/health"))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//
// Degraded answers 200 on /readyz: missing keys are reported, but the values
// that do exist are still served.
package health
