// Package config provides configuration loading for the engine.
//
// A Config wraps a map[string]any with type-safe accessors. Maps can come
// from YAML or JSON files, environment-specific overlays, or be built in
// code. Accessors never fail: a missing or mistyped key yields the
// caller-supplied default.
//
// Recognized engine keys (see stategraph.OptionsFromConfig and
// retry.PolicyFromConfig):
//
//	max_iterations       int      global iteration ceiling
//	node_timeout         duration per-dispatch timeout
//	last_write_wins      bool     opt-in merge tie-break
//	retry_attempts       int      attempts per wrapped call
//	retry_backoff        duration initial backoff
//	retry_backoff_factor float    1.0 = fixed delay
//	retry_max_backoff    duration backoff cap
package config
