// Package config provides loading and environment overlay for broker
// process configuration. It exposes a Default() baseline, a JSON Load,
// and a BROKER_*-prefixed FromEnv overlay.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/broker.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
