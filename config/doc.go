// Package config loads a replica set description from YAML and turns it
// into a ready vigil.HAClient.
//
// Example file:
//
//	replicaSet: mymaster
//	tolerance: prefer-writable
//	sentinels:
//	  - host: 10.0.0.1
//	    port: 26379
//	node:
//	  password: secret
//	  dialTimeout: 2s
//	backoff:
//	  kind: incremental
//	  initial: 100ms
//	  multiplier: 2
//	  maxAttempts: 5
//
// Usage:
//
//	f, err := config.Load("vigil.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := f.Build(vigil.WithLogger(logger))
package config
