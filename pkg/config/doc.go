/*
Package config loads and validates the service configuration.

Configuration is a flat YAML document with dotted keys, overlaid on
documented defaults so an empty file (or none at all) yields a working
single-node service:

	port: 8080
	db.dir: .db
	notary.dir: notary-certificates
	cache.timeout: 2s
	paramUpdate.delay: 10s
	networkMap.delay: 1s
	username: admin
	password: admin

Durations are written as Go duration strings ("500ms", "24h"). Validation
rejects combinations the service cannot honor: an out-of-range port, TLS
without certificate paths, or any mongodb.connectionString other than the
literal "embed" (the embedded document store is the only supported
backend; the key survives for config compatibility).
*/
package config
