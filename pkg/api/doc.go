/*
Package api exposes the network map service over HTTP.

Two surfaces share one chi router. The protocol API under /network-map is
what participant nodes speak; the management API under /admin/api sits
behind basic auth and CORS for operator tooling.

# Protocol API

	GET  /network-map                          latest signed map (octet-stream,
	                                           Cache-Control: max-age=<cache.timeout>)
	POST /network-map/publish                  signed node info registration
	POST /network-map/ack-parameters           signed parameters-hash acknowledgement
	GET  /network-map/node-info/{hash}         stored signed node info by content address
	GET  /network-map/network-parameters/{hash} stored signed parameters by content address

Signed artifacts are served exactly as stored; the server never re-encodes
a signed payload, so the bytes a participant hashes are the bytes that
were signed. Publishes block until the processor has applied or rejected
the registration, so a 200 means the node will appear in the next map.

# Management API

	GET    /admin/api/network-parameters       current parameters, hash, pending update
	GET    /admin/api/notaries                 notary list with name hashes
	POST   /admin/api/notaries/validating      register notary from a signed node info
	POST   /admin/api/notaries/nonValidating   same, non-validating
	DELETE /admin/api/notaries/{nameHash}      remove notary
	GET    /admin/api/whitelist                whitelist as "fqn:hash" lines
	POST   /admin/api/whitelist                append entries
	PUT    /admin/api/whitelist                replace wholesale
	DELETE /admin/api/whitelist                clear
	GET    /admin/api/nodes                    registered node summaries
	DELETE /admin/api/nodes/{hash}             evict a node info

Every admin mutation goes through the processor queue like any other
parameter change, so admin traffic and the notary watcher can never
interleave half-applied updates.

# Error Mapping

	name conflict       → 409, message names the conflicting identities
	invalid signature   → 400
	malformed payload   → 400
	unknown hash        → 404
	anything else       → 500, detail logged not leaked

# See Also

  - pkg/processor - The mutation path behind every POST
  - pkg/metrics - HTTP series recorded by the middleware
*/
package api
