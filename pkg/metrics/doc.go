/*
Package metrics exports the service's Prometheus instrumentation.

Two kinds of series exist. HTTP series are recorded inline by the API
middleware: request counts by method, route and status, and latency
histograms by route. Domain series are derived from broker events by the
Collector, which subscribes like any other consumer:

	map.rebuilt          → atlas_map_rebuilds_total, atlas_map_nodes,
	                       atlas_parameters_update_pending
	node.published       → atlas_node_publishes_total
	parameters.updated   → atlas_parameter_updates_total, atlas_parameters_epoch
	parameters.activated → atlas_parameter_activations_total

Publish rejections are counted by reason (malformed, signature-invalid,
name-conflict) at the API layer, where the rejection happens.

All collectors register in init; Handler returns the scrape endpoint.

# See Also

  - pkg/events - The event stream the Collector consumes
  - pkg/api - Serves /metrics and records the HTTP series
*/
package metrics
