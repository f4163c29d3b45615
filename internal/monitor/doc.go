// Package monitor forwards database connection diagnostics to the
// process's telemetry sinks.
//
// A Monitor is installed on a Connection with database.WithObserver. It
// turns lifecycle events into JSON payloads for an EventPublisher (the
// MQTT client) and records events and statement metrics through a
// MetricWriter (the InfluxDB client). Either sink may be nil.
//
//	mon := monitor.New(mqttClient, influxClient)
//	mon.SetLogger(log)
//	conn := database.Open(ctx, "app.db", database.WithObserver(mon))
package monitor
