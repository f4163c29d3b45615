// Package influxdb records litesql statement metrics and connection
// lifecycle events in InfluxDB 2.x, using influxdb-client-go v2.
//
// # Measurements
//
//	statements         tags: connection, kind, status   fields: duration_ms, rows
//	connection_events  tags: connection, event          fields: count
//
// Connections without a file name are tagged ":memory:".
//
// # Usage
//
//	rec, err := influxdb.Connect(cfg.InfluxDB, func(err error) {
//	    logger.Warn("influxdb write failed", "error", err)
//	})
//	if err != nil {
//	    return err
//	}
//	defer rec.Close()
//
//	rec.WriteStatementMetric("app.db", "execute", 0, 0, elapsed)
package influxdb
