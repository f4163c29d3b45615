// Package mqtt carries litesql connection events to an MQTT broker.
//
// A Publisher keeps a retained presence document on
// "<prefix>/<client_id>/status": online after every connect, offline with
// reason "shutdown" on Close, and offline with reason "connection_lost"
// through the Last Will when the session drops. Lifecycle events of each
// database connection go to "<prefix>/<client_id>/connections/<name>/events".
//
//	pub, err := mqtt.Connect(cfg.MQTT, logger)
//	if err != nil {
//	    return err
//	}
//	defer pub.Close()
//
//	err = pub.PublishConnectionEvent("app.db", payload)
package mqtt
