// Package mqtt provides MQTT client connectivity for the occupancy service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and subscription restore
//   - Publishing with QoS, including retained occupancy state
//   - Last Will and Testament (LWT) on the service status topic
//   - Topic builders and parsers for bridge state and occupancy topics
//   - The bridge StateMessage wire contract
//
// # Architecture
//
// Protocol bridges publish raw device state; this service turns sensor
// state into occupancy and publishes the result back on the bus.
//
//	Bridges → graylogic/state/+/+ → occupancy → graylogic/core/occupancy/{id}/state
//	Clients → graylogic/core/occupancy/{id}/command → occupancy
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeStates(), 1,
//	    func(topic string, payload []byte) error {
//	        msg, err := mqtt.DecodeStateMessage(payload)
//	        if err != nil {
//	            return err
//	        }
//	        return handle(msg)
//	    })
//
// TLS should be enabled outside development (cfg.Broker.TLS=true).
package mqtt
