// Package mqtt provides MQTT client connectivity for the MiPlug bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// The broker carries two kinds of traffic for the bridge:
//
//	Home automation  ↔  miplug/{command,ack,state,request,response}/outlet/...
//	miIO gateway     ↔  miplug/miio/{address}/{request,response}
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Command("outlet", "desk-lamp"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
package mqtt
