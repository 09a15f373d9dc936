// Package mqtt provides the cloud broker client for the device core.
//
// This package manages:
//   - Connection to the MQTT-compatible cloud broker with auto-reconnect
//   - Dynamic authentication via short-lived credentials
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support and restore-on-reconnect
//
// # Credential handling
//
// The broker accepts only short-lived credentials issued by the credential
// authority. Rather than baking a secret into the client options, Connect
// takes a CredentialsFunc which paho invokes on every connect attempt —
// initial and reconnect alike. The credential provider backing that func
// serializes refreshes, so a reconnect either reuses a still-valid
// credential or waits for the single in-flight refresh to finish. An
// expired secret is never presented to the broker.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, clientID, func() (string, string) {
//	    cred, err := provider.Token(context.Background())
//	    if err != nil {
//	        return "", ""
//	    }
//	    return cred.TmpSecretID, cred.Token
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.Subscribe(topics.AllDeviceStatus(productID), 1, handler)
//	client.Publish(topics.DeviceCommand(productID, deviceID), payload, 1, false)
package mqtt
