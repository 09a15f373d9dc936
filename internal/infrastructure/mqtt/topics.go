package mqtt

import "fmt"

// Topics provides builders for cloud broker topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// The broker uses a flat scheme scoped by product:
//
//	status/{productId}/{deviceName}     device connection status (inbound)
//	property/{productId}/{deviceName}   device property reports (inbound)
//	down/property/{productId}/{deviceId}  commands to a device (outbound)
type Topics struct{}

// DeviceStatus returns the topic carrying a device's connection status.
//
// Example: status/MUG01ABC/mug-kitchen
func (Topics) DeviceStatus(productID, deviceName string) string {
	return fmt.Sprintf("status/%s/%s", productID, deviceName)
}

// DeviceProperty returns the topic carrying a device's property reports.
//
// Example: property/MUG01ABC/mug-kitchen
func (Topics) DeviceProperty(productID, deviceName string) string {
	return fmt.Sprintf("property/%s/%s", productID, deviceName)
}

// DeviceCommand returns the outbound command topic for a device.
//
// Example: down/property/MUG01ABC/mug-42
func (Topics) DeviceCommand(productID, deviceID string) string {
	return fmt.Sprintf("down/property/%s/%s", productID, deviceID)
}

// AllDeviceStatus returns a pattern matching status for every device of a product.
//
// Pattern: status/{productId}/+
func (Topics) AllDeviceStatus(productID string) string {
	return fmt.Sprintf("status/%s/+", productID)
}

// AllDeviceProperty returns a pattern matching property reports for every
// device of a product.
//
// Pattern: property/{productId}/+
func (Topics) AllDeviceProperty(productID string) string {
	return fmt.Sprintf("property/%s/+", productID)
}
