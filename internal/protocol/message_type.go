package protocol

import "fmt"

// MessageType is the 1-byte tag at the start of every frame.
type MessageType byte

const (
	MessageUnknown     MessageType = 0x00
	MessageDiscovery   MessageType = 0x01
	MessageHello       MessageType = 0x02
	MessageSetupConfig MessageType = 0x03
	MessageSensorData  MessageType = 0x04
)

// MessageHeartbeat shares its tag with Hello on the wire.
const MessageHeartbeat = MessageHello

func (t MessageType) String() string {
	switch t {
	case MessageUnknown:
		return "unknown"
	case MessageDiscovery:
		return "discovery"
	case MessageHello:
		return "hello"
	case MessageSetupConfig:
		return "setup_config"
	case MessageSensorData:
		return "sensor_data"
	default:
		return fmt.Sprintf("type(0x%02x)", byte(t))
	}
}
