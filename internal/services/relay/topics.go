package relay

// Bus topics read by the relay.
const (
	TopicNode1Data      = "rover/node1/data"
	TopicNode2Data      = "rover/node2/data"
	TopicNode3Data      = "rover/node3/data"
	TopicAnyNodeData    = "rover/+/data"
	TopicUltrasonic     = "rover/ultrasonic"
	TopicIMU            = "rover/imu"
	TopicEnv            = "rover/env"
	TopicPower          = "rover/power"
	TopicActuatorStatus = "rover/actuator/status"
	TopicLegacySensor   = "rover/sensor"
	TopicGPS            = "rover/gps"
	TopicNode2GPS       = "rover/node2/gps"
	TopicAnyNodeGPS     = "rover/+/gps"
)

// Bus topics written by the relay.
const (
	TopicDrive   = "rover/node2/drive"
	TopicPanTilt = "rover/node2/pantilt"
	TopicDevice  = "rover/node2/device"
)

// GPSTopics are owned by the secondary broker when one is configured.
func GPSTopics() []string {
	return []string{TopicGPS, TopicAnyNodeGPS}
}

// MainTopics is the subscription set of the main broker. GPS topics are only
// included when no dedicated GPS broker exists, so the two sets never overlap.
func MainTopics(gpsBrokerConfigured bool) []string {
	topics := []string{
		TopicNode1Data,
		TopicAnyNodeData,
		TopicUltrasonic,
		TopicIMU,
		TopicEnv,
		TopicPower,
		TopicActuatorStatus,
		TopicLegacySensor,
	}
	if !gpsBrokerConfigured {
		topics = append(topics, GPSTopics()...)
	}
	return topics
}
