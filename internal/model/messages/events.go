package messages

// Kind is the socket event name a canonical sensor event is emitted under.
type Kind string

const (
	KindRadar          Kind = "radar-data"
	KindIMU            Kind = "imu-data"
	KindEnvironment    Kind = "env-data"
	KindPower          Kind = "power-data"
	KindGPS            Kind = "gps-data"
	KindActuatorStatus Kind = "actuator-status"
)

// Event is one canonical sensor reading, independent of the topic it came from.
type Event interface {
	Kind() Kind
}

// Radar holds the four ultrasonic distances in cm. 999 means no echo.
type Radar struct {
	Front float64 `json:"front"`
	Right float64 `json:"right"`
	Back  float64 `json:"back"`
	Left  float64 `json:"left"`
}

// IMU orientation in degrees.
type IMU struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

type Environment struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	Lux         float64 `json:"lux"`
}

// Power is the single-sensor power reading of rover/power.
type Power struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
	Power   float64 `json:"power"`
}

// SolarPower is the power block of the combined node payload.
// Voltages in V, currents in mA, watts derived with the mA->A conversion.
type SolarPower struct {
	SolarV float64 `json:"solarV"`
	LoadV  float64 `json:"loadV"`
	SolarI float64 `json:"solarI"`
	LoadI  float64 `json:"loadI"`
	SolarW float64 `json:"solarW"`
	LoadW  float64 `json:"loadW"`
}

type GPS struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Speed      float64 `json:"speed"`   // km/h
	Heading    float64 `json:"heading"` // degrees 0-360
	Active     any     `json:"active,omitempty"`
	SOS        any     `json:"sos,omitempty"`
	Satellites int     `json:"satellites"`
	Signal     int     `json:"signal"`
}

// ActuatorStatus is relayed as received, without reshaping.
type ActuatorStatus map[string]any

func (Radar) Kind() Kind          { return KindRadar }
func (IMU) Kind() Kind            { return KindIMU }
func (Environment) Kind() Kind    { return KindEnvironment }
func (Power) Kind() Kind          { return KindPower }
func (SolarPower) Kind() Kind     { return KindPower }
func (GPS) Kind() Kind            { return KindGPS }
func (ActuatorStatus) Kind() Kind { return KindActuatorStatus }
