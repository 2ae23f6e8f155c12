package model

import "github.com/LeonardoBeccarini/rover_relay/internal/model/messages"

// Aliases exposing the common types to the rover-side programs.

type (
	Radar      = messages.Radar
	IMU        = messages.IMU
	DriveOrder = messages.DriveOrder
)
