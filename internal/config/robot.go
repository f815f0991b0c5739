// Package config provides configuration for go-tablebot commands.
package config

import (
	"fmt"
	"os"
)

// Default gadget daemon configuration.
const (
	DefaultDaemonPort = "8000"
	DefaultGadgetIP   = "127.0.0.1"
)

// DefaultMotorDriver is the ev3dev driver of the large servo motors that
// drive the band and the dispensing arm.
const DefaultMotorDriver = "lego-ev3-l-motor"

// GadgetIP returns the gadget IP from GADGET_IP env var.
// Falls back to the provided default if not set.
func GadgetIP(defaultIP string) string {
	if ip := os.Getenv("GADGET_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

// DaemonURL returns the gadget daemon HTTP API URL.
func DaemonURL(gadgetIP string) string {
	return fmt.Sprintf("http://%s:%s", gadgetIP, DefaultDaemonPort)
}
