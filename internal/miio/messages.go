package miio

import (
	"fmt"
	"time"
)

// miIO methods and values used for a power plug.
const (
	MethodGetProp  = "get_prop"
	MethodSetPower = "set_power"

	propPower = "power"
	powerOn   = "on"
	powerOff  = "off"
	resultOK  = "ok"
)

// Request is published to the gateway.
type Request struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Params    []any     `json:"params"`
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is published by the gateway.
type Response struct {
	ID     string         `json:"id"`
	Result []any          `json:"result,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError is a device-side failure as reported by the gateway.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// RequestTopic returns the topic requests for address are published on.
func RequestTopic(prefix, address string) string {
	return fmt.Sprintf("%s/%s/request", prefix, address)
}

// ResponseTopic returns the topic responses for address arrive on.
func ResponseTopic(prefix, address string) string {
	return fmt.Sprintf("%s/%s/response", prefix, address)
}

func powerValue(on bool) string {
	if on {
		return powerOn
	}
	return powerOff
}
