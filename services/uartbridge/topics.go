package uartbridge

import "uartbridge-go/bus"

func topicConfig() bus.Topic { return bus.T("config", "uartbridge") }

// uartbridge/state
func topicBridgeState() bus.Topic { return bus.T("uartbridge", "state") }

// uartbridge/<port>/...
func portBase(port string) bus.Topic { return bus.T("uartbridge", port) }

func topicPortState(port string) bus.Topic { return portBase(port).Append("state") }
func topicRxEvent(port string) bus.Topic   { return portBase(port).Append("event", "rx") }

// uartbridge/<port>/ctl/<verb>
func TopicControl(port, verb string) bus.Topic { return portBase(port).Append("ctl", verb) }

// uartbridge/+/ctl/+
func ctlWildcard() bus.Topic { return bus.T("uartbridge", "+", "ctl", "+") }

// TopicPortState and TopicRxEvent are exported for consumers outside the
// service (console, MQTT mirror).
func TopicPortState(port string) bus.Topic { return topicPortState(port) }
func TopicRxEvent(port string) bus.Topic   { return topicRxEvent(port) }
func TopicBridgeState() bus.Topic          { return topicBridgeState() }
