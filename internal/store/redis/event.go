package redis

import "encoding/json"

// marshalEvent encodes an event for the PubSub channel. Stream entries keep
// the raw field map; the websocket side wants one JSON blob per message.
func marshalEvent(fields map[string]any) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PubSubChannelPattern matches every per-run event channel. The admin hub
// PSubscribes to it and fans messages out to websocket clients.
const PubSubChannelPattern = pubsubPrefix + "*"
