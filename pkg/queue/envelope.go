package queue

import "encoding/json"

func envelopeToJSON(env JobEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

func envelopeFromJSON(data []byte) (JobEnvelope, error) {
	var env JobEnvelope
	err := json.Unmarshal(data, &env)
	return env, err
}
