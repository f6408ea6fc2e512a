// Package consolidate implements the two consolidation modes over the
// WAL event stream: destructive (writer path, rewrites payloads in
// place and stubs the rest) and read-side (reader path, a pure
// filter-and-merge over an already-loaded event slice). Both share the
// same field-merge and text-concatenation rules so a reader sees the
// same rendered text whether or not the writer has consolidated yet.
package consolidate

import "encoding/json"

type jsonObject = map[string]json.RawMessage

func parseObject(payload []byte) (jsonObject, error) {
	var m jsonObject
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func isNullRaw(v json.RawMessage) bool {
	return v == nil || string(v) == "null"
}

func rawString(v json.RawMessage) (string, bool) {
	if isNullRaw(v) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func marshalString(s string) json.RawMessage {
	raw, _ := json.Marshal(s)
	return raw
}

// envelopeUpdate extracts the "update" object from an outer envelope,
// returning (nil, false) if it is absent, null, or not an object.
func envelopeUpdate(envelope jsonObject) (jsonObject, bool) {
	raw, ok := envelope["update"]
	if !ok || isNullRaw(raw) {
		return nil, false
	}
	var update jsonObject
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, false
	}
	return update, true
}

func setEnvelopeUpdate(envelope jsonObject, update jsonObject) error {
	raw, err := json.Marshal(update)
	if err != nil {
		return err
	}
	envelope["update"] = raw
	return nil
}

// textFromUpdate returns update.content.text when content.type=="text"
// and the text is a non-empty ("truthy") string. Anything else,
// including malformed shapes, contributes no text.
func textFromUpdate(update jsonObject) (string, bool) {
	raw, ok := update["content"]
	if !ok || isNullRaw(raw) {
		return "", false
	}
	var content jsonObject
	if err := json.Unmarshal(raw, &content); err != nil {
		return "", false
	}
	typ, ok := rawString(content["type"])
	if !ok || typ != "text" {
		return "", false
	}
	text, ok := rawString(content["text"])
	return text, ok && text != ""
}

func contentWithText(update jsonObject, text string) json.RawMessage {
	content := jsonObject{}
	if raw, ok := update["content"]; ok && !isNullRaw(raw) {
		var c jsonObject
		if err := json.Unmarshal(raw, &c); err == nil {
			content = c
		}
	}
	content["type"] = marshalString("text")
	content["text"] = marshalString(text)
	raw, _ := json.Marshal(content)
	return raw
}

func isTerminalStatus(status string) bool {
	return status == "completed" || status == "failed"
}
