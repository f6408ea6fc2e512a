package consolidate

import "encoding/json"

// mergeChunkPayloads concatenates the text chunks carried by payloads,
// in order, and returns a payload shaped like the first one with
// update.content.text replaced by the concatenation and
// update.sessionUpdate forced to kind. Malformed payloads in the input
// (not the first) contribute no text rather than failing the merge.
func mergeChunkPayloads(payloads [][]byte, kind string) ([]byte, error) {
	envelope, err := parseObject(payloads[0])
	if err != nil {
		return nil, err
	}
	firstUpdate, ok := envelopeUpdate(envelope)
	if !ok {
		firstUpdate = jsonObject{}
	}

	var text []byte
	for _, p := range payloads {
		env, err := parseObject(p)
		if err != nil {
			continue
		}
		update, ok := envelopeUpdate(env)
		if !ok {
			continue
		}
		if t, ok := textFromUpdate(update); ok {
			text = append(text, t...)
		}
	}

	merged := jsonObject{}
	for k, v := range firstUpdate {
		merged[k] = v
	}
	merged["sessionUpdate"] = marshalString(kind)
	merged["content"] = contentWithText(firstUpdate, string(text))

	if err := setEnvelopeUpdate(envelope, merged); err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// mergeToolCallFields applies the "non-null, non-missing wins" merge:
// starting from anchorUpdate, each subsequent update in order overrides
// any field whose value is present and non-null. sessionUpdate is
// always forced to "tool_call" on the result.
func mergeToolCallFields(anchorUpdate jsonObject, updates []jsonObject) jsonObject {
	merged := jsonObject{}
	for k, v := range anchorUpdate {
		merged[k] = v
	}
	for _, u := range updates {
		for k, v := range u {
			if isNullRaw(v) {
				continue
			}
			merged[k] = v
		}
	}
	merged["sessionUpdate"] = marshalString("tool_call")
	return merged
}

// mergeToolCallPayloads merges anchorPayload's update object with each
// updatePayload's update object in order, preserving the anchor's
// outer envelope (sessionId, _meta, ...).
func mergeToolCallPayloads(anchorPayload []byte, updatePayloads [][]byte) ([]byte, error) {
	envelope, err := parseObject(anchorPayload)
	if err != nil {
		return nil, err
	}
	anchorUpdate, ok := envelopeUpdate(envelope)
	if !ok {
		anchorUpdate = jsonObject{}
	}

	var updates []jsonObject
	for _, p := range updatePayloads {
		env, err := parseObject(p)
		if err != nil {
			continue
		}
		update, ok := envelopeUpdate(env)
		if !ok {
			continue
		}
		updates = append(updates, update)
	}

	merged := mergeToolCallFields(anchorUpdate, updates)
	if err := setEnvelopeUpdate(envelope, merged); err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// mergeTerminalOutputPayloads starts from the first payload, concatenates
// every truthy delta in order into output, sets truncated=true, and
// carries the last non-null exitStatus across all inputs (omitted if
// none is present anywhere). terminal_output payloads are flat
// (sessionId, terminalId, delta, truncated, output?, exitStatus?) —
// there is no "update" wrapper like chunk/tool_call payloads have.
func mergeTerminalOutputPayloads(payloads [][]byte) ([]byte, error) {
	merged, err := parseObject(payloads[0])
	if err != nil {
		return nil, err
	}

	var output []byte
	var exitStatus json.RawMessage
	for _, p := range payloads {
		env, err := parseObject(p)
		if err != nil {
			continue
		}
		if delta, ok := rawString(env["delta"]); ok && delta != "" {
			output = append(output, delta...)
		}
		if es, ok := env["exitStatus"]; ok && !isNullRaw(es) {
			exitStatus = es
		}
	}

	delete(merged, "delta")
	merged["truncated"] = json.RawMessage("true")
	merged["output"] = marshalString(string(output))
	if exitStatus != nil {
		merged["exitStatus"] = exitStatus
	} else {
		delete(merged, "exitStatus")
	}

	return json.Marshal(merged)
}
