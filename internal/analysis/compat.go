package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// legacyKeys maps field names written by older service versions onto the current ones.
var legacyKeys = map[string]string{
	"most_possible_category": "mostPossibleCategory",
	"knowledge_items":        "knowledgeItems",
	"information_items":      "informationItems",
	"related_items":          "relatedItems",
	"post_type":              "postType",
	"start_time":             "startTime",
	"end_time":               "endTime",
	"core_tasks":             "coreTasks",
	"suggested_actions":      "suggestedActions",
	"targert_id":             "targetId",
	"target_id":              "targetId",
}

var errNotObject = errors.New("response is not a JSON object")

// translateLegacy rewrites a payload into the canonical key set. When both a
// legacy and a current key are present the current one wins.
func translateLegacy(data []byte) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty response")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	renameKeys(obj)

	if sched, ok := obj["schedule"].(map[string]any); ok {
		if n, ok := sched["id"].(json.Number); ok {
			sched["id"] = n.String()
		}
		if tasks, ok := sched["tasks"].([]any); ok {
			for _, raw := range tasks {
				task, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if n, ok := task["id"].(json.Number); ok {
					task["id"] = n.String()
				}
			}
		}
	}
	return json.Marshal(obj)
}

func renameKeys(v any) {
	switch node := v.(type) {
	case map[string]any:
		for old, current := range legacyKeys {
			val, ok := node[old]
			if !ok {
				continue
			}
			delete(node, old)
			if _, exists := node[current]; !exists {
				node[current] = val
			}
		}
		for _, child := range node {
			renameKeys(child)
		}
	case []any:
		for _, child := range node {
			renameKeys(child)
		}
	}
}
