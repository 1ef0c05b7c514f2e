package tools

// Schema helpers for building JSON Schema tool definitions.

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property with a description.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// IntegerProperty creates an integer property with a description.
func IntegerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
	}
}

// WithThought adds a thought parameter to an existing schema. If
// requireThought is true, "thought" joins the required list, which makes the
// model explain itself before persistent actions.
func WithThought(schema map[string]interface{}, requireThought bool) map[string]interface{} {
	result := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		result[k] = v
	}

	props, ok := result["properties"].(map[string]interface{})
	if !ok {
		props = make(map[string]interface{})
		result["properties"] = props
	}
	props["thought"] = StringProperty(
		"Your reasoning about why you're using this tool and what you expect to accomplish.",
	)

	if requireThought {
		required, _ := result["required"].([]string)
		result["required"] = append(required, "thought")
	}
	return result
}
