package rulesetfile

const rulesetSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["rules"],
  "properties": {
    "version": {"type": "string"},
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "priority", "applies_to", "condition", "action", "severity"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          },
          "priority": {"type": "integer", "minimum": 0},
          "applies_to": {
            "type": "object",
            "properties": {
              "categories": {"type": "array", "items": {"type": "string"}},
              "countries": {"type": "array", "items": {"type": "string"}}
            }
          },
          "condition": {
            "type": "object",
            "required": ["kind"],
            "properties": {
              "kind": {"enum": ["exists", "equals", "in", "not_in", "gt", "risk_tag", "battery", "liquid", "magnet", "small_parts"]},
              "attribute": {"type": "string"},
              "value": {"type": "string"},
              "values": {"type": "array", "items": {"type": "string"}},
              "threshold": {"type": "number"},
              "risk_tag": {"type": "string"}
            }
          },
          "action": {
            "type": "object",
            "required": ["kind"],
            "properties": {
              "kind": {"enum": ["require_certification", "restrict_shipping", "add_warning", "require_document"]},
              "certification": {"type": "string"},
              "document": {"type": "string"},
              "message": {"type": "string"},
              "allowed_methods": {"type": "array", "items": {"type": "string"}},
              "blocked_methods": {"type": "array", "items": {"type": "string"}}
            }
          },
          "severity": {"enum": ["error", "warning", "info"]}
        }
      }
    }
  }
}`
