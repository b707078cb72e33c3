package remote

const decideSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "featureFlags": {
      "type": "object",
      "additionalProperties": {
        "type": ["boolean", "string"]
      }
    },
    "featureFlagPayloads": {
      "type": "object"
    },
    "errorsWhileComputingFlags": {
      "type": "boolean"
    },
    "quotaLimited": {
      "type": "array",
      "items": {
        "type": "string"
      }
    },
    "sessionRecording": {
      "oneOf": [
        {
          "type": "boolean"
        },
        {
          "type": "object",
          "properties": {
            "endpoint": {
              "type": "string"
            }
          }
        }
      ]
    }
  }
}`
