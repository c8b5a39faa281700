package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Populate embeddedConfigs at build time (e.g. via code generation) or
// manually during development.
// Key: deployment ID
// Val: raw JSON bytes for that deployment
// -----------------------------------------------------------------------------

const cfgDefault = `{
  "areas": [
    {"area": 10, "name": "di-front-door",   "areaToWrite": 20, "readFromPanel": false, "writeToPanel": true},
    {"area": 11, "name": "di-back-door",    "readFromPanel": false, "writeToPanel": true},
    {"area": 20, "name": "do-porch-light",  "areaToWrite": 0, "readFromPanel": true},
    {"area": 30, "name": "ai-outdoor-temp", "writeToPanel": true}
  ],
  "devices": [
    {
      "name": "gateway-1-doors",
      "ip": "10.0.1.10",
      "unitId": 1,
      "priority": "normal",
      "errStrikes": 3,
      "errWindowMs": 1000,
      "channels": [
        {"type": "DI", "hw": "discrete", "startAddr": 0, "items": 2, "itemsPerCall": 1},
        {"type": "DO", "hw": "coil", "startAddr": 0, "items": 1, "itemsPerCall": 1}
      ],
      "ioAreas": [10, 11, 20]
    },
    {
      "name": "gateway-1-weather",
      "ip": "10.0.1.10",
      "unitId": 2,
      "priority": "low",
      "errStrikes": 5,
      "errWindowMs": 2000,
      "channels": [
        {"type": "AI", "hw": "input", "startAddr": 0, "items": 1, "itemsPerCall": 1}
      ],
      "ioAreas": [30]
    }
  ],
  "toggles": []
}`

var embeddedConfigs = map[string][]byte{
	"default": []byte(cfgDefault),
}
