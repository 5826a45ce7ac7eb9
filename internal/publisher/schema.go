package publisher

// DefaultSchema is the fixed Avro record schema for SunspecTelemetry
// (spec.md §6).
const DefaultSchema = `{
	"type": "record",
	"name": "SunspecTelemetry",
	"namespace": "com.rusty.sunspec",
	"fields": [
		{"name": "device", "type": {
			"type": "record",
			"name": "Device",
			"fields": [
				{"name": "ip", "type": "string"},
				{"name": "unit_id", "type": "int"}
			]
		}},
		{"name": "model_id", "type": "int"},
		{"name": "model_name", "type": "string"},
		{"name": "start", "type": "int"},
		{"name": "registers", "type": {"type": "array", "items": "int"}},
		{"name": "collected_at_ms", "type": "long"}
	]
}`
