package publisher

// SampleDevice mirrors DeviceIdentity for the Avro wire schema.
type SampleDevice struct {
	IP     string `avro:"ip"`
	UnitID int    `avro:"unit_id"`
}

// Sample mirrors PollSample (spec.md §3) for Avro encoding: a flat,
// schema-matching shape. Poller actors build this type directly and send
// it on the sample channel; there is no separate in-process sample type.
type Sample struct {
	Device        SampleDevice `avro:"device"`
	ModelID       int          `avro:"model_id"`
	ModelName     string       `avro:"model_name"`
	Start         int          `avro:"start"`
	Registers     []int        `avro:"registers"`
	CollectedAtMs int64        `avro:"collected_at_ms"`
}
