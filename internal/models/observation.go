package models

// Observation is one raw advertisement as handed over by the radio
// driver, one per visible beacon per ranging tick. Identifier fields are
// raw byte sequences whose interpretation depends on the frame type.
type Observation struct {
	Address        string  `json:"address"`
	Rssi           int     `json:"rssi"`
	Manufacturer   int     `json:"manufacturer"`
	TxPower        int     `json:"tx_power"`
	Distance       float64 `json:"distance"`
	ServiceUUID    int     `json:"service_uuid"`
	BeaconTypeCode int     `json:"beacon_type_code"`

	ID1 []byte `json:"id1,omitempty"`
	ID2 []byte `json:"id2,omitempty"`
	ID3 []byte `json:"id3,omitempty"`

	// ExtraDataFields carries the Eddystone TLM values in positional
	// order: version, battery mV, temperature (8.8 fixed point), PDU
	// count, uptime. Empty when the frame had no telemetry attached.
	ExtraDataFields []int64 `json:"extra_data_fields,omitempty"`
}
