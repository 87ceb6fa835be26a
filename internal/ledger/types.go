package ledger

// OwnerTransaction is one entry in a device's ownership stream.
//
// TimestampOwnerSince is the effective time of the handover in unix
// seconds. It may differ from the insertion time: backdated entries are
// permitted so paper records can be transcribed after the fact.
type OwnerTransaction struct {
	Seq                 int64  `json:"seq"`
	DeviceID            string `json:"device_id"`
	RZUsername          string `json:"rz_username"`
	TimestampOwnerSince int64  `json:"timestamp_owner_since"`
}

// LocationTransaction is one entry in a device's location stream.
type LocationTransaction struct {
	Seq                   int64  `json:"seq"`
	DeviceID              string `json:"device_id"`
	RoomCode              string `json:"room_code"`
	TimestampLocatedSince int64  `json:"timestamp_located_since"`
}
