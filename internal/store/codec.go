package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// wireRecord is the on-disk shape of a Record. Field keys are fixed
// small integers (not names) so the format is forward-compatible:
// a future field gets the next integer and old readers skip it,
// matching the capability-schema codec spec.md §4.3 describes.
type wireRecord struct {
	ReceivedUnixSeconds int64  `cbor:"1,keyasint"`
	CorrelationKey      string `cbor:"2,keyasint"`
	EventType           string `cbor:"3,keyasint"`
	Data                []byte `cbor:"4,keyasint"`
}

// encodeBatch serializes a batch of records in received order.
func encodeBatch(records []Record) ([]byte, error) {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = wireRecord{
			ReceivedUnixSeconds: r.Received.Unix(),
			CorrelationKey:      r.CorrelationKey,
			EventType:           r.EventType,
			Data:                r.Data,
		}
	}
	out, err := cbor.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("store: encode batch: %w", err)
	}
	return out, nil
}

// decodeBatch is the inverse of encodeBatch. A nil or empty input
// decodes to an empty batch, matching the "absent key -> empty list"
// contract.
func decodeBatch(data []byte) ([]Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wire []wireRecord
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("store: decode batch: %w", err)
	}
	records := make([]Record, len(wire))
	for i, w := range wire {
		records[i] = Record{
			Received:       time.Unix(w.ReceivedUnixSeconds, 0).UTC(),
			CorrelationKey: w.CorrelationKey,
			EventType:      w.EventType,
			Data:           w.Data,
		}
	}
	return records, nil
}
