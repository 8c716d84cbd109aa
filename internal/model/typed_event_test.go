package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:     "0x1111111111111111111111111111111111111111",
		Amount0In:  "12345678901234567890",
		Amount1In:  "0",
		Amount0Out: "0",
		Amount1Out: "42",
		To:         "0x2222222222222222222222222222222222222222",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount0_in", "amount1_in", "amount0_out", "amount1_out"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestEventPositionAfter(t *testing.T) {
	base := EventPosition{BlockNumber: 100, LogIndex: 5}
	cases := []struct {
		pos  EventPosition
		want bool
	}{
		{EventPosition{BlockNumber: 100, LogIndex: 6}, true},
		{EventPosition{BlockNumber: 101, LogIndex: 0}, true},
		{EventPosition{BlockNumber: 100, LogIndex: 5}, false},
		{EventPosition{BlockNumber: 99, LogIndex: 9}, false},
	}
	for _, tc := range cases {
		if got := tc.pos.After(base); got != tc.want {
			t.Fatalf("%+v after %+v: got %v want %v", tc.pos, base, got, tc.want)
		}
	}
}
