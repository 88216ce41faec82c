package server

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// JSONCodec carries BidQueue messages as JSON over gRPC. The service has no
// protobuf descriptors; clients select it with grpc.ForceCodec or the
// "json" content-subtype. Other services on the server keep protobuf.
type JSONCodec struct{}

func init() {
	encoding.RegisterCodec(JSONCodec{})
}

func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Name is the gRPC content-subtype: application/grpc+json.
func (JSONCodec) Name() string {
	return "json"
}
