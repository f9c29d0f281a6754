package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"thunderfit/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Bulk payloads are written as zstd framed JSON. Payloads without the zstd
// magic prefix are decoded as uncompressed JSON.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var encoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("create zstd encoder: %v", err))
		}
		return encoder
	},
}

var decoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("create zstd decoder: %v", err))
		}
		return decoder
	},
}

// Stamp sets the current schema and codec versions on a run.
func Stamp(run model.Run) model.Run {
	run.SchemaVersion = CurrentSchemaVersion
	run.CodecVersion = CurrentCodecVersion
	return run
}

func EncodeRun(run model.Run) ([]byte, error) {
	return json.Marshal(run)
}

func DecodeRun(data []byte) (model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return model.Run{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func EncodeResults(results []model.RecordResult) ([]byte, error) {
	return encodeCompressed(results)
}

func DecodeResults(data []byte) ([]model.RecordResult, error) {
	var results []model.RecordResult
	if err := decodeCompressed(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func EncodeCurves(curves model.Curves) ([]byte, error) {
	return encodeCompressed(curves)
}

func DecodeCurves(data []byte) (model.Curves, error) {
	var curves model.Curves
	if err := decodeCompressed(data, &curves); err != nil {
		return model.Curves{}, err
	}
	return curves, nil
}

func EncodeTrajectory(trajectory model.Trajectory) ([]byte, error) {
	return encodeCompressed(trajectory)
}

func DecodeTrajectory(data []byte) (model.Trajectory, error) {
	var trajectory model.Trajectory
	if err := decodeCompressed(data, &trajectory); err != nil {
		return model.Trajectory{}, err
	}
	if len(trajectory.Data) != trajectory.Rows*trajectory.Cols {
		return model.Trajectory{}, fmt.Errorf("trajectory has %d values for %dx%d", len(trajectory.Data), trajectory.Rows, trajectory.Cols)
	}
	return trajectory, nil
}

func encodeCompressed(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	encoder := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(encoder)
	return encoder.EncodeAll(raw, nil), nil
}

func decodeCompressed(data []byte, v any) error {
	raw := data
	if bytes.HasPrefix(data, zstdMagic) {
		decoder := decoderPool.Get().(*zstd.Decoder)
		defer decoderPool.Put(decoder)

		var err error
		raw, err = decoder.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("zstd decompress: %w", err)
		}
	}
	return json.Unmarshal(raw, v)
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
