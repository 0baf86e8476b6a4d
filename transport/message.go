package transport

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	TopicDetections = "detections"
	TopicPreview    = "image/compressed"

	FormatJPEG = "jpeg"
)

type Header struct {
	Stamp   time.Time `msgpack:"stamp"`
	FrameID string    `msgpack:"frame_id"`
}

// CompressedImage is the payload of the preview topic.
type CompressedImage struct {
	Header Header `msgpack:"header"`
	Format string `msgpack:"format"`
	Data   []byte `msgpack:"data"`
}

func (m CompressedImage) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal compressed image")
	}
	return b, nil
}

func UnmarshalCompressedImage(b []byte) (CompressedImage, error) {
	var m CompressedImage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return m, errors.Wrap(err, "unmarshal compressed image")
	}
	return m, nil
}
