package encode

import "github.com/fieldmux/fieldmux/pkg/message"

// GribEncoder is the external collaborator boundary for GRIB encoding
// (spec.md §1: the GRIB encoding library itself is out of scope; only the
// interface and the machinery driving it are). A real binding implements
// this against eccodes or similar; GribCodec below just drives it.
type GribEncoder interface {
	EncodeGrib(payload []byte, md message.Metadata) ([]byte, error)
}

// GribCodec adapts a GribEncoder to the Codec interface, retagging the
// result as TagGrib per spec.md §4.8.
type GribCodec struct {
	Encoder GribEncoder
}

func (c GribCodec) Encode(payload []byte, md message.Metadata) ([]byte, error) {
	return c.Encoder.EncodeGrib(payload, md)
}

func (c GribCodec) ResultTag() message.Tag { return message.TagGrib }
