package transcribe

import (
	"io"

	"github.com/mgpai22/captionjob/internal/subtitle"
)

// sliceStream serves segments that were recognized in one request
type sliceStream struct {
	segments []subtitle.Segment
	pos      int
	closed   bool
}

// NewSliceStream wraps already recognized segments in a Stream.
func NewSliceStream(segments []subtitle.Segment) Stream {
	return &sliceStream{segments: segments}
}

func (s *sliceStream) Next() (subtitle.Segment, error) {
	if s.closed || s.pos >= len(s.segments) {
		return subtitle.Segment{}, io.EOF
	}
	seg := s.segments[s.pos]
	s.pos++
	return seg, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

// Drain reads a stream to the end. Segments read before an error are
// returned along with it.
func Drain(stream Stream) ([]subtitle.Segment, error) {
	var segments []subtitle.Segment
	for {
		seg, err := stream.Next()
		if err == io.EOF {
			return segments, nil
		}
		if err != nil {
			return segments, err
		}
		segments = append(segments, seg)
	}
}
