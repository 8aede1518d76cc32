package message

import (
	"encoding/json"
	"fmt"

	"github.com/sanspareilsmyn/pumplens/internal/field"
)

// ParseFrame decodes one JSON frame and checks that every per-face list
// matches its surface's face count.
// It returns ErrJSONUnmarshalFailed (wrapping the original error) if unmarshalling fails.
func ParseFrame(data []byte) (*field.Frame, error) {
	var msg Frame

	err := json.Unmarshal(data, &msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	if msg.DeltaT < 0 {
		return nil, fmt.Errorf("%w: negative deltaT %v", ErrInvalidFrame, msg.DeltaT)
	}

	f := msg.ToField()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return f, nil
}

// EncodeFrame is the producer side of ParseFrame.
func EncodeFrame(f *field.Frame) ([]byte, error) {
	data, err := json.Marshal(FromField(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONMarshalFailed, err)
	}
	return data, nil
}
