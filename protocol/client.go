package protocol

import (
	"fmt"
	"math"
)

// Intent is one decoded client message. The variants below are the only
// implementations.
type Intent interface {
	intent()
}

// Join enters the arena under a display name. Empty names are allowed.
type Join struct {
	Name string
}

// Move steers every cell along a direction vector.
type Move struct {
	DX, DY float64
}

// Target steers every cell toward an absolute field position.
type Target struct {
	X, Y float64
}

// Split halves every eligible cell.
type Split struct{}

// Score is a client-reported score. The server never applies it.
type Score struct {
	Score int
}

func (Join) intent() {}
func (Move) intent() {}
func (Target) intent() {}
func (Split) intent() {}
func (Score) intent() {}

type intentFields struct {
	Name  *string  `json:"name,omitempty"`
	DX    *float64 `json:"dx,omitempty"`
	DY    *float64 `json:"dy,omitempty"`
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Score *int     `json:"score,omitempty"`
}

// inbound accepts both flat frames ({"type":"join","name":"a"}) and frames
// that nest the fields under "data" like the outbound ones do.
type inbound struct {
	Type         string `json:"type"`
	intentFields `json:",inline"`
	Data         *intentFields `json:"data,omitempty"`
}

// DecodeIntent parses one frame. Errors wrap ErrMalformed or ErrUnknownType.
func DecodeIntent(c Codec, b []byte) (Intent, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	var in inbound
	if err := c.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	f := in.intentFields
	if in.Data != nil {
		f = *in.Data
	}

	switch in.Type {
	case TypeJoin:
		var j Join
		if f.Name != nil {
			j.Name = *f.Name
		}
		return j, nil
	case TypeMove:
		switch {
		case f.DX != nil && f.DY != nil:
			if !finite(*f.DX, *f.DY) {
				return nil, fmt.Errorf("%w: non-finite direction", ErrMalformed)
			}
			return Move{DX: *f.DX, DY: *f.DY}, nil
		case f.X != nil && f.Y != nil:
			if !finite(*f.X, *f.Y) {
				return nil, fmt.Errorf("%w: non-finite target", ErrMalformed)
			}
			return Target{X: *f.X, Y: *f.Y}, nil
		default:
			return nil, fmt.Errorf("%w: %s needs dx,dy or x,y", ErrMalformed, TypeMove)
		}
	case TypeSplit:
		return Split{}, nil
	case TypeScore:
		var s Score
		if f.Score != nil {
			s.Score = *f.Score
		}
		return s, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
