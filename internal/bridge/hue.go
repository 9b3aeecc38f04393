package bridge

import (
	"fmt"

	"github.com/amimof/huego"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

const (
	briFull uint8 = 254
	briHalf uint8 = 127
)

// Hue v1 error types used here.
const (
	errBadJSON      = 2
	errNotFound     = 3
	errNoMethod     = 4
	errBadParameter = 7
	errDeviceOff    = 201
	errInternal     = 901
)

type apiError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

type errorItem struct {
	Error apiError `json:"error"`
}

type successItem struct {
	Success map[string]any `json:"success"`
}

func hueError(typ int, address, format string, args ...any) []errorItem {
	return []errorItem{{Error: apiError{
		Type:        typ,
		Address:     address,
		Description: fmt.Sprintf(format, args...),
	}}}
}

// stateRequest is the body of PUT /lights/{id}/state. Absent fields stay nil.
type stateRequest struct {
	On  *bool  `json:"on"`
	Bri *uint8 `json:"bri"`
}

// requestedOn reports whether the fixture is on once req is applied.
func requestedOn(req stateRequest, current ansulta.LightState) bool {
	if req.On != nil {
		return *req.On
	}
	return current.IsOn()
}

// resolveState maps a Hue on/bri request onto the three fixture levels.
// Turning on with bri 0 or 1 means full brightness. A low brightness only
// dims an already lit fixture; from off the fixture always comes up at 100%.
func resolveState(req stateRequest, current ansulta.LightState, lastBri uint8) (ansulta.LightState, uint8) {
	if !requestedOn(req, current) {
		return ansulta.StateOff, lastBri
	}

	bri := lastBri
	if req.Bri != nil {
		bri = *req.Bri
	}
	if bri <= 1 {
		bri = briFull
	}

	if current.IsOn() && bri <= briHalf {
		return ansulta.StateDim50, bri
	}
	return ansulta.StateDim100, bri
}

// hueLight renders a table entry with the huego models.
func hueLight(id int, e entry) huego.Light {
	st := e.light.Status()

	bri := e.bri
	switch st.State {
	case ansulta.StateDim50:
		if bri > briHalf {
			bri = briHalf
		}
	case ansulta.StateDim100:
		if bri <= briHalf {
			bri = briFull
		}
	}

	return huego.Light{
		ID:               id,
		Name:             e.name,
		Type:             "Dimmable light",
		ModelID:          "LWB010",
		ManufacturerName: "IKEA",
		UniqueID:         e.uniqueID,
		SwVersion:        "1.0.0",
		State: &huego.State{
			On:        st.State.IsOn(),
			Bri:       bri,
			Alert:     "none",
			Reachable: st.Learned,
		},
	}
}
