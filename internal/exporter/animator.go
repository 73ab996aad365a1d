package exporter

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/Alia5/syncbackend/exporttypes"
	"github.com/Alia5/syncbackend/internal/scenegraph"
)

// animatorRuntime is the live animator state a host reports in the
// settings of a networkAnimator component.
type animatorRuntime struct {
	ClientAuthority bool `json:"clientAuthority"`
	Animator        struct {
		Layers []struct {
			Current      animatorState  `json:"current"`
			Next         *animatorState `json:"next,omitempty"`
			InTransition bool           `json:"inTransition"`
			Weight       float32        `json:"weight"`
		} `json:"layers"`
		Parameters []struct {
			Name              string `json:"name"`
			Type              string `json:"type"`
			Value             any    `json:"value"`
			ControlledByCurve bool   `json:"controlledByCurve"`
		} `json:"parameters"`
	} `json:"animator"`
}

type animatorState struct {
	FullPathHash   int32   `json:"fullPathHash"`
	NormalizedTime float32 `json:"normalizedTime"`
}

// Awake writes the animator fragment of a replicated object that carries a
// network animator.
func (e *Exporter) Awake(o *scenegraph.Object) {
	if _, ok := e.walker.ReplicationComponent(o); !ok {
		return
	}
	var anim *scenegraph.Component
	for _, c := range o.Components {
		if c.Kind == scenegraph.KindNetworkAnimator {
			anim = c
			break
		}
	}
	if anim == nil {
		return
	}

	setting := e.animatorSetting(anim)
	assetID := e.assetID(o)
	if err := e.fragments.Write(animatorFile(assetID), setting); err != nil {
		e.logger.Error("Cannot write animator fragment", "object", o.Name, "error", err)
		return
	}
	e.logger.Debug("Captured animator", "object", o.Name, "assetId", assetID,
		"layers", len(setting.Animator.Layers), "parameters", len(setting.Animator.Parameters))
}

// Start captures the same snapshot as Awake.
func (e *Exporter) Start(o *scenegraph.Object) {
	e.Awake(o)
}

func (e *Exporter) animatorSetting(c *scenegraph.Component) exporttypes.NetworkAnimatorSetting {
	var rt animatorRuntime
	e.decode(c, &rt)

	out := exporttypes.NetworkAnimatorSetting{
		ClientAuthority: rt.ClientAuthority,
		AnimatorSpeed:   float32From(e.walker.ReadInitialFieldValue(c, "animatorSpeed")),
		PreviousSpeed:   float32From(e.walker.ReadInitialFieldValue(c, "previousSpeed")),
		Animator: exporttypes.NetworkAnimatorData{
			Layers:     []exporttypes.NetworkAnimatorStateSetting{},
			Parameters: []exporttypes.NetworkAnimatorParameterSetting{},
		},
	}

	for _, l := range rt.Animator.Layers {
		st := l.Current
		if l.InTransition && l.Next != nil {
			st = *l.Next
		}
		out.Animator.Layers = append(out.Animator.Layers, exporttypes.NetworkAnimatorStateSetting{
			FullPathHash:   st.FullPathHash,
			NormalizedTime: st.NormalizedTime,
			LayerWeight:    l.Weight,
		})
	}

	for _, p := range rt.Animator.Parameters {
		if p.ControlledByCurve {
			continue
		}
		ps := exporttypes.NetworkAnimatorParameterSetting{Index: len(out.Animator.Parameters)}
		var err error
		switch strings.ToLower(p.Type) {
		case "int":
			ps.Type = exporttypes.AnimatorInt
			ps.Value, err = encodeParameter("int", p.Value)
		case "float":
			ps.Type = exporttypes.AnimatorFloat
			ps.Value, err = encodeParameter("float", p.Value)
		case "bool":
			ps.Type = exporttypes.AnimatorBool
			ps.Value, err = encodeParameter("bool", p.Value)
		case "trigger":
			ps.Type = exporttypes.AnimatorTrigger
		default:
			e.logger.Warn("Unknown animator parameter type", "component", c.Type, "parameter", p.Name, "type", p.Type)
		}
		if err != nil {
			e.logger.Warn("Invalid animator parameter", "component", c.Type, "parameter", p.Name, "error", err)
		}
		out.Animator.Parameters = append(out.Animator.Parameters, ps)
	}
	return out
}

// encodeParameter writes parameter values in host byte order; bools take one
// byte.
func encodeParameter(typ string, v any) (exporttypes.ByteList, error) {
	if v == nil {
		v = zeroParameter[typ]
	}
	data, err := scenegraph.EncodeValue(typ, v)
	if err != nil {
		return exporttypes.ByteList{}, err
	}
	return exporttypes.ByteList(data), nil
}

var zeroParameter = map[string]any{"int": 0, "float": 0.0, "bool": false}

func float32From(b []byte) float32 {
	if len(b) < 4 {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
