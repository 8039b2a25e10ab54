package scenes

// Kinds of the data objects.
const (
	KindDataNode  = "SceneDataNode"
	KindDataLayer = "SceneDataLayer"
)

// Field is one column of a data frame.
type Field struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// DataFrame is a named set of fields.
type DataFrame struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// DataRequest describes the request that produced a PanelData.
type DataRequest struct {
	Interval   string    `json:"interval"`
	IntervalMs int64     `json:"intervalMs"`
	Range      TimeRange `json:"range"`
	Targets    []string  `json:"targets,omitempty"`
}

// PanelData is the payload exposed by data providers.
type PanelData struct {
	State   LoadingState
	Series  []DataFrame
	Request *DataRequest
	Errors  []error
}

// DataProviderLike is the contract of objects placed in a $data slot.
type DataProviderLike interface {
	SceneObject
	Data() PanelData
}

// SceneDataNode holds static or externally produced data.
type SceneDataNode struct {
	*Object
}

// NewSceneDataNode creates a data provider holding data.
func NewSceneDataNode(data PanelData, opts ...ObjectOption) *SceneDataNode {
	n := &SceneDataNode{}
	n.Object = Init(n, KindDataNode, State{"data": data}, append([]ObjectOption{WithCapabilities(CapData)}, opts...)...)
	return n
}

// Data implements DataProviderLike.
func (n *SceneDataNode) Data() PanelData {
	d, _ := n.Get("data").(PanelData)
	return d
}

// SetData replaces the payload.
func (n *SceneDataNode) SetData(data PanelData) {
	n.SetState(State{"data": data})
}

// SceneDataLayer is a data provider contributing annotations or overlays.
type SceneDataLayer struct {
	*Object
}

// NewSceneDataLayer creates an enabled layer named name.
func NewSceneDataLayer(name string, data PanelData, opts ...ObjectOption) *SceneDataLayer {
	l := &SceneDataLayer{}
	state := State{"name": name, "data": data, "isEnabled": true}
	l.Object = Init(l, KindDataLayer, state, append([]ObjectOption{WithCapabilities(CapData, CapDataLayer)}, opts...)...)
	return l
}

// Name returns the layer name.
func (l *SceneDataLayer) Name() string {
	s, _ := l.Get("name").(string)
	return s
}

// Data implements DataProviderLike.
func (l *SceneDataLayer) Data() PanelData {
	d, _ := l.Get("data").(PanelData)
	return d
}

// Enabled reports whether the layer contributes data.
func (l *SceneDataLayer) Enabled() bool {
	enabled, _ := l.Get("isEnabled").(bool)
	return enabled
}

// BuildDataRequest derives a request for obj from its closest time range.
// maxDataPoints <= 0 uses the configured auto step count.
func BuildDataRequest(obj SceneObject, maxDataPoints int, targets ...string) (DataRequest, error) {
	tr, err := GetTimeRange(obj)
	if err != nil {
		return DataRequest{}, err
	}
	d := currentDefaults()
	if maxDataPoints <= 0 {
		maxDataPoints = d.autoStepCount
	}
	value := tr.Value()
	interval := CalculateInterval(value, maxDataPoints, d.autoMinInterval)
	return DataRequest{
		Interval:   interval.Interval,
		IntervalMs: interval.IntervalMs,
		Range:      value,
		Targets:    targets,
	}, nil
}
