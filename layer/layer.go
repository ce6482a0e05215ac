// Package layer models the multi-layer documents edited by the composer tools
// and provides the live Store, the Patch type used to edit layers, and the
// diff-based Classifier that labels history entries.
package layer

// Kind tags which variant a Layer carries.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindShape Kind = "shape"
)

// ShapeKind enumerates the supported primitive shapes.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeEllipse   ShapeKind = "ellipse"
	ShapeTriangle  ShapeKind = "triangle"
	ShapeLine      ShapeKind = "line"
)

// Layer is one visual element. Exactly one of Text, Image or Shape is set and
// it matches Kind.
type Layer struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Name     string  `json:"name"`
	Visible  bool    `json:"visible"`
	Locked   bool    `json:"locked"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"z_index"`

	Text  *TextProps  `json:"text,omitempty"`
	Image *ImageProps `json:"image,omitempty"`
	Shape *ShapeProps `json:"shape,omitempty"`
}

// TextProps holds the text variant fields.
type TextProps struct {
	Content    string    `json:"content"`
	FontFamily string    `json:"font_family"`
	FontSize   float64   `json:"font_size"`
	FontWeight int       `json:"font_weight"`
	Color      string    `json:"color"`
	Align      string    `json:"align,omitempty"`
	Stroke     *Stroke   `json:"stroke,omitempty"`
	Gradient   *Gradient `json:"gradient,omitempty"`
	Shadow     *Shadow   `json:"shadow,omitempty"`
}

// ImageProps holds the image variant fields.
type ImageProps struct {
	Src     string  `json:"src"`
	Opacity float64 `json:"opacity"`
	Fit     string  `json:"fit,omitempty"`
}

// ShapeProps holds the shape variant fields.
type ShapeProps struct {
	Shape        ShapeKind `json:"shape"`
	Fill         string    `json:"fill"`
	StrokeColor  string    `json:"stroke_color,omitempty"`
	StrokeWidth  float64   `json:"stroke_width,omitempty"`
	CornerRadius float64   `json:"corner_radius,omitempty"`
}

type Stroke struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type Gradient struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Angle float64 `json:"angle"`
}

type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Document is a full snapshot of the editable state: the ordered layers and
// the selected layer id. An empty SelectedID means nothing is selected.
type Document struct {
	Layers     []Layer `json:"layers"`
	SelectedID string  `json:"selected_id,omitempty"`
}

// Find returns the layer with id.
func (d Document) Find(id string) (Layer, bool) {
	for _, l := range d.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}

// Selected returns the selected layer, if any.
func (d Document) Selected() (Layer, bool) {
	if d.SelectedID == "" {
		return Layer{}, false
	}
	return d.Find(d.SelectedID)
}

func (d Document) indexOf(id string) int {
	for i, l := range d.Layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

func (d Document) maxZ() int {
	top := 0
	for i, l := range d.Layers {
		if i == 0 || l.ZIndex > top {
			top = l.ZIndex
		}
	}
	return top
}
