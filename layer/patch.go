package layer

import "github.com/goliatone/go-history/clone"

// Patch is a shallow update for one layer. Nil fields are left untouched; a
// non-nil variant pointer replaces the whole variant.
type Patch struct {
	Name     *string  `json:"name,omitempty"`
	Visible  *bool    `json:"visible,omitempty"`
	Locked   *bool    `json:"locked,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	ZIndex   *int     `json:"z_index,omitempty"`

	Text  *TextProps  `json:"text,omitempty"`
	Image *ImageProps `json:"image,omitempty"`
	Shape *ShapeProps `json:"shape,omitempty"`
}

// Of returns a pointer to v, for building patches inline.
func Of[T any](v T) *T {
	return &v
}

// Move builds a patch that sets the position.
func Move(x, y float64) Patch {
	return Patch{X: &x, Y: &y}
}

// Resize builds a patch that sets the size.
func Resize(width, height float64) Patch {
	return Patch{Width: &width, Height: &height}
}

// Rotate builds a patch that sets the rotation in degrees.
func Rotate(degrees float64) Patch {
	return Patch{Rotation: &degrees}
}

// Empty reports whether the patch sets nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply returns a copy of l with the patch merged in. Variant pointers that do
// not match the layer kind are ignored.
func (p Patch) Apply(l Layer) Layer {
	out := l
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Visible != nil {
		out.Visible = *p.Visible
	}
	if p.Locked != nil {
		out.Locked = *p.Locked
	}
	if p.X != nil {
		out.X = *p.X
	}
	if p.Y != nil {
		out.Y = *p.Y
	}
	if p.Width != nil {
		out.Width = *p.Width
	}
	if p.Height != nil {
		out.Height = *p.Height
	}
	if p.Rotation != nil {
		out.Rotation = *p.Rotation
	}
	if p.ZIndex != nil {
		out.ZIndex = *p.ZIndex
	}
	switch {
	case p.Text != nil && l.Kind == KindText:
		out.Text = clone.Value(p.Text)
	case p.Image != nil && l.Kind == KindImage:
		out.Image = clone.Value(p.Image)
	case p.Shape != nil && l.Kind == KindShape:
		out.Shape = clone.Value(p.Shape)
	}
	return out
}
