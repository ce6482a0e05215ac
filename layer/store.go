package layer

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/goliatone/go-history/clone"
	"github.com/google/uuid"
)

// DuplicateOffset is how far a duplicated layer is shifted on both axes.
const DuplicateOffset = 20

// Store holds the live document. Every operation replaces the layer slice
// instead of writing into it, so slices handed out earlier are never touched.
// Change listeners run after each effective change, outside the lock, with a
// detached copy of the document.
type Store struct {
	mu        sync.Mutex
	doc       Document
	newID     func() string
	named     map[Kind]int
	listeners map[int]func(Document)
	nextToken int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator overrides layer id generation (UUIDv7 by default). The
// generator must never return an id it returned before.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithChangeListener registers fn at construction time.
func WithChangeListener(fn func(Document)) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.listeners[s.nextToken] = fn
			s.nextToken++
		}
	}
}

// NewStore builds a Store holding a copy of initial.
func NewStore(initial Document, opts ...StoreOption) *Store {
	s := &Store{
		doc:       clone.Value(initial),
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
		named:     map[Kind]int{},
		listeners: map[int]func(Document){},
	}
	for _, l := range initial.Layers {
		s.named[l.Kind]++
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn func(Document)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	token := s.nextToken
	s.nextToken++
	s.listeners[token] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, token)
		s.mu.Unlock()
	}
}

// Document returns a detached copy of the live document.
func (s *Store) Document() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone.Value(s.doc)
}

// Layers returns a detached copy of the layers in array order.
func (s *Store) Layers() []Layer {
	return s.Document().Layers
}

// Layer returns a copy of the layer with id.
func (s *Store) Layer(id string) (Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.doc.Find(id)
	if !ok {
		return Layer{}, false
	}
	return clone.Value(l), true
}

// SelectedID returns the selected layer id, empty when nothing is selected.
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SelectedID
}

// PaintOrder returns the layers sorted bottom to top by ZIndex, ties broken
// by array order.
func (s *Store) PaintOrder() []Layer {
	layers := s.Layers()
	slices.SortStableFunc(layers, func(a, b Layer) int { return a.ZIndex - b.ZIndex })
	return layers
}

// AddOption adjusts a layer created by AddLayer beyond what a zero-valued
// partial can express.
type AddOption func(*addSpec)

type addSpec struct {
	hidden bool
	zIndex *int
}

// Hidden creates the layer invisible.
func Hidden() AddOption {
	return func(a *addSpec) { a.hidden = true }
}

// AtZIndex places the layer at z, including zero, instead of on top.
func AtZIndex(z int) AddOption {
	return func(a *addSpec) { a.zIndex = &z }
}

// AddLayer appends a new layer built from partial and selects it. The id is
// always freshly assigned and empty names, sizes and variant props get
// defaults. partial.Visible is ignored: layers start visible unless Hidden is
// given. A zero partial.ZIndex places the layer on top unless AtZIndex is
// given.
func (s *Store) AddLayer(partial Layer, opts ...AddOption) Layer {
	var spec addSpec
	for _, opt := range opts {
		if opt != nil {
			opt(&spec)
		}
	}

	s.mu.Lock()
	created := s.prepareLocked(partial)
	created.ID = s.newID()
	created.Visible = !spec.hidden
	switch {
	case spec.zIndex != nil:
		created.ZIndex = *spec.zIndex
	case created.ZIndex == 0:
		created.ZIndex = s.doc.maxZ() + 1
	}
	s.commitLocked(Document{
		Layers:     append(slices.Clone(s.doc.Layers), created),
		SelectedID: created.ID,
	})
	return clone.Value(created)
}

func (s *Store) prepareLocked(partial Layer) Layer {
	l := clone.Value(partial)
	if l.Kind == "" {
		switch {
		case l.Image != nil:
			l.Kind = KindImage
		case l.Shape != nil:
			l.Kind = KindShape
		default:
			l.Kind = KindText
		}
	}
	applyVariantDefaults(&l)
	if l.Name == "" {
		s.named[l.Kind]++
		l.Name = fmt.Sprintf("%s %d", kindTitle(l.Kind), s.named[l.Kind])
	}
	return l
}

// UpdateLayer merges patch into the layer with id. It reports false, without
// notifying listeners, when id is unknown or the patch changes nothing.
func (s *Store) UpdateLayer(id string, patch Patch) bool {
	s.mu.Lock()
	index := s.doc.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return false
	}
	updated := patch.Apply(s.doc.Layers[index])
	if reflect.DeepEqual(updated, s.doc.Layers[index]) {
		s.mu.Unlock()
		return false
	}
	layers := slices.Clone(s.doc.Layers)
	layers[index] = updated
	s.commitLocked(Document{Layers: layers, SelectedID: s.doc.SelectedID})
	return true
}

// RemoveLayer deletes the layer with id, clearing the selection if it pointed
// at that layer.
func (s *Store) RemoveLayer(id string) bool {
	s.mu.Lock()
	index := s.doc.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return false
	}
	selected := s.doc.SelectedID
	if selected == id {
		selected = ""
	}
	s.commitLocked(Document{
		Layers:     slices.Delete(slices.Clone(s.doc.Layers), index, index+1),
		SelectedID: selected,
	})
	return true
}

// ReorderLayers moves the layer at from to position to and renumbers every
// ZIndex so paint order follows array order.
func (s *Store) ReorderLayers(from, to int) bool {
	s.mu.Lock()
	n := len(s.doc.Layers)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		s.mu.Unlock()
		return false
	}
	layers := slices.Clone(s.doc.Layers)
	moved := layers[from]
	layers = slices.Delete(layers, from, from+1)
	layers = slices.Insert(layers, to, moved)
	for i := range layers {
		layers[i].ZIndex = i + 1
	}
	s.commitLocked(Document{Layers: layers, SelectedID: s.doc.SelectedID})
	return true
}

// DuplicateLayer inserts a copy of the layer with id right after it, offset by
// DuplicateOffset, on top of the paint order, and selects the copy.
func (s *Store) DuplicateLayer(id string) (Layer, bool) {
	s.mu.Lock()
	index := s.doc.indexOf(id)
	if index < 0 {
		s.mu.Unlock()
		return Layer{}, false
	}
	dup := clone.Value(s.doc.Layers[index])
	dup.ID = s.newID()
	dup.Name = dup.Name + " copy"
	dup.X += DuplicateOffset
	dup.Y += DuplicateOffset
	dup.ZIndex = s.doc.maxZ() + 1
	s.named[dup.Kind]++
	s.commitLocked(Document{
		Layers:     slices.Insert(slices.Clone(s.doc.Layers), index+1, dup),
		SelectedID: dup.ID,
	})
	return clone.Value(dup), true
}

// MoveLayerUp swaps the layer with the one painted directly above it.
func (s *Store) MoveLayerUp(id string) bool {
	return s.shift(id, 1)
}

// MoveLayerDown swaps the layer with the one painted directly below it.
func (s *Store) MoveLayerDown(id string) bool {
	return s.shift(id, -1)
}

func (s *Store) shift(id string, step int) bool {
	s.mu.Lock()
	if s.doc.indexOf(id) < 0 {
		s.mu.Unlock()
		return false
	}

	order := make([]int, len(s.doc.Layers))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return s.doc.Layers[a].ZIndex - s.doc.Layers[b].ZIndex
	})
	pos := slices.IndexFunc(order, func(i int) bool { return s.doc.Layers[i].ID == id })
	neighbor := pos + step
	if neighbor < 0 || neighbor >= len(order) {
		s.mu.Unlock()
		return false
	}

	layers := slices.Clone(s.doc.Layers)
	a, b := order[pos], order[neighbor]
	if layers[a].ZIndex != layers[b].ZIndex {
		layers[a].ZIndex, layers[b].ZIndex = layers[b].ZIndex, layers[a].ZIndex
	} else {
		order[pos], order[neighbor] = order[neighbor], order[pos]
		for rank, i := range order {
			layers[i].ZIndex = rank + 1
		}
	}
	s.commitLocked(Document{Layers: layers, SelectedID: s.doc.SelectedID})
	return true
}

// Select points the selection at id; an empty id clears it. Unknown ids and
// unchanged selections report false.
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	if id == s.doc.SelectedID || (id != "" && s.doc.indexOf(id) < 0) {
		s.mu.Unlock()
		return false
	}
	s.commitLocked(Document{Layers: s.doc.Layers, SelectedID: id})
	return true
}

// Restore replaces the whole document with a copy of doc. It is the write
// side of the history restore bridge.
func (s *Store) Restore(doc Document) {
	s.mu.Lock()
	s.commitLocked(clone.Value(doc))
}

// commitLocked installs next, releases the lock and notifies listeners.
func (s *Store) commitLocked(next Document) {
	s.doc = next
	snapshot := clone.Value(next)
	keys := make([]int, 0, len(s.listeners))
	for key := range s.listeners {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	listeners := make([]func(Document), 0, len(keys))
	for _, key := range keys {
		listeners = append(listeners, s.listeners[key])
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(clone.Value(snapshot))
	}
}

func applyVariantDefaults(l *Layer) {
	switch l.Kind {
	case KindText:
		l.Image, l.Shape = nil, nil
		if l.Text == nil {
			l.Text = &TextProps{}
		}
		if l.Text.Content == "" {
			l.Text.Content = "Text"
		}
		if l.Text.FontFamily == "" {
			l.Text.FontFamily = "Inter"
		}
		if l.Text.FontSize == 0 {
			l.Text.FontSize = 48
		}
		if l.Text.FontWeight == 0 {
			l.Text.FontWeight = 700
		}
		if l.Text.Color == "" {
			l.Text.Color = "#ffffff"
		}
		defaultSize(l, 300, 80)
	case KindImage:
		l.Text, l.Shape = nil, nil
		if l.Image == nil {
			l.Image = &ImageProps{}
		}
		if l.Image.Opacity == 0 {
			l.Image.Opacity = 1
		}
		if l.Image.Fit == "" {
			l.Image.Fit = "contain"
		}
		defaultSize(l, 200, 200)
	case KindShape:
		l.Text, l.Image = nil, nil
		if l.Shape == nil {
			l.Shape = &ShapeProps{}
		}
		if l.Shape.Shape == "" {
			l.Shape.Shape = ShapeRectangle
		}
		if l.Shape.Fill == "" {
			l.Shape.Fill = "#3b82f6"
		}
		defaultSize(l, 150, 150)
	}
}

func defaultSize(l *Layer, width, height float64) {
	if l.Width == 0 {
		l.Width = width
	}
	if l.Height == 0 {
		l.Height = height
	}
}

func kindTitle(k Kind) string {
	switch k {
	case KindText:
		return "Text"
	case KindImage:
		return "Image"
	case KindShape:
		return "Shape"
	default:
		return "Layer"
	}
}
