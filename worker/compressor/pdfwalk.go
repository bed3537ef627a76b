package compressor

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// objectResolver is the slice of *model.Context the walk needs.
type objectResolver interface {
	Dereference(o types.Object) (types.Object, error)
}

type imageXObject struct {
	objNr int
	sd    types.StreamDict
}

type nodeKind int

const (
	nodePageTree nodeKind = iota
	nodeResources
	nodeXObject
)

type walkItem struct {
	kind nodeKind
	obj  types.Object
}

// pageWalker visits the page tree, resource dictionaries and form XObjects
// with an explicit stack. Every indirect object is expanded at most once, so
// shared resources are reported once and reference cycles terminate.
type pageWalker struct {
	r       objectResolver
	visited map[int]bool
	stack   []walkItem
	images  []imageXObject
}

func collectImages(r objectResolver, root types.Object) ([]imageXObject, error) {
	w := &pageWalker{r: r, visited: make(map[int]bool)}

	catalog, _, ok, err := w.resolve(root)
	if err != nil {
		return nil, err
	}
	d, isDict := catalog.(types.Dict)
	if !ok || !isDict {
		return nil, fmt.Errorf("document catalog is not a dictionary")
	}
	pages, found := d.Find("Pages")
	if !found {
		return nil, fmt.Errorf("document catalog has no page tree")
	}
	w.push(nodePageTree, pages)

	for len(w.stack) > 0 {
		item := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		obj, objNr, ok, err := w.resolve(item.obj)
		if err != nil {
			return nil, err
		}
		if !ok || obj == nil {
			continue
		}

		switch item.kind {
		case nodePageTree:
			err = w.visitPageNode(obj)
		case nodeResources:
			err = w.visitResources(obj)
		case nodeXObject:
			w.visitXObject(obj, objNr)
		}
		if err != nil {
			return nil, err
		}
	}

	return w.images, nil
}

func (w *pageWalker) push(kind nodeKind, obj types.Object) {
	if obj != nil {
		w.stack = append(w.stack, walkItem{kind: kind, obj: obj})
	}
}

// resolve follows an indirect reference. ok is false when the object was
// already expanded.
func (w *pageWalker) resolve(o types.Object) (types.Object, int, bool, error) {
	ir, isRef := o.(types.IndirectRef)
	if !isRef {
		return o, 0, true, nil
	}
	nr := ir.ObjectNumber.Value()
	if w.visited[nr] {
		return nil, nr, false, nil
	}
	w.visited[nr] = true

	obj, err := w.r.Dereference(ir)
	if err != nil {
		return nil, nr, false, fmt.Errorf("failed to dereference object %d: %w", nr, err)
	}
	return obj, nr, true, nil
}

func (w *pageWalker) visitPageNode(obj types.Object) error {
	d, ok := obj.(types.Dict)
	if !ok {
		return nil
	}

	if res, found := d.Find("Resources"); found {
		w.push(nodeResources, res)
	}

	kids, found := d.Find("Kids")
	if !found {
		return nil
	}
	arr, err := w.r.Dereference(kids)
	if err != nil {
		return fmt.Errorf("failed to dereference page kids: %w", err)
	}
	if a, ok := arr.(types.Array); ok {
		for _, kid := range a {
			w.push(nodePageTree, kid)
		}
	}
	return nil
}

func (w *pageWalker) visitResources(obj types.Object) error {
	d, ok := obj.(types.Dict)
	if !ok {
		return nil
	}

	xo, found := d.Find("XObject")
	if !found {
		return nil
	}
	xobjects, err := w.r.Dereference(xo)
	if err != nil {
		return fmt.Errorf("failed to dereference xobject dictionary: %w", err)
	}
	if xd, ok := xobjects.(types.Dict); ok {
		for _, ref := range xd {
			w.push(nodeXObject, ref)
		}
	}
	return nil
}

func (w *pageWalker) visitXObject(obj types.Object, objNr int) {
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return
	}

	subtype := sd.Dict.NameEntry("Subtype")
	if subtype == nil {
		return
	}

	switch *subtype {
	case "Image":
		// streams are always indirect; a zero object number cannot be spliced
		if objNr > 0 {
			w.images = append(w.images, imageXObject{objNr: objNr, sd: sd})
		}
	case "Form":
		if res, found := sd.Dict.Find("Resources"); found {
			w.push(nodeResources, res)
		}
	}
}
