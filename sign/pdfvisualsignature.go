package sign

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/pobj"
)

// createVisualSignature builds the signature field's Widget annotation
// dictionary and returns it already framed as an indirect object,
// ready for addObject. When apObjID is non-zero it is set as the
// field's /AP /N entry, pointing at an appearance stream the caller
// has already written via createAppearance.
func (context *SignContext) createVisualSignature(visible bool, page uint32, rect [4]float64, apObjID uint32) ([]byte, error) {
	d := pobj.NewDictionary()
	d.Set("Type", pobj.Name("Annot"))
	d.Set("Subtype", pobj.Name("Widget"))
	d.Set("Rect", pobj.Array{pobj.Real(rect[0]), pobj.Real(rect[1]), pobj.Real(rect[2]), pobj.Real(rect[3])})

	root := context.PDFReader.Trailer().Key("Root")
	foundPages := false
	for _, key := range root.Keys() {
		if key == "Pages" {
			foundPages = true
			break
		}
	}
	if !foundPages {
		return nil, errors.New("didn't find pages in PDF trailer Root")
	}

	rootPtr := root.GetPtr()
	context.CatalogData.RootString = pobj.Reference{Num: uint32(rootPtr.GetID()), Gen: uint16(rootPtr.GetGen())}.String()

	kids := root.Key("Pages").Key("Kids")
	pageIndex := 0
	if page > 0 {
		pageIndex = int(page - 1)
	}
	pagePtr := kids.Index(pageIndex).GetPtr()
	context.VisualSignData.PageObjectId = uint32(pagePtr.GetID())
	d.Set("P", pobj.Reference{Num: uint32(pagePtr.GetID()), Gen: uint16(pagePtr.GetGen())})

	if context.VisualSignData.ObjectId == 0 {
		context.VisualSignData.ObjectId = context.reserveObjectID()
	}

	flags := 4
	if visible {
		flags = 0
	}
	d.Set("F", pobj.Integer(flags))
	d.Set("FT", pobj.Name("Sig"))
	d.Set("T", pdfStringValue("Signature"))
	d.Set("Ff", pobj.Integer(0))
	d.Set("V", pobj.Reference{Num: context.SignData.ObjectId, Gen: 0})

	if apObjID != 0 {
		ap := pobj.NewDictionary()
		ap.Set("N", pobj.Reference{Num: apObjID, Gen: 0})
		d.Set("AP", ap)
	}

	var buf bytes.Buffer
	vw := pobj.NewWriter(&buf)
	ref := pobj.Reference{Num: context.VisualSignData.ObjectId, Gen: 0}
	if err := vw.WriteObject(ref, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// createIncPageUpdate rewrites the target page's dictionary with
// annotObjID appended to its /Annots array, so the newly-added widget
// annotation is actually reachable from the page tree. It returns the
// page's object already framed for updateObject.
func (context *SignContext) createIncPageUpdate(page uint32, annotObjID uint32) ([]byte, error) {
	root := context.PDFReader.Trailer().Key("Root")
	kids := root.Key("Pages").Key("Kids")
	pageIndex := 0
	if page > 0 {
		pageIndex = int(page - 1)
	}
	pageVal := kids.Index(pageIndex)
	ptr := pageVal.GetPtr()
	if ptr.GetID() == 0 {
		return nil, errors.New("visual signature page is not an indirect object")
	}

	d := pobj.NewDictionary()
	for _, key := range pageVal.Keys() {
		if key == "Annots" {
			continue
		}
		child, err := convertParsedValue(pageVal.Key(key))
		if err != nil {
			return nil, fmt.Errorf("convert page key %s: %w", key, err)
		}
		d.Set(pobj.Name(key), child)
	}

	annots := pageVal.Key("Annots")
	arr := make(pobj.Array, 0, annots.Len()+1)
	if !annots.IsNull() && annots.Kind() == pdf.Array {
		for i := 0; i < annots.Len(); i++ {
			aptr := annots.Index(i).GetPtr()
			if aptr.GetID() != 0 {
				arr = append(arr, pobj.Reference{Num: uint32(aptr.GetID()), Gen: uint16(aptr.GetGen())})
			}
		}
	}
	arr = append(arr, pobj.Reference{Num: annotObjID, Gen: 0})
	d.Set("Annots", arr)

	var buf bytes.Buffer
	if err := pobj.NewWriter(&buf).WriteObject(pobj.Reference{Num: uint32(ptr.GetID()), Gen: 0}, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
