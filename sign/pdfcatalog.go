package sign

import (
	"bytes"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/pobj"
)

// fetchExistingSignatures scans the source document's AcroForm for
// signature fields that already carry a value, so the new catalog's
// AcroForm/Fields array can list them alongside the signature being
// added by this update. Fields with no /V are unsigned placeholders
// and are not carried forward here.
func (context *SignContext) fetchExistingSignatures() ([]SignData, error) {
	root := context.PDFReader.Trailer().Key("Root")
	acroForm := root.Key("AcroForm")
	if acroForm.IsNull() {
		return nil, nil
	}

	fields := acroForm.Key("Fields")
	if fields.IsNull() || fields.Kind() != pdf.Array {
		return nil, nil
	}

	var existing []SignData
	for i := 0; i < fields.Len(); i++ {
		field := fields.Index(i)
		ft := field.Key("FT")
		if ft.IsNull() || ft.String() != "/Sig" {
			continue
		}
		if field.Key("V").IsNull() {
			continue
		}

		ptr := field.GetPtr()
		if ptr.GetID() == 0 {
			continue
		}
		existing = append(existing, SignData{ObjectId: uint32(ptr.GetID())})
	}

	return existing, nil
}

// createCatalog builds the updated document Catalog: the same /Pages
// and /Names references as the source Root, plus an /AcroForm whose
// /Fields array lists every pre-existing signature field alongside
// the one this update adds, with /SigFlags set per Table 225 for the
// signature's CertType.
func (context *SignContext) createCatalog() (string, error) {
	d := pobj.NewDictionary()
	d.Set("Type", pobj.Name("Catalog"))

	// (Optional; PDF 1.4) The version of the PDF specification to which
	// the document conforms (for example, 1.4) if later than the version
	// specified in the file's header (see 7.5.2, "File header"). If the
	// header specifies a later version, or if this entry is absent, the
	// document shall conform to the version specified in the header.
	//
	// If an incremental upgrade requires a version higher than the header:
	// d.Set("Version", pobj.Name("2.0"))

	root := context.PDFReader.Trailer().Key("Root")
	rootPtr := root.GetPtr()
	context.CatalogData.RootString = pobj.Reference{Num: uint32(rootPtr.GetID()), Gen: uint16(rootPtr.GetGen())}.String()

	foundPages, foundNames := false, false
	for _, key := range root.Keys() {
		switch key {
		case "Pages":
			foundPages = true
		case "Names":
			foundNames = true
		}
		if foundPages && foundNames {
			break
		}
	}

	if foundPages {
		pages := root.Key("Pages").GetPtr()
		d.Set("Pages", pobj.Reference{Num: uint32(pages.GetID()), Gen: uint16(pages.GetGen())})
	}
	if foundNames {
		names := root.Key("Names").GetPtr()
		d.Set("Names", pobj.Reference{Num: uint32(names.GetID()), Gen: uint16(names.GetGen())})
	}

	fields := make(pobj.Array, 0, len(context.ExistingSignatures)+1)
	for _, sig := range context.ExistingSignatures {
		fields = append(fields, pobj.Reference{Num: sig.ObjectId, Gen: 0})
	}
	fields = append(fields, pobj.Reference{Num: context.VisualSignData.ObjectId, Gen: 0})

	acroForm := pobj.NewDictionary()
	acroForm.Set("Fields", fields)
	acroForm.Set("NeedAppearances", pobj.Boolean(false))

	// Signature flags (Table 225)
	//
	// Bit position 1: SignaturesExist
	// If set, the document contains at least one signature field. This
	// flag allows an interactive PDF processor to enable user
	// interface items (such as menu items or push-buttons) related to
	// signature processing without having to scan the entire
	// document for the presence of signature fields.
	//
	// Bit position 2: AppendOnly
	// If set, the document contains signatures that may be invalidated
	// if the PDF file is saved (written) in a way that alters its previous
	// contents, as opposed to an incremental update. Merely updating
	// the PDF file by appending new information to the end of the
	// previous version is safe (see H.7, "Updating example").
	// Interactive PDF processors may use this flag to inform a user
	// requesting a full save that signatures will be invalidated and
	// require explicit confirmation before continuing with the
	// operation.
	switch context.SignData.Signature.CertType {
	case CertificationSignature, ApprovalSignature, TimeStampSignature:
		acroForm.Set("SigFlags", pobj.Integer(3))
	case UsageRightsSignature:
		acroForm.Set("SigFlags", pobj.Integer(1))
	}

	d.Set("AcroForm", acroForm)

	var buf bytes.Buffer
	ref := pobj.Reference{Num: context.CatalogData.ObjectId, Gen: 0}
	if err := pobj.NewWriter(&buf).WriteObject(ref, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
