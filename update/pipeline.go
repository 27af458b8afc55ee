package update

import "github.com/digitorus/pdfsign/pobj"

// SecurityManager encrypts stream payloads for a document under
// incremental update. It is an external collaborator: the document's
// encryption dictionary, key derivation and per-filter policy live
// outside this package. DecodeParms is the stream's own /DecodeParms
// entry, or nil to use the document-wide crypt filter default.
type SecurityManager interface {
	Encrypt(ref pobj.Reference, decodeParms *pobj.Dictionary, data []byte) ([]byte, error)
}

// ChangedStream is a newly-written or modified stream object pending
// emission. AlreadyCompressed marks payloads the caller has already
// deflated (or that must not be re-compressed, e.g. JPEG image data),
// so the pipeline only applies its own deflate pass when it declared
// a Filter and the caller has not already done the work.
type ChangedStream struct {
	Ref               pobj.Reference
	Dict              *pobj.Dictionary
	Data              []byte
	AlreadyCompressed bool
}

// ProcessStream runs the stream pipeline in the invariant order
// compress, then encrypt (§4.7), never the reverse. It mutates cs.Dict
// in place (Length, FormType) and returns the final bytes to be
// framed by pobj.Writer.WriteObject.
func ProcessStream(cs *ChangedStream, sm SecurityManager) ([]byte, error) {
	data := cs.Data

	if !cs.AlreadyCompressed && cs.Dict.Has("Filter") {
		compressed, err := deflate(data)
		if err != nil {
			return nil, &CompressionError{Ref: cs.Ref, Err: err}
		}
		data = compressed
	}

	if sm != nil {
		var decodeParms *pobj.Dictionary
		if v, ok := cs.Dict.Get("DecodeParms"); ok {
			decodeParms, _ = v.(*pobj.Dictionary)
		}
		ciphertext, err := sm.Encrypt(cs.Ref, decodeParms, data)
		if err != nil {
			return nil, &EncryptionError{Ref: cs.Ref, Err: err}
		}
		data = ciphertext
	}

	cs.Dict.Set("Length", pobj.Integer(len(data)))
	cs.Dict.Set("FormType", pobj.Integer(1))
	return data, nil
}
