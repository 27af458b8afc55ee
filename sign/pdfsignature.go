package sign

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/digitorus/pdfsign/pobj"
	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// byteRangeArrayPlaceholder is the bracketed array value that stands
// in for the real /ByteRange numbers until updateByteRange overwrites
// it in place, once the object's absolute offset in the output is
// known. signatureByteRangePlaceholder is the same token as it
// actually appears once serialized by pobj.Writer, key and value
// together with the single separating space the dictionary writer
// always inserts.
const byteRangeArrayPlaceholder = "[0 ********** ********** **********]"
const signatureByteRangePlaceholder = "/ByteRange " + byteRangeArrayPlaceholder

// signaturePlaceholderDict builds the fields shared by a /Sig and a
// /DocTimeStamp dictionary: the placeholder /ByteRange and /Contents
// tokens, sized to hold the signature once it is computed, plus the
// signing time. Callers add whichever additional keys distinguish
// their own signature type before serializing.
func (context *SignContext) signaturePlaceholderDict() *pobj.Dictionary {
	d := pobj.NewDictionary()
	d.Set("Filter", pobj.Name("Adobe.PPKLite"))
	d.Set("ByteRange", pobj.Raw(byteRangeArrayPlaceholder))
	contents := make([]byte, 0, context.SignatureMaxLength+2)
	contents = append(contents, '<')
	contents = append(contents, bytes.Repeat([]byte("0"), int(context.SignatureMaxLength))...)
	contents = append(contents, '>')
	d.Set("Contents", pobj.Raw(contents))
	return d
}

// writeSignaturePlaceholderObject frames d as the indirect object
// identified by ref and locates the byte offsets of the /ByteRange
// and /Contents placeholders within the serialized text, so the
// caller can patch them once the object's absolute position in the
// output is known.
func writeSignaturePlaceholderObject(ref pobj.Reference, d *pobj.Dictionary) (text string, byteRangeStart int64, contentsStart int64, err error) {
	var buf bytes.Buffer
	if err := pobj.NewWriter(&buf).WriteObject(ref, d); err != nil {
		return "", 0, 0, err
	}
	object := buf.Bytes()

	byteRangeIdx := bytes.Index(object, []byte("/ByteRange"))
	if byteRangeIdx < 0 {
		return "", 0, 0, errors.New("signature placeholder is missing /ByteRange")
	}

	contentsKeyIdx := bytes.Index(object, []byte("/Contents"))
	if contentsKeyIdx < 0 {
		return "", 0, 0, errors.New("signature placeholder is missing /Contents")
	}
	ltIdx := bytes.IndexByte(object[contentsKeyIdx:], '<')
	if ltIdx < 0 {
		return "", 0, 0, errors.New("signature placeholder /Contents has no hex string")
	}

	return string(object), int64(byteRangeIdx), int64(contentsKeyIdx + ltIdx + 1), nil
}

func (context *SignContext) createSignaturePlaceholder() (dssd string, byte_range_start_byte int64, signature_contents_start_byte int64) {
	d := context.signaturePlaceholderDict()
	d.Set("Type", pobj.Name("Sig"))
	d.Set("SubFilter", pobj.Name("adbe.pkcs7.detached"))

	switch context.SignData.Signature.CertType {
	case CertificationSignature, UsageRightsSignature:
		sigRef := pobj.NewDictionary()
		sigRef.Set("Type", pobj.Name("SigRef"))

		transformParams := pobj.NewDictionary()
		transformParams.Set("Type", pobj.Name("TransformParams"))

		switch context.SignData.Signature.CertType {
		case CertificationSignature:
			sigRef.Set("TransformMethod", pobj.Name("DocMDP"))
			transformParams.Set("P", pobj.Integer(context.SignData.Signature.DocMDPPerm))
			transformParams.Set("V", pobj.Name("1.2"))
		case UsageRightsSignature:
			sigRef.Set("TransformMethod", pobj.Name("UR3"))
			transformParams.Set("V", pobj.Name("2.2"))
		}

		sigRef.Set("TransformParams", transformParams)
		d.Set("Reference", pobj.Array{sigRef})
	}

	if context.SignData.Signature.Info.Name != "" {
		d.Set("Name", pdfStringValue(context.SignData.Signature.Info.Name))
	}
	if context.SignData.Signature.Info.Location != "" {
		d.Set("Location", pdfStringValue(context.SignData.Signature.Info.Location))
	}
	if context.SignData.Signature.Info.Reason != "" {
		d.Set("Reason", pdfStringValue(context.SignData.Signature.Info.Reason))
	}
	if context.SignData.Signature.Info.ContactInfo != "" {
		d.Set("ContactInfo", pdfStringValue(context.SignData.Signature.Info.ContactInfo))
	}
	d.Set("M", pdfDateTimeValue(context.SignData.Signature.Info.Date))

	ref := pobj.Reference{Num: context.SignData.ObjectId, Gen: 0}
	text, byteRangeStart, contentsStart, err := writeSignaturePlaceholderObject(ref, d)
	if err != nil {
		return "", 0, 0
	}
	return text, byteRangeStart, contentsStart
}

// createTimestampPlaceholder builds a bare /DocTimeStamp signature
// dictionary the same way createSignaturePlaceholder builds a /Sig
// one, minus the fields that only apply to certification/usage-rights
// signatures. The returned byte offsets follow the same convention:
// positions within the returned text, for the caller to translate
// into absolute output-buffer offsets once the object's own position
// is known.
func (context *SignContext) createTimestampPlaceholder() (dssd string, byte_range_start_byte int64, signature_contents_start_byte int64) {
	d := context.signaturePlaceholderDict()
	d.Set("Type", pobj.Name("DocTimeStamp"))
	d.Set("SubFilter", pobj.Name("ETSI.RFC3161"))
	d.Set("M", pdfDateTimeValue(context.SignData.Signature.Info.Date))

	ref := pobj.Reference{Num: context.SignData.ObjectId, Gen: 0}
	text, byteRangeStart, contentsStart, err := writeSignaturePlaceholderObject(ref, d)
	if err != nil {
		return "", 0, 0
	}
	return text, byteRangeStart, contentsStart
}

func (context *SignContext) fetchRevocationData() error {
	if context.SignData.RevocationFunction != nil {
		if context.SignData.CertificateChains != nil && (len(context.SignData.CertificateChains) > 0) {
			certificate_chain := context.SignData.CertificateChains[0]
			if certificate_chain != nil && (len(certificate_chain) > 0) {
				for i, certificate := range certificate_chain {
					if i < len(certificate_chain)-1 {
						err := context.SignData.RevocationFunction(certificate, certificate_chain[i+1], &context.SignData.RevocationData)
						if err != nil {
							return err
						}
					} else {
						err := context.SignData.RevocationFunction(certificate, nil, &context.SignData.RevocationData)
						if err != nil {
							return err
						}
					}
				}
			}
		}
	}

	// Calculate space needed for signature.
	for _, crl := range context.SignData.RevocationData.CRL {
		context.SignatureMaxLength += uint32(hex.EncodedLen(len(crl.FullBytes)))
	}
	for _, ocsp := range context.SignData.RevocationData.OCSP {
		context.SignatureMaxLength += uint32(hex.EncodedLen(len(ocsp.FullBytes)))
	}

	return nil
}

func (context *SignContext) createSigningCertificateAttribute() (*pkcs7.Attribute, error) {
	hash := context.SignData.DigestAlgorithm.New()
	hash.Write(context.SignData.Certificate.Raw)

	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SigningCertificate
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // []ESSCertID, []ESSCertIDv2
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ESSCertID, ESSCertIDv2
				if context.SignData.DigestAlgorithm.HashFunc() != crypto.SHA1 &&
					context.SignData.DigestAlgorithm.HashFunc() != crypto.SHA256 { // default SHA-256
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // AlgorithmIdentifier
						b.AddASN1ObjectIdentifier(getOIDFromHashAlgorithm(context.SignData.DigestAlgorithm))
					})
				}
				b.AddASN1OctetString(hash.Sum(nil)) // certHash
			})
		})
	})

	sse, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	signingCertificate := pkcs7.Attribute{
		Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}, // SigningCertificateV2
		Value: asn1.RawValue{FullBytes: sse},
	}
	if context.SignData.DigestAlgorithm.HashFunc() == crypto.SHA1 {
		signingCertificate.Type = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 12} // SigningCertificate
	}
	return &signingCertificate, nil
}

func (context *SignContext) createSignature() ([]byte, error) {
	if _, err := context.OutputBuffer.Seek(0, 0); err != nil {
		return nil, err
	}

	// Sadly we can't efficiently sign a file, we need to read all the bytes we want to sign.
	file_content := context.OutputBuffer.Buff.Bytes()

	// Collect the parts to sign.
	sign_content := make([]byte, 0)
	sign_content = append(sign_content, file_content[context.ByteRangeValues[0]:(context.ByteRangeValues[0]+context.ByteRangeValues[1])]...)
	sign_content = append(sign_content, file_content[context.ByteRangeValues[2]:(context.ByteRangeValues[2]+context.ByteRangeValues[3])]...)

	// Initialize pkcs7 signer.
	signed_data, err := pkcs7.NewSignedData(sign_content)
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}

	signed_data.SetDigestAlgorithm(getOIDFromHashAlgorithm(context.SignData.DigestAlgorithm))
	signingCertificate, err := context.createSigningCertificateAttribute()
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}

	signer_config := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{
			{
				Type:  asn1.ObjectIdentifier{1, 2, 840, 113583, 1, 1, 8},
				Value: context.SignData.RevocationData,
			},
			*signingCertificate,
		},
	}

	// Add the first certificate chain without our own certificate.
	var certificate_chain []*x509.Certificate
	if len(context.SignData.CertificateChains) > 0 && len(context.SignData.CertificateChains[0]) > 1 {
		certificate_chain = context.SignData.CertificateChains[0][1:]
	}

	// Add the signer and sign the data.
	if err := signed_data.AddSignerChain(context.SignData.Certificate, context.SignData.Signer, certificate_chain, signer_config); err != nil {
		return nil, fmt.Errorf("add signer chain: %w", err)
	}

	// PDF needs a detached signature, meaning the content isn't included.
	signed_data.Detach()

	if context.SignData.TSA.URL != "" {
		signature_data := signed_data.GetSignedData()

		timestamp_response, err := context.GetTSA(signature_data.SignerInfos[0].EncryptedDigest)
		if err != nil {
			return nil, fmt.Errorf("get timestamp: %w", err)
		}

		ts, err := timestamp.ParseResponse(timestamp_response)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}

		_, err = pkcs7.Parse(ts.RawToken)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp token: %w", err)
		}

		timestamp_attribute := pkcs7.Attribute{
			Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14},
			Value: asn1.RawValue{FullBytes: ts.RawToken},
		}
		if err := signature_data.SignerInfos[0].SetUnauthenticatedAttributes([]pkcs7.Attribute{timestamp_attribute}); err != nil {
			return nil, err
		}
	}

	return signed_data.Finish()
}

func (context *SignContext) GetTSA(sign_content []byte) (timestamp_response []byte, err error) {
	sign_reader := bytes.NewReader(sign_content)
	ts_request, err := timestamp.CreateRequest(sign_reader, &timestamp.RequestOptions{
		Certificates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	ts_request_reader := bytes.NewReader(ts_request)
	req, err := http.NewRequest("POST", context.SignData.TSA.URL, ts_request_reader)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare request (%s): %w", context.SignData.TSA.URL, err)
	}

	req.Header.Add("Content-Type", "application/timestamp-query")
	req.Header.Add("Content-Transfer-Encoding", "binary")

	if context.SignData.TSA.Username != "" && context.SignData.TSA.Password != "" {
		req.SetBasicAuth(context.SignData.TSA.Username, context.SignData.TSA.Password)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	code := 0

	if resp != nil {
		code = resp.StatusCode
	}

	if err != nil || (code < 200 || code > 299) {
		if err == nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return nil, errors.New("non success response (" + strconv.Itoa(code) + "): " + string(body))
		}

		return nil, errors.New("non success response (" + strconv.Itoa(code) + ")")
	}

	defer resp.Body.Close()
	timestamp_response_body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return timestamp_response_body, nil
}

func (context *SignContext) replaceSignature() error {
	signature, err := context.createSignature()
	if err != nil {
		return fmt.Errorf("failed to create signature: %w", err)
	}

	dst := make([]byte, hex.EncodedLen(len(signature)))
	hex.Encode(dst, signature)

	if uint32(len(dst)) > context.SignatureMaxLength {
		// set new base and try signing again
		context.SignatureMaxLengthBase += (uint32(len(dst)) - context.SignatureMaxLength) + 1
		context.retryCount++
		return context.SignPDF()
	}

	if _, err := context.OutputBuffer.Seek(0, 0); err != nil {
		return err
	}
	file_content := context.OutputBuffer.Buff.Bytes()

	if _, err := context.OutputBuffer.Write(file_content[:(context.ByteRangeValues[0] + context.ByteRangeValues[1] + 1)]); err != nil {
		return err
	}

	// Write new ByteRange.
	if _, err := context.OutputBuffer.Write([]byte(dst)); err != nil {
		return err
	}

	if _, err := context.OutputBuffer.Write(file_content[(context.ByteRangeValues[0]+context.ByteRangeValues[1]+1)+int64(len(dst)):]); err != nil {
		return err
	}

	return nil
}
