package sign

import (
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/update"
	"github.com/digitorus/pkcs7"

	"github.com/mattetti/filebuffer"
)

func SignFile(input string, output string, sign_data SignData) error {
	input_file, err := os.Open(input)
	if err != nil {
		return err
	}
	defer func() {
		_ = input_file.Close()
	}()

	output_file, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		_ = output_file.Close()
	}()

	finfo, err := input_file.Stat()
	if err != nil {
		return err
	}
	size := finfo.Size()

	rdr, err := pdf.NewReader(input_file, size)
	if err != nil {
		return err
	}

	return Sign(input_file, output_file, rdr, size, sign_data)
}

func Sign(input io.ReadSeeker, output io.Writer, rdr *pdf.Reader, size int64, sign_data SignData) error {
	sign_data.ObjectId = uint32(rdr.XrefInformation.ItemCount) + 2

	context := SignContext{
		PDFReader:              rdr,
		InputFile:              input,
		OutputFile:             output,
		SignData:               sign_data,
		SignatureMaxLengthBase: uint32(hex.EncodedLen(512)),
		objectIDBase:           sign_data.ObjectId + 1,
	}

	// Fetch existing signatures
	existingSignatures, err := context.fetchExistingSignatures()
	if err != nil {
		return err
	}
	context.ExistingSignatures = existingSignatures

	err = context.SignPDF()
	if err != nil {
		return err
	}

	return nil
}

func (context *SignContext) SignPDF() error {
	// set defaults
	if context.SignData.Signature.CertType == 0 {
		context.SignData.Signature.CertType = 1
	}
	if context.SignData.Signature.DocMDPPerm == 0 {
		context.SignData.Signature.DocMDPPerm = 1
	}
	if !context.SignData.DigestAlgorithm.Available() {
		context.SignData.DigestAlgorithm = crypto.SHA256
	}
	if context.SignData.Appearance.Page == 0 {
		context.SignData.Appearance.Page = 1
	}

	// Reset state that accumulates during signing (important for retry)
	context.entryTable = update.NewEntryTable()
	context.nextObjectID = context.objectIDBase
	context.ByteRangeValues = nil
	context.ByteRangeStartByte = 0
	context.SignatureContentsStartByte = 0
	context.NewXrefStart = 0
	context.CatalogData = CatalogData{}
	context.VisualSignData = VisualSignData{}
	context.InfoData = InfoData{}

	context.OutputBuffer = filebuffer.New([]byte{})

	// Copy old file into new buffer.
	_, err := context.InputFile.Seek(0, 0)
	if err != nil {
		return err
	}
	if _, err := io.Copy(context.OutputBuffer, context.InputFile); err != nil {
		return err
	}

	// File always needs an empty line after %%EOF.
	if _, err := context.OutputBuffer.Write([]byte("\n")); err != nil {
		return err
	}

	// Base size for signature.
	context.SignatureMaxLength = context.SignatureMaxLengthBase

	// If not a timestamp signature
	if context.SignData.Signature.CertType != TimeStampSignature {
		if context.SignData.Certificate == nil {
			return fmt.Errorf("certificate is required")
		}

		if context.SignData.Signer != nil {
			if err := ValidateSignerCertificateMatch(context.SignData.Signer, context.SignData.Certificate); err != nil {
				return fmt.Errorf("signer/certificate validation failed: %w", err)
			}
		}

		var sigSize int
		if context.SignData.SignatureSizeOverride > 0 {
			sigSize = int(context.SignData.SignatureSizeOverride)
		} else {
			var err error
			sigSize, err = PublicKeySignatureSize(context.SignData.Certificate.PublicKey)
			if err != nil {
				sigSize = DefaultSignatureSize
			}
		}
		context.SignatureMaxLength += uint32(hex.EncodedLen(sigSize))

		// Add size of digest algorithm twice (for file digist and signing certificate attribute)
		context.SignatureMaxLength += uint32(hex.EncodedLen(context.SignData.DigestAlgorithm.Size() * 2))

		// Add size for my certificate.
		degenerated, err := pkcs7.DegenerateCertificate(context.SignData.Certificate.Raw)
		if err != nil {
			return fmt.Errorf("failed to degenerate certificate: %w", err)
		}

		context.SignatureMaxLength += uint32(hex.EncodedLen(len(degenerated)))

		// Add size of the raw issuer which is added by AddSignerChain
		context.SignatureMaxLength += uint32(hex.EncodedLen(len(context.SignData.Certificate.RawIssuer)))

		// Add size for certificate chain.
		var certificate_chain []*x509.Certificate
		if len(context.SignData.CertificateChains) > 0 && len(context.SignData.CertificateChains[0]) > 1 {
			certificate_chain = context.SignData.CertificateChains[0][1:]
		}

		if len(certificate_chain) > 0 {
			for _, cert := range certificate_chain {
				degenerated, err := pkcs7.DegenerateCertificate(cert.Raw)
				if err != nil {
					return fmt.Errorf("failed to degenerate certificate in chain: %w", err)
				}

				context.SignatureMaxLength += uint32(hex.EncodedLen(len(degenerated)))
			}
		}

		// Fetch revocation data before adding signature placeholder.
		// Revocation data can be quite large and we need to create enough space in the placeholder.
		if err := context.fetchRevocationData(); err != nil {
			return fmt.Errorf("failed to fetch revocation data: %w", err)
		}
	}

	// Add estimated size for TSA.
	// We can't kow actual size of TSA until after signing.
	//
	// Different TSA servers provide different response sizes, we
	// might need to make this configurable or detect and store.
	if context.SignData.TSA.URL != "" {
		context.SignatureMaxLength += uint32(hex.EncodedLen(9000))
	}

	// Create the signature object
	var placeholder string
	var byteRangeStart, contentsStart int64

	switch context.SignData.Signature.CertType {
	case TimeStampSignature:
		placeholder, byteRangeStart, contentsStart = context.createTimestampPlaceholder()
	default:
		placeholder, byteRangeStart, contentsStart = context.createSignaturePlaceholder()
	}

	// The returned offsets are relative to the placeholder text itself;
	// translate them into absolute output-buffer offsets now that we
	// know where in the buffer this object starts.
	objectStart := int64(context.OutputBuffer.Buff.Len())
	context.ByteRangeStartByte = objectStart + byteRangeStart
	context.SignatureContentsStartByte = objectStart + contentsStart

	// Write the new signature object
	if _, err := context.addObject(context.SignData.ObjectId, []byte(placeholder)); err != nil {
		return fmt.Errorf("failed to add signature object: %w", err)
	}

	// Create visual signature (visible or invisible based on CertType)
	visible := false
	rectangle := [4]float64{0, 0, 0, 0}
	if context.SignData.Signature.CertType != ApprovalSignature && context.SignData.Appearance.Visible {
		return fmt.Errorf("visible signatures are only allowed for approval signatures")
	} else if context.SignData.Signature.CertType == ApprovalSignature && context.SignData.Appearance.Visible {
		visible = true
		rectangle = [4]float64{
			context.SignData.Appearance.LowerLeftX,
			context.SignData.Appearance.LowerLeftY,
			context.SignData.Appearance.UpperRightX,
			context.SignData.Appearance.UpperRightY,
		}
	}

	// When the field is visible, build its appearance stream first so
	// its object ID can be linked into the Widget's /AP entry.
	var apObjID uint32
	if visible {
		var appearanceObj []byte
		apObjID, appearanceObj, err = context.createAppearance(rectangle)
		if err != nil {
			return fmt.Errorf("failed to create appearance: %w", err)
		}
		if _, err := context.addObject(apObjID, appearanceObj); err != nil {
			return fmt.Errorf("failed to add appearance object: %w", err)
		}
	}

	// Example usage: passing page number and default rect values
	visual_signature, err := context.createVisualSignature(visible, context.SignData.Appearance.Page, rectangle, apObjID)
	if err != nil {
		return fmt.Errorf("failed to create visual signature: %w", err)
	}

	// Write the new visual signature object.
	if _, err := context.addObject(context.VisualSignData.ObjectId, visual_signature); err != nil {
		return fmt.Errorf("failed to add visual signature object: %w", err)
	}

	if context.SignData.Appearance.Visible {
		inc_page_update, err := context.createIncPageUpdate(context.SignData.Appearance.Page, context.VisualSignData.ObjectId)
		if err != nil {
			return fmt.Errorf("failed to create incremental page update: %w", err)
		}
		err = context.updateObject(context.VisualSignData.PageObjectId, inc_page_update)
		if err != nil {
			return fmt.Errorf("failed to add incremental page update object: %w", err)
		}
	}

	if err := context.fillInitialsFields(); err != nil {
		return fmt.Errorf("failed to fill initials fields: %w", err)
	}

	if context.SignData.PreSignCallback != nil {
		if err := context.SignData.PreSignCallback(context); err != nil {
			return fmt.Errorf("pre-sign callback failed: %w", err)
		}
	}

	// Create an updated Info object carrying the signature's ModDate.
	context.InfoData.ObjectId = context.reserveObjectID()
	info, err := context.createInfo()
	if err != nil {
		return fmt.Errorf("failed to create info: %w", err)
	}
	if _, err := context.addObject(context.InfoData.ObjectId, []byte(info)); err != nil {
		return fmt.Errorf("failed to add info object: %w", err)
	}

	// Create a new catalog object
	context.CatalogData.ObjectId = context.reserveObjectID()
	catalog, err := context.createCatalog()
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}

	// Write the new catalog object
	if _, err := context.addObject(context.CatalogData.ObjectId, []byte(catalog)); err != nil {
		return fmt.Errorf("failed to add catalog object: %w", err)
	}

	// Write pending object updates supplied by the caller.
	for objID, body := range context.SignData.Updates {
		if err := context.updateObject(objID, body); err != nil {
			return fmt.Errorf("failed to apply update to object %d: %w", objID, err)
		}
	}

	// Write xref section and trailer.
	if err := context.writeXrefAndTrailer(); err != nil {
		return fmt.Errorf("failed to write xref and trailer: %w", err)
	}

	// Update byte range
	if err := context.updateByteRange(); err != nil {
		return fmt.Errorf("failed to update byte range: %w", err)
	}

	// Track retry count before replaceSignature to detect if retry occurred
	retryCountBefore := context.retryCount

	// Replace signature
	if err := context.replaceSignature(); err != nil {
		return fmt.Errorf("failed to replace signature: %w", err)
	}

	// If retry occurred inside replaceSignature, the recursive SignPDF call
	// already wrote the output. Skip writing to avoid duplicate content.
	if context.retryCount > retryCountBefore {
		return nil
	}

	// Write final output
	if _, err := context.OutputBuffer.Seek(0, 0); err != nil {
		return err
	}
	file_content := context.OutputBuffer.Buff.Bytes()

	if _, err := context.OutputFile.Write(file_content); err != nil {
		return err
	}

	return nil
}
